package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kbrag/internal/domain"
	"kbrag/internal/vectorstore"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "kb.index"), filepath.Join(dir, "kb_store.jsonl")), dir
}

func sample() (*vectorstore.Index, []domain.Passage) {
	idx := vectorstore.NewIndex(2)
	_ = idx.Add([]float32{1, 0}, []float32{0, 1})
	return idx, []domain.Passage{
		{ID: 0, Text: "第一段\n<summary>", Source: "docs/a.md"},
		{ID: 1, Text: "second", Source: "docs/b.txt"},
	}
}

func TestStore_LoadBeforePublish(t *testing.T) {
	s, _ := newStore(t)
	if _, _, err := s.Load(context.Background()); !errors.Is(err, domain.ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got %v", err)
	}
}

func TestStore_PublishAndLoad(t *testing.T) {
	s, dir := newStore(t)
	idx, passages := sample()
	if err := s.Publish(context.Background(), idx, passages); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	gotIdx, got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if gotIdx.Count() != 2 || len(got) != 2 {
		t.Fatalf("unexpected sizes %d/%d", gotIdx.Count(), len(got))
	}
	if got[0] != passages[0] || got[1] != passages[1] {
		t.Fatalf("passages changed: %+v", got)
	}

	data, err := os.ReadFile(filepath.Join(dir, "kb_store.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"source":"docs/a.md"`) || !strings.Contains(lines[0], "第一段") {
		t.Fatalf("unexpected jsonl: %s", data)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestStore_PublishReplacesPreviousGeneration(t *testing.T) {
	s, _ := newStore(t)
	idx, passages := sample()
	if err := s.Publish(context.Background(), idx, passages); err != nil {
		t.Fatal(err)
	}
	next := vectorstore.NewIndex(2)
	_ = next.Add([]float32{1, 0})
	if err := s.Publish(context.Background(), next, []domain.Passage{{ID: 0, Text: "only", Source: "c.txt"}}); err != nil {
		t.Fatal(err)
	}
	_, got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].Text != "only" {
		t.Fatalf("unexpected passages %+v", got)
	}
}

func TestStore_RejectsInconsistentPublish(t *testing.T) {
	s, _ := newStore(t)
	idx, passages := sample()
	if err := s.Publish(context.Background(), idx, passages[:1]); !errors.Is(err, domain.ErrStoreCorrupt) {
		t.Fatalf("expected ErrStoreCorrupt, got %v", err)
	}
}

func TestStore_DetectsMismatchOnLoad(t *testing.T) {
	s, dir := newStore(t)
	idx, passages := sample()
	if err := s.Publish(context.Background(), idx, passages); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "kb_store.jsonl"), []byte(`{"id":0,"text":"x","source":"y"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Load(context.Background()); !errors.Is(err, domain.ErrStoreCorrupt) {
		t.Fatalf("expected ErrStoreCorrupt, got %v", err)
	}
}
