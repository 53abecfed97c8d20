package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"kbrag/internal/logging"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_FiltersSortsAndSkips(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.md"), "# B\nbody")
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "sub", "c.TXT"), "gamma")
	writeFile(t, filepath.Join(dir, "empty.txt"), "  \n\t")
	writeFile(t, filepath.Join(dir, "image.png"), "not text")
	writeFile(t, filepath.Join(dir, "binary.txt"), string([]byte{0xff, 0xfe, 0x00}))

	l := NewLoader([]string{".txt", ".md"}, logging.Discard())
	docs, skipped, err := l.Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if skipped != 2 {
		t.Fatalf("expected 2 skipped, got %d", skipped)
	}
	want := []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.md"),
		filepath.Join(dir, "sub", "c.TXT"),
	}
	if len(docs) != len(want) {
		t.Fatalf("expected %d docs, got %d: %+v", len(want), len(docs), docs)
	}
	for i, w := range want {
		if docs[i].Path != w {
			t.Errorf("docs[%d].Path = %q, want %q", i, docs[i].Path, w)
		}
	}
	if docs[0].Content != "alpha" {
		t.Errorf("unexpected content %q", docs[0].Content)
	}
}

func TestLoad_MalformedPDFIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.pdf"), "this is not a pdf")
	writeFile(t, filepath.Join(dir, "ok.txt"), "fine")

	l := NewLoader([]string{".txt", ".pdf"}, logging.Discard())
	docs, skipped, err := l.Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 || skipped != 1 {
		t.Fatalf("expected 1 doc and 1 skipped, got %d and %d", len(docs), skipped)
	}
}

func TestLoad_MissingFolder(t *testing.T) {
	l := NewLoader([]string{".txt"}, logging.Discard())
	if _, _, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing folder")
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewLoader([]string{".txt"}, logging.Discard()).Load(ctx, dir); err == nil {
		t.Fatal("expected context error")
	}
}
