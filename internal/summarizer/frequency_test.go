package summarizer

import (
	"context"
	"strings"
	"testing"
)

func TestFrequencyEngine_SelectsSentencesInOrder(t *testing.T) {
	e := NewFrequencyEngine(2)
	text := "Vector search ranks passages. The weather was nice. Passages are ranked by vector similarity. Lunch happened."
	got, err := e.SummarizeSegment(context.Background(), text, 0, 1)
	if err != nil {
		t.Fatalf("SummarizeSegment: %v", err)
	}
	want := "Vector search ranks passages. Passages are ranked by vector similarity."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFrequencyEngine_HandlesUnterminatedAndCJK(t *testing.T) {
	e := NewFrequencyEngine(5)
	got, err := e.SummarizeSegment(context.Background(), "系統架構說明。模組介紹\nno terminator here", 0, 1)
	if err != nil {
		t.Fatalf("SummarizeSegment: %v", err)
	}
	for _, part := range []string{"系統架構說明。", "模組介紹", "no terminator here"} {
		if !strings.Contains(got, part) {
			t.Fatalf("missing %q in %q", part, got)
		}
	}
}

func TestFrequencyEngine_EmptyTextFails(t *testing.T) {
	if _, err := NewFrequencyEngine(3).Merge(context.Background(), []string{" ", "\n"}); err == nil {
		t.Fatal("expected error for blank input")
	}
}
