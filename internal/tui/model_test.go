package tui

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"kbrag/internal/domain"
)

type fakePort struct {
	hits   []domain.SearchHit
	deltas []string
	err    error
}

func (p *fakePort) Search(context.Context, string, int) ([]domain.SearchHit, error) {
	return p.hits, p.err
}

func (p *fakePort) AnswerStream(ctx context.Context, _ string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, d := range p.deltas {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(d, nil) {
				return
			}
		}
		if p.err != nil {
			yield("", p.err)
		}
	}
}

func typeQuery(m *Model, q string) {
	m.input.SetValue(q)
}

// drain runs pulled commands until the stream ends.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 100 {
			t.Fatal("stream did not finish")
		}
		_, cmd = m.Update(cmd())
	}
}

func TestModel_StreamsAnswer(t *testing.T) {
	m := New(context.Background(), &fakePort{deltas: []string{"Hello", ", ", "world"}}, 10, "")
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	typeQuery(m, "greeting?")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || m.stream == nil {
		t.Fatal("expected a stream to start")
	}
	drain(t, m, cmd)
	if m.answer.String() != "Hello, world" {
		t.Fatalf("answer = %q", m.answer.String())
	}
	if m.stream != nil || m.status != "Done." {
		t.Fatalf("stream not finished: status %q", m.status)
	}
}

func TestModel_StreamErrorShown(t *testing.T) {
	m := New(context.Background(), &fakePort{deltas: []string{"part"}, err: errors.New("upstream closed")}, 10, "")
	typeQuery(m, "q")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(t, m, cmd)
	if !strings.Contains(m.status, "upstream closed") || m.answer.String() != "part" {
		t.Fatalf("status %q answer %q", m.status, m.answer.String())
	}
}

func TestModel_EscStopsStream(t *testing.T) {
	m := New(context.Background(), &fakePort{deltas: []string{"a", "b", "c", "d"}}, 10, "")
	typeQuery(m, "q")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd = m.Update(cmd()) // first delta
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drain(t, m, cmd)
	if m.status != "Stopped." || m.answer.String() != "a" {
		t.Fatalf("status %q answer %q", m.status, m.answer.String())
	}
}

func TestModel_SearchMode(t *testing.T) {
	hits := []domain.SearchHit{
		{Passage: domain.Passage{Text: "Alpha is first. Beta is second.", Source: "a.md"}, Score: 0.9},
		{Passage: domain.Passage{Text: "Gamma.", Source: "b.md"}, Score: 0.5},
	}
	m := New(context.Background(), &fakePort{hits: hits}, 10, "")
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.mode != modeSearch {
		t.Fatal("tab did not switch to search mode")
	}
	typeQuery(m, "beta")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(m.results) != 2 || !strings.Contains(m.status, "2 results") {
		t.Fatalf("unexpected search state: %d results, status %q", len(m.results), m.status)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 1 {
		t.Fatalf("cursor = %d", m.cursor)
	}
	if !strings.Contains(m.renderCurrentResult(), "source=b.md") {
		t.Fatalf("unexpected render %q", m.renderCurrentResult())
	}
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Alpha is first. Beta is second.", "beta")
	if !strings.Contains(out, "Alpha is first.") || !strings.Contains(out, "Beta is second.") {
		t.Fatalf("sentences lost: %q", out)
	}
	if got := highlightBestSentence("   ", "x"); got != "   " {
		t.Fatalf("blank text changed: %q", got)
	}
}
