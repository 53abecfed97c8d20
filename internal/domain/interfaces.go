package domain

import (
	"context"
	"iter"
)

// Document represents a single source file loaded from the corpus.
type Document struct {
	Path    string
	Content string
}

// Passage is a summary-prefixed chunk of a document, addressed by its dense id.
type Passage struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// SearchHit represents a matching passage with its inner-product score.
type SearchHit struct {
	Passage Passage
	Score   float32
}

// Message is a single chat message sent to the completion service.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// BuildReport describes the outcome of a successful index build.
type BuildReport struct {
	Documents       int
	Skipped         int
	Passages        int
	Dimension       int
	Summarized      int
	CachedSummaries int
}

// Embedder converts a batch of texts into vectors, one per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer produces chat completions, either in full or as incremental deltas.
type Completer interface {
	Complete(ctx context.Context, messages []Message, temperature float32) (string, error)
	CompleteStream(ctx context.Context, messages []Message, temperature float32) iter.Seq2[string, error]
}

// Chunker splits document text into bounded-size passages.
type Chunker interface {
	Chunk(text string) []string
}

// Summarizer produces a document-level abstract keyed by source path.
type Summarizer interface {
	Summarize(ctx context.Context, document, sourceKey string) (string, error)
}
