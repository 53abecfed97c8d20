package service

import (
	"context"
	"fmt"
	"log/slog"

	"kbrag/internal/domain"
	"kbrag/internal/vectorstore"
)

// DocumentSource lists the documents of a corpus folder in a stable order and
// reports how many candidates it skipped.
type DocumentSource interface {
	Load(ctx context.Context, folder string) ([]domain.Document, int, error)
}

// cacheReporter is implemented by summarizers that can tell a cache hit apart.
type cacheReporter interface {
	SummarizeCached(ctx context.Context, document, sourceKey string) (string, bool, error)
}

// Builder turns a corpus folder into a published index and passage store.
type Builder struct {
	source     DocumentSource
	summarizer domain.Summarizer
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      vectorstore.Storage
	log        *slog.Logger
}

func NewBuilder(source DocumentSource, summarizer domain.Summarizer, chunker domain.Chunker, embedder domain.Embedder, store vectorstore.Storage, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{source: source, summarizer: summarizer, chunker: chunker, embedder: embedder, store: store, log: log}
}

// Build summarizes, chunks and embeds every document under folder, then
// publishes the result. Nothing is published unless every step succeeds;
// summaries computed before a failure stay cached.
func (b *Builder) Build(ctx context.Context, folder string) (domain.BuildReport, error) {
	var report domain.BuildReport

	docs, skipped, err := b.source.Load(ctx, folder)
	if err != nil {
		return report, err
	}
	report.Skipped = skipped
	if len(docs) == 0 {
		return report, domain.ErrEmptyCorpus
	}
	report.Documents = len(docs)
	b.log.Info("scanned corpus", "folder", folder, "documents", len(docs), "skipped", skipped)

	var passages []domain.Passage
	for _, doc := range docs {
		summary, cached, err := b.summarize(ctx, doc)
		if err != nil {
			return report, fmt.Errorf("summarize %s: %w", doc.Path, err)
		}
		if cached {
			report.CachedSummaries++
		} else {
			report.Summarized++
		}
		chunks := b.chunker.Chunk(doc.Content)
		b.log.Debug("chunked document", "source", doc.Path, "chunks", len(chunks))
		for _, ch := range chunks {
			passages = append(passages, domain.Passage{
				ID:     len(passages),
				Text:   PrefixPassage(summary, ch),
				Source: doc.Path,
			})
		}
	}
	if len(passages) == 0 {
		return report, domain.ErrEmptyCorpus
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	b.log.Info("embedding passages", "passages", len(passages))
	vecs, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return report, err
	}
	if len(vecs) != len(passages) {
		return report, fmt.Errorf("embedder returned %d vectors for %d passages", len(vecs), len(passages))
	}

	idx := vectorstore.NewIndex(0)
	for i, v := range vecs {
		if err := idx.Add(vectorstore.Normalize(v)); err != nil {
			return report, fmt.Errorf("passage %d: %w", i, err)
		}
	}
	if err := b.store.Publish(ctx, idx, passages); err != nil {
		return report, fmt.Errorf("publish store: %w", err)
	}

	report.Passages = len(passages)
	report.Dimension = idx.Dimension()
	b.log.Info("build complete",
		"documents", report.Documents,
		"passages", report.Passages,
		"dimension", report.Dimension,
		"summarized", report.Summarized,
		"cached_summaries", report.CachedSummaries)
	return report, nil
}

func (b *Builder) summarize(ctx context.Context, doc domain.Document) (string, bool, error) {
	if r, ok := b.summarizer.(cacheReporter); ok {
		return r.SummarizeCached(ctx, doc.Content, doc.Path)
	}
	s, err := b.summarizer.Summarize(ctx, doc.Content, doc.Path)
	return s, false, err
}
