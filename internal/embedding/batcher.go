package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"kbrag/internal/domain"
)

// Batcher splits a text list into fixed-size batches, embeds them with at
// most concurrency requests in flight, and reassembles the vectors in input
// order. It satisfies domain.Embedder itself.
type Batcher struct {
	embedder    domain.Embedder
	batchSize   int
	concurrency int
	log         *slog.Logger
}

func NewBatcher(e domain.Embedder, batchSize, concurrency int, log *slog.Logger) *Batcher {
	if batchSize <= 0 {
		batchSize = 64
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{embedder: e, batchSize: batchSize, concurrency: concurrency, log: log}
}

// Embed returns one vector per text. A failed batch aborts the whole call
// with a *domain.EmbeddingError naming the batch.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for batch, start := 0, 0; start < len(texts); batch, start = batch+1, start+b.batchSize {
		end := min(start+b.batchSize, len(texts))
		g.Go(func() error {
			b.log.Debug("embedding batch", "batch", batch, "start", start, "end", end)
			vecs, err := b.embedder.Embed(gctx, texts[start:end])
			if err == nil && len(vecs) != end-start {
				err = fmt.Errorf("got %d vectors for %d texts", len(vecs), end-start)
			}
			if err != nil {
				return &domain.EmbeddingError{Batch: batch, Start: start, End: end, Err: err}
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
