package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kbrag/internal/domain"
	"kbrag/internal/vectorstore"
)

// Snapshot is one loaded generation of the index and its passages.
type Snapshot struct {
	index    *vectorstore.Index
	passages []domain.Passage
}

func NewSnapshot(idx *vectorstore.Index, passages []domain.Passage) *Snapshot {
	return &Snapshot{index: idx, passages: passages}
}

func (s *Snapshot) Count() int     { return len(s.passages) }
func (s *Snapshot) Dimension() int { return s.index.Dimension() }

// Search returns at most k hits for a normalized query vector, best first.
func (s *Snapshot) Search(query []float32, k int) ([]domain.SearchHit, error) {
	ids, scores, err := s.index.Search(query, k)
	if err != nil {
		return nil, err
	}
	hits := make([]domain.SearchHit, 0, len(ids))
	for i, id := range ids {
		if id == vectorstore.NoID {
			continue
		}
		if id < 0 || id >= len(s.passages) {
			return nil, fmt.Errorf("%w: index returned id %d outside %d passages", domain.ErrStoreCorrupt, id, len(s.passages))
		}
		hits = append(hits, domain.SearchHit{Passage: s.passages[id], Score: scores[i]})
	}
	return hits, nil
}

// Retriever answers similarity queries against the published store. By
// default every query loads the store fresh; with caching enabled the loaded
// snapshot is kept until Reload.
type Retriever struct {
	store      vectorstore.Storage
	embedder   domain.Embedder
	cacheIndex bool

	mu   sync.RWMutex
	snap *Snapshot
}

func NewRetriever(store vectorstore.Storage, embedder domain.Embedder, cacheIndex bool) *Retriever {
	return &Retriever{store: store, embedder: embedder, cacheIndex: cacheIndex}
}

// Search embeds query and returns at most k hits ordered by descending score.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	snap, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	return snap.Search(vectorstore.Normalize(vecs[0]), k)
}

// Reload replaces the held snapshot with the currently published store.
func (r *Retriever) Reload(ctx context.Context) error {
	snap, err := r.load(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
	return nil
}

func (r *Retriever) snapshot(ctx context.Context) (*Snapshot, error) {
	if !r.cacheIndex {
		return r.load(ctx)
	}
	r.mu.RLock()
	snap := r.snap
	r.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap, nil
}

func (r *Retriever) load(ctx context.Context) (*Snapshot, error) {
	idx, passages, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(idx, passages), nil
}

// Status describes the published store.
type Status struct {
	Ready     bool
	Passages  int
	Dimension int
	Sources   int
}

// Status reports whether a store has been published and what it holds. A
// missing store is not an error.
func (r *Retriever) Status(ctx context.Context) (Status, error) {
	idx, passages, err := r.store.Load(ctx)
	if errors.Is(err, domain.ErrStoreNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	sources := map[string]struct{}{}
	for _, p := range passages {
		sources[p.Source] = struct{}{}
	}
	return Status{Ready: true, Passages: len(passages), Dimension: idx.Dimension(), Sources: len(sources)}, nil
}
