package vectorstore

import (
	"context"
	"fmt"

	"kbrag/internal/domain"
)

// Storage persists a built index together with its passage records. Publish
// replaces any previous generation as a unit; Load returns ErrStoreNotFound
// before the first publish and ErrStoreCorrupt when the two halves disagree.
type Storage interface {
	Publish(ctx context.Context, idx *Index, passages []domain.Passage) error
	Load(ctx context.Context) (*Index, []domain.Passage, error)
}

// Validate checks that the index and passages describe the same dense id space.
func Validate(idx *Index, passages []domain.Passage) error {
	if idx.Count() != len(passages) {
		return fmt.Errorf("%w: index holds %d vectors, store holds %d passages",
			domain.ErrStoreCorrupt, idx.Count(), len(passages))
	}
	for i, p := range passages {
		if p.ID != i {
			return fmt.Errorf("%w: passage at position %d has id %d", domain.ErrStoreCorrupt, i, p.ID)
		}
	}
	return nil
}
