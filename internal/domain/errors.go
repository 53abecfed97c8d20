package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreNotFound is returned by query-time operations before any successful build.
	ErrStoreNotFound = errors.New("knowledge store not found: run build first")
	// ErrStoreCorrupt is returned when the persisted index and passage records disagree.
	ErrStoreCorrupt = errors.New("knowledge store is inconsistent: rebuild required")
	// ErrEmptyCorpus is returned when a build finds no readable documents.
	ErrEmptyCorpus = errors.New("no readable documents found in corpus")
)

// EmbeddingError reports a failed embedding batch during a build.
type EmbeddingError struct {
	Batch int
	Start int
	End   int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch %d (passages %d-%d) failed: %v", e.Batch, e.Start, e.End, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// CompletionError reports a failed or empty completion-service call.
type CompletionError struct {
	Op  string
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion %s failed: %v", e.Op, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// ErrEmptyCompletion is wrapped by CompletionError when the service returns no content.
var ErrEmptyCompletion = errors.New("empty completion")
