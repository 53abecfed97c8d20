package service

import (
	"context"
	"errors"
	"iter"

	"kbrag/internal/domain"
)

// Searcher is the retrieval dependency of the answer synthesizer.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error)
}

// Answerer grounds completions in the top retrieved passages.
type Answerer struct {
	searcher    Searcher
	completer   domain.Completer
	topK        int
	temperature float32
}

func NewAnswerer(s Searcher, c domain.Completer, topK int, temperature float32) *Answerer {
	if topK <= 0 {
		topK = 10
	}
	return &Answerer{searcher: s, completer: c, topK: topK, temperature: temperature}
}

// Answer retrieves context for query and returns the full reply.
func (a *Answerer) Answer(ctx context.Context, query string) (string, error) {
	hits, err := a.searcher.Search(ctx, query, a.topK)
	if err != nil {
		return "", err
	}
	out, err := a.completer.Complete(ctx, answerMessages(query, hits), a.temperature)
	if err != nil {
		return "", asCompletionError("answer", err)
	}
	return out, nil
}

// AnswerStream returns a lazy sequence of reply deltas. Retrieval runs when
// iteration starts, so each iteration is a fresh answer. Empty deltas are
// dropped; a failure is the last item.
func (a *Answerer) AnswerStream(ctx context.Context, query string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		hits, err := a.searcher.Search(ctx, query, a.topK)
		if err != nil {
			yield("", err)
			return
		}
		for delta, err := range a.completer.CompleteStream(ctx, answerMessages(query, hits), a.temperature) {
			if err != nil {
				yield("", asCompletionError("stream", err))
				return
			}
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}

func asCompletionError(op string, err error) error {
	var ce *domain.CompletionError
	if errors.As(err, &ce) {
		return err
	}
	return &domain.CompletionError{Op: op, Err: err}
}
