package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Engine writes summary text. Implementations either call a completion
// service or work locally.
type Engine interface {
	// SummarizeSegment summarizes segment index of total. A total of 1 means
	// the whole document is summarized directly.
	SummarizeSegment(ctx context.Context, text string, index, total int) (string, error)
	// Merge reduces per-segment summaries into one document summary.
	Merge(ctx context.Context, summaries []string) (string, error)
}

// Cache stores one summary per source key. Put must be durable when it returns.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, summary string) error
}

// Options bound segmenting and fallback text.
type Options struct {
	SegmentSize   int
	Lookback      int
	FallbackChars int
}

// Summarizer produces cached document summaries. A summary is never empty:
// engine failures degrade to deterministic fallback text.
type Summarizer struct {
	engine Engine
	cache  Cache
	opts   Options
	log    *slog.Logger
}

func New(engine Engine, cache Cache, opts Options, log *slog.Logger) *Summarizer {
	if opts.SegmentSize <= 0 {
		opts.SegmentSize = 50000
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 1000
	}
	if opts.Lookback >= opts.SegmentSize {
		opts.Lookback = opts.SegmentSize / 2
	}
	if opts.FallbackChars <= 0 {
		opts.FallbackChars = 200
	}
	if log == nil {
		log = slog.Default()
	}
	return &Summarizer{engine: engine, cache: cache, opts: opts, log: log}
}

// Summarize returns the summary for document, keyed by sourceKey. A
// non-empty cached entry is returned as is. A fresh summary is written to
// the cache before returning. Errors come only from the cache or from ctx.
func (s *Summarizer) Summarize(ctx context.Context, document, sourceKey string) (string, error) {
	summary, _, err := s.summarize(ctx, document, sourceKey)
	return summary, err
}

// SummarizeCached is Summarize that also reports whether the cache served the result.
func (s *Summarizer) SummarizeCached(ctx context.Context, document, sourceKey string) (string, bool, error) {
	return s.summarize(ctx, document, sourceKey)
}

func (s *Summarizer) summarize(ctx context.Context, document, sourceKey string) (string, bool, error) {
	cached, ok, err := s.cache.Get(ctx, sourceKey)
	if err != nil {
		s.log.Warn("summary cache read failed", "source", sourceKey, "err", err)
	} else if ok && strings.TrimSpace(cached) != "" {
		return cached, true, nil
	}

	summary, err := s.generate(ctx, document, sourceKey)
	if err != nil {
		return "", false, err
	}
	if err := s.cache.Put(ctx, sourceKey, summary); err != nil {
		return "", false, fmt.Errorf("write summary cache: %w", err)
	}
	return summary, false, nil
}

func (s *Summarizer) generate(ctx context.Context, document, sourceKey string) (string, error) {
	segments := Segments(document, s.opts.SegmentSize, s.opts.Lookback)
	if len(segments) <= 1 {
		text := ""
		if len(segments) == 1 {
			text = segments[0]
		}
		out, err := s.call(ctx, func(ctx context.Context) (string, error) {
			if text == "" {
				return "", fmt.Errorf("document has no text")
			}
			return s.engine.SummarizeSegment(ctx, text, 0, 1)
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			s.log.Warn("summary failed, using head of document", "source", sourceKey, "err", err)
			return s.headFallback(document, sourceKey), nil
		}
		return out, nil
	}

	s.log.Info("summarizing in segments", "source", sourceKey, "segments", len(segments))
	parts := make([]string, len(segments))
	for i, seg := range segments {
		out, err := s.call(ctx, func(ctx context.Context) (string, error) {
			return s.engine.SummarizeSegment(ctx, seg, i, len(segments))
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			s.log.Warn("segment summary failed, using truncated segment", "source", sourceKey, "segment", i+1, "err", err)
			out = fmt.Sprintf("Segment %d key points (truncated): %s", i+1, SafeHead(seg, s.opts.FallbackChars))
		}
		parts[i] = out
	}

	merged, err := s.call(ctx, func(ctx context.Context) (string, error) {
		return s.engine.Merge(ctx, parts)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.log.Warn("summary merge failed, joining segment summaries", "source", sourceKey, "err", err)
		return "Document summary (segment summaries joined):\n" + strings.Join(parts, "\n"), nil
	}
	return merged, nil
}

// call runs one engine step and normalizes its output; blank output is a failure.
func (s *Summarizer) call(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	out, err := fn(ctx)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(strings.ReplaceAll(out, "\n\n", "\n"))
	if out == "" {
		return "", fmt.Errorf("empty summary")
	}
	return out, nil
}

func (s *Summarizer) headFallback(document, sourceKey string) string {
	if head := SafeHead(document, s.opts.FallbackChars); head != "" {
		return head
	}
	return "Document " + filepath.Base(sourceKey)
}

// SafeHead flattens line breaks and returns at most n characters of text.
func SafeHead(text string, n int) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	r := []rune(text)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// Segments cuts text into pieces of at most size characters. Each cut is
// moved back to the nearest sentence terminator or line break found within
// lookback characters of the ideal cut point.
func Segments(text string, size, lookback int) []string {
	runes := []rune(strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n")))
	var out []string
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		if end < len(runes) {
			floor := max(end-lookback, start+1)
			for i := end - 1; i >= floor; i-- {
				if isBoundary(runes[i]) {
					end = i + 1
					break
				}
			}
		}
		if seg := strings.TrimSpace(string(runes[start:end])); seg != "" {
			out = append(out, seg)
		}
		start = end
	}
	return out
}

func isBoundary(r rune) bool {
	switch r {
	case '\n', '。', '.', '!', '?', '！', '？':
		return true
	}
	return false
}
