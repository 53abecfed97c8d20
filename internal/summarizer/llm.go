package summarizer

import (
	"context"
	"fmt"
	"strings"

	"kbrag/internal/domain"
)

const systemPrompt = "You are a professional assistant for summarizing technical and product documentation."

const directPrompt = `Summarize the following document.
Requirements:
1) Roughly 100 to 150 words; capture key points and terminology rather than paraphrasing line by line.
2) Cover the topic, purpose, key modules or terms, and keywords a reader might search for.
3) Write a short prose paragraph, not bullet points.

Document:
%s`

const segmentPrompt = `Summarize the following document segment (segment %d of %d).
Requirements:
1) Roughly 80 to 120 words; capture key points and key terms.
2) Cover the segment's topic, purpose, and key modules or terms.
3) Write a short prose paragraph, not bullet points.
4) Begin the summary with the segment number.

Segment:
%s`

const mergePrompt = `Merge the following segment summaries into one complete document summary.
Requirements:
1) Roughly 100 to 150 words; capture key points and terminology.
2) Cover the topic, purpose, key modules or terms, and keywords a reader might search for.
3) Write a short prose paragraph, not bullet points.
4) Combine the key points of every segment into an overview of the whole document.

Segment summaries:
%s`

// LLMEngine summarizes through a completion service.
type LLMEngine struct {
	completer   domain.Completer
	temperature float32
}

func NewLLMEngine(c domain.Completer, temperature float32) *LLMEngine {
	return &LLMEngine{completer: c, temperature: temperature}
}

func (e *LLMEngine) SummarizeSegment(ctx context.Context, text string, index, total int) (string, error) {
	prompt := fmt.Sprintf(directPrompt, text)
	if total > 1 {
		prompt = fmt.Sprintf(segmentPrompt, index+1, total, text)
	}
	return e.completer.Complete(ctx, messages(prompt), e.temperature)
}

func (e *LLMEngine) Merge(ctx context.Context, summaries []string) (string, error) {
	lines := make([]string, len(summaries))
	for i, s := range summaries {
		lines[i] = fmt.Sprintf("Segment %d: %s", i+1, s)
	}
	return e.completer.Complete(ctx, messages(fmt.Sprintf(mergePrompt, strings.Join(lines, "\n\n"))), e.temperature)
}

func messages(user string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: user},
	}
}
