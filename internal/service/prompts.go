package service

import (
	"fmt"
	"strings"

	"kbrag/internal/domain"
)

const (
	// SummaryHeader opens the summary prefix of every passage.
	SummaryHeader = "[Document Summary]"
	// SummarySeparator closes the summary prefix; the chunk text follows it directly.
	SummarySeparator = "\n--- end of document summary ---\n"
)

// contextSeparator sits between formatted hits.
const contextSeparator = "\n\n---\n\n"

const answerSystemPrompt = "You are a rigorous technical assistant. " +
	"Answer only from the provided retrieved content; if the answer cannot be found there, say clearly that you do not know and state what information is needed. " +
	"End your reply with the [number] and source path of every passage you cited."

const answerUserPrompt = `Query: %s

Retrieved content (ordered by relevance; each passage starts with its document summary):
%s

Answer based on the content above. When the same fact appears in several places, prefer the higher-ranked passage.`

// PrefixPassage prepends the document summary block to a chunk.
func PrefixPassage(summary, chunk string) string {
	return SummaryHeader + "\n" + summary + "\n" + SummarySeparator + chunk
}

// FormatContext renders hits as numbered blocks, rank starting at 1.
func FormatContext(hits []domain.SearchHit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("[%d] (score=%.4f) source=%s\n%s", i+1, h.Score, h.Passage.Source, h.Passage.Text)
	}
	return strings.Join(blocks, contextSeparator)
}

func answerMessages(query string, hits []domain.SearchHit) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: answerSystemPrompt},
		{Role: domain.RoleUser, Content: fmt.Sprintf(answerUserPrompt, query, FormatContext(hits))},
	}
}
