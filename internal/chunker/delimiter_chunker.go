package chunker

import (
	"strings"
	"unicode/utf8"
)

// Delimiter separates atomic sections in a document.
const Delimiter = "---"

// joiner is placed between sections that share a chunk; its length is the
// per-section overhead used by the budget check.
const joiner = "\n" + Delimiter + "\n"

// DelimiterChunker splits text on the section delimiter and packs sections
// into chunks of at most maxSize characters. A lone section larger than
// maxSize is emitted whole.
type DelimiterChunker struct {
	maxSize int
	overlap int
}

func NewDelimiterChunker(maxSize, overlap int) *DelimiterChunker {
	if maxSize <= 0 {
		maxSize = 384
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize / 2
	}
	return &DelimiterChunker{maxSize: maxSize, overlap: overlap}
}

func (c *DelimiterChunker) Chunk(text string) []string {
	return Chunk(text, c.maxSize, c.overlap)
}

// Chunk splits text into ordered chunks. Sizes are measured in characters
// (runes), not bytes.
func Chunk(text string, maxSize, overlap int) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}
	var out []string
	for _, unit := range accumulate(sections(text), maxSize) {
		out = append(out, dispatch(unit, maxSize, overlap, 0)...)
	}
	return out
}

// dispatch picks the policy for one accumulated unit: keep it, re-split it
// on the delimiter, or window it.
func dispatch(unit string, maxSize, overlap, depth int) []string {
	if runeLen(unit) <= maxSize {
		return []string{unit}
	}
	if !strings.Contains(unit, Delimiter) {
		if depth == 0 {
			return []string{unit}
		}
		return window(unit, maxSize, overlap)
	}
	parts := accumulate(sections(unit), maxSize)
	if len(parts) == 1 && parts[0] == unit {
		return window(unit, maxSize, overlap)
	}
	var out []string
	for _, p := range parts {
		out = append(out, dispatch(p, maxSize, overlap, depth+1)...)
	}
	return out
}

func sections(text string) []string {
	raw := strings.Split(text, Delimiter)
	out := raw[:0]
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// accumulate greedily joins sections while the joined length stays within maxSize.
func accumulate(sections []string, maxSize int) []string {
	var chunks []string
	var buf strings.Builder
	bufLen := 0
	overhead := runeLen(joiner)
	for _, s := range sections {
		sl := runeLen(s)
		if bufLen > 0 && bufLen+sl+overhead > maxSize {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
		if bufLen > 0 {
			buf.WriteString(joiner)
			bufLen += overhead
		}
		buf.WriteString(s)
		bufLen += sl
	}
	if bufLen > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

// window cuts text into windows of maxSize characters, each starting overlap
// characters before the previous one ended.
func window(text string, maxSize, overlap int) []string {
	runes := []rune(text)
	if overlap < 0 || overlap >= maxSize {
		overlap = 0
	}
	var out []string
	start := 0
	for start < len(runes) {
		end := min(start+maxSize, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
