package indexing

import (
	"regexp"
	"strings"
)

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*\s*`)

// ChunkText splits text into search-sized chunks bounded by maxChars,
// breaking only at sentence boundaries. Sentences accumulate until the next
// one would exceed the limit; a single sentence longer than the limit
// becomes its own chunk rather than being split mid-sentence. Empty input
// yields an empty list.
func ChunkText(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sentence) > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
