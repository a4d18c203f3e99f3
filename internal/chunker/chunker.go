package chunker

import (
	"regexp"
	"strings"
)

// Chunk is one emitted segment before embedding: content, position and
// word count, tagged with the document language.
type Chunk struct {
	Content   string
	Index     int
	WordCount int
	Language  string
}

var sentenceRe = regexp.MustCompile(`[.!?]+`)

// Split segments text into overlapping, size-bounded chunks. Sentences are
// accumulated greedily; when the next sentence would push the buffer past
// chunkSizeWords the buffer is closed and the next one is seeded with the
// last overlapWords words of it. A single sentence longer than the bound
// is emitted as its own oversized chunk; sentence integrity wins over
// strict size limits. Empty input yields zero chunks.
func Split(text, language string, chunkSizeWords, overlapWords int) []Chunk {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Chunk
	current := ""
	currentLen := 0
	index := 0

	for _, sentence := range sentences {
		sentenceLen := len(strings.Fields(sentence))

		if currentLen+sentenceLen > chunkSizeWords && current != "" {
			chunks = append(chunks, Chunk{
				Content:   strings.TrimSpace(current),
				Index:     index,
				WordCount: currentLen,
				Language:  language,
			})

			// seed the next buffer with the boundary overlap
			current = overlapTail(current, overlapWords) + " " + sentence
			currentLen = len(strings.Fields(current))
			index++
			continue
		}

		if current != "" {
			current += " " + sentence
		} else {
			current = sentence
		}
		currentLen += sentenceLen
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, Chunk{
			Content:   strings.TrimSpace(current),
			Index:     index,
			WordCount: currentLen,
			Language:  language,
		})
	}
	return chunks
}

// splitSentences breaks text on sentence-terminal punctuation, discarding
// empty fragments.
func splitSentences(text string) []string {
	parts := sentenceRe.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// overlapTail returns the last n words of text, or all of it when shorter.
func overlapTail(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	return strings.Join(words[len(words)-n:], " ")
}
