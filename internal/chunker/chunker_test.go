package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyInput(t *testing.T) {
	assert.Empty(t, Split("", "en", 10, 2))
	assert.Empty(t, Split("   \n\t  ", "en", 10, 2))
	assert.Empty(t, Split("...!!!", "en", 10, 2))
}

func TestSplitSingleShortText(t *testing.T) {
	chunks := Split("Hi there. All good.", "en", 10, 2)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hi there All good", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 4, chunks[0].WordCount)
	assert.Equal(t, "en", chunks[0].Language)
}

func TestSplitThreeSentencesWithOverlap(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. A cat sleeps. Birds fly south."
	chunks := Split(text, "en", 10, 2)

	require.Len(t, chunks, 2)
	assert.Equal(t, "The quick brown fox jumps over the lazy dog", chunks[0].Content)
	assert.Equal(t, 9, chunks[0].WordCount)

	// second chunk begins with the last 2 words of the first
	assert.True(t, strings.HasPrefix(chunks[1].Content, "lazy dog"))
	assert.Contains(t, chunks[1].Content, "A cat sleeps")
	assert.Contains(t, chunks[1].Content, "Birds fly south")
}

func TestSplitIndicesContiguous(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("one two three four five. ")
	}
	chunks := Split(sb.String(), "hr", 12, 3)
	require.Greater(t, len(chunks), 2)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestSplitOverlapProperty(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("alpha beta gamma delta epsilon zeta. ")
	}
	overlap := 3
	chunks := Split(sb.String(), "en", 15, overlap)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1].Content)
		curWords := strings.Fields(chunks[i].Content)
		n := overlap
		if len(prevWords) < n {
			n = len(prevWords)
		}
		require.GreaterOrEqual(t, len(curWords), n)
		assert.Equal(t, prevWords[len(prevWords)-n:], curWords[:n],
			"chunk %d must start with the last %d words of its predecessor", i, n)
	}
}

func TestSplitOversizedSentenceKeptWhole(t *testing.T) {
	sentence := strings.TrimSpace(strings.Repeat("word ", 30)) + "."
	chunks := Split(sentence, "en", 10, 2)
	require.Len(t, chunks, 1)
	assert.Equal(t, 30, chunks[0].WordCount)
	assert.Len(t, strings.Fields(chunks[0].Content), 30)
}

func TestSplitWordCountMatchesContent(t *testing.T) {
	text := "First sentence here. Second one follows now! Third closes it?"
	for _, c := range Split(text, "en", 5, 1) {
		assert.Equal(t, len(strings.Fields(c.Content)), c.WordCount)
	}
}
