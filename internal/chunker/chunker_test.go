// Package chunker_test tests text splitting.
package chunker_test

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/book-expert/tts-playground/internal/chunker"
	"github.com/book-expert/tts-playground/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func join(chunks []core.TextChunk) string {
	var builder strings.Builder

	for _, chunk := range chunks {
		builder.WriteString(chunk.Text)
	}

	return builder.String()
}

func requireWellFormed(t *testing.T, text string, limit int, chunks []core.TextChunk) {
	t.Helper()

	require.Equal(t, text, join(chunks), "chunks must reproduce the input")

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Positive(t, chunker.RuneLength(chunk), "chunk %d is empty", i)
		assert.LessOrEqual(t, chunker.RuneLength(chunk), limit, "chunk %d exceeds limit", i)
	}
}

func TestSplit_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, chunker.Split(""))
}

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	t.Parallel()

	chunks := chunker.Split("Hello, world. How are you?")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello, world. How are you?", chunks[0].Text)
}

func TestSplit_ExactlyMax(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a", chunker.MaxChunkSize)

	chunks := chunker.Split(text)
	require.Len(t, chunks, 1)
}

func TestSplit_BoundaryPreference(t *testing.T) {
	t.Parallel()

	const maxSize = chunker.MaxChunkSize

	runes := []rune(strings.Repeat("a", maxSize+10))
	runes[maxSize-3] = '.'
	runes[maxSize-2] = ' '
	text := string(runes)

	chunks := chunker.Split(text)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0].Text, maxSize-1)
	assert.True(t, strings.HasSuffix(chunks[0].Text, ". "))
	requireWellFormed(t, text, maxSize, chunks)
}

func TestSplit_HardCutFallback(t *testing.T) {
	t.Parallel()

	const maxSize = chunker.MaxChunkSize

	text := strings.Repeat("b", 2*maxSize)

	chunks := chunker.Split(text)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0].Text, maxSize)
	assert.Len(t, chunks[1].Text, maxSize)
}

func TestSplitWithLimit_MarkerPriority(t *testing.T) {
	t.Parallel()

	// The newline is later, but ". " has priority.
	text := "One. Two\nthree four five"

	chunks := chunker.SplitWithLimit(text, 12)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "One. ", chunks[0].Text)
	requireWellFormed(t, text, 12, chunks)
}

func TestSplitWithLimit_MarkerStraddlingWindowIsIgnored(t *testing.T) {
	t.Parallel()

	// ". " starts at index 4 and ends at 6; the window is 5 runes.
	text := "abcd. efgh"

	chunks := chunker.SplitWithLimit(text, 5)
	assert.Equal(t, "abcd.", chunks[0].Text)
	requireWellFormed(t, text, 5, chunks)
}

func TestSplitWithLimit_QuestionExclamationNewline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		first string
	}{
		{name: "question", text: "Why? Because it works", first: "Why? "},
		{name: "exclamation", text: "Stop! Right there now", first: "Stop! "},
		{name: "newline", text: "line one\nline two and more", first: "line one\n"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			chunks := chunker.SplitWithLimit(testCase.text, 10)
			require.NotEmpty(t, chunks)
			assert.Equal(t, testCase.first, chunks[0].Text)
			requireWellFormed(t, testCase.text, 10, chunks)
		})
	}
}

func TestSplitWithLimit_MultiByteHardCut(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("語", 7)

	chunks := chunker.SplitWithLimit(text, 3)
	require.Len(t, chunks, 3)
	assert.Equal(t, "語語語", chunks[0].Text)
	assert.Equal(t, "語", chunks[2].Text)
	requireWellFormed(t, text, 3, chunks)
}

func TestSplitWithLimit_RoundTripRandom(t *testing.T) {
	t.Parallel()

	alphabet := []string{"a", "b", " ", ". ", "? ", "! ", "\n", "é", "語", "\xff"}
	rng := rand.New(rand.NewPCG(7, 11))

	for range 200 {
		var builder strings.Builder

		length := rng.IntN(400)
		for range length {
			builder.WriteString(alphabet[rng.IntN(len(alphabet))])
		}

		text := builder.String()
		limit := 1 + rng.IntN(50)

		requireWellFormed(t, text, limit, chunker.SplitWithLimit(text, limit))
	}
}

func TestSplitWithLimit_NonPositiveLimitUsesDefault(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("c", chunker.MaxChunkSize+1)

	chunks := chunker.SplitWithLimit(text, 0)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0].Text, chunker.MaxChunkSize)
}
