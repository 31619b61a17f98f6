// Package chunker splits long input text into provider-sized segments.
//
// Lengths are counted in Unicode code points. A cut is placed right after the
// last sentence or line boundary that fits in the window, so speech is not
// broken mid-sentence unless a segment has no boundary at all.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/book-expert/tts-playground/internal/core"
)

// MaxChunkSize is the provider's input limit in characters.
const MaxChunkSize = 4096

// boundaryMarkers are tried in priority order, not by position.
var boundaryMarkers = []string{". ", "? ", "! ", "\n"}

// Split splits text into chunks of at most MaxChunkSize characters.
func Split(text string) []core.TextChunk {
	return SplitWithLimit(text, MaxChunkSize)
}

// SplitWithLimit splits text into chunks of at most limit characters.
// A non-positive limit falls back to MaxChunkSize. Concatenating the chunk
// texts in order reproduces text exactly; empty text yields no chunks.
func SplitWithLimit(text string, limit int) []core.TextChunk {
	if limit <= 0 {
		limit = MaxChunkSize
	}

	var chunks []core.TextChunk

	rest := text
	for rest != "" {
		windowEnd, fits := offsetAfterRunes(rest, limit)
		if fits {
			chunks = append(chunks, core.TextChunk{Index: len(chunks), Text: rest})

			break
		}

		end := cutPosition(rest[:windowEnd])
		chunks = append(chunks, core.TextChunk{Index: len(chunks), Text: rest[:end]})
		rest = rest[end:]
	}

	return chunks
}

// offsetAfterRunes returns the byte offset just past the first n runes of s,
// and true when s holds no more than n runes.
func offsetAfterRunes(s string, n int) (int, bool) {
	count := 0

	for offset := range s {
		if count == n {
			return offset, false
		}

		count++
	}

	return len(s), true
}

// cutPosition returns the byte offset where window should be cut.
func cutPosition(window string) int {
	for _, marker := range boundaryMarkers {
		pos := strings.LastIndex(window, marker)
		if pos > -1 {
			return pos + len(marker)
		}
	}

	return len(window)
}

// RuneLength reports the length of a chunk as the chunker measures it.
func RuneLength(chunk core.TextChunk) int {
	return utf8.RuneCountInString(chunk.Text)
}
