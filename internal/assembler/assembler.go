// Package assembler joins ordered audio segments into one playable artifact.
package assembler

import "github.com/book-expert/tts-playground/internal/core"

// MediaTypeMPEG is the provider's default output format.
const MediaTypeMPEG = "audio/mpeg"

// Concatenate appends segment payloads in slice order. All segments are
// assumed to share one format since they come from the same configuration;
// per-segment media types are not checked.
func Concatenate(segments []core.AudioSegment) core.SynthesisResult {
	size := 0
	for _, segment := range segments {
		size += len(segment.Payload.Data)
	}

	data := make([]byte, 0, size)
	for _, segment := range segments {
		data = append(data, segment.Payload.Data...)
	}

	return core.SynthesisResult{Data: data, MediaType: MediaTypeMPEG}
}
