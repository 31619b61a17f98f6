package core

// Speed bounds accepted by the provider.
const (
	MinSpeed = 0.25
	MaxSpeed = 4.0
)

const resultFilename = "tts-audio.mp3"

// SynthesisConfig identifies a synthesis mode. Two configs are equal iff all
// fields are equal, so the struct is comparable with ==.
type SynthesisConfig struct {
	Model      string
	Voice      string
	Credential string
	Speed      float64
}

// SpeedInRange reports whether Speed is within [MinSpeed, MaxSpeed].
func (c SynthesisConfig) SpeedInRange() bool {
	return c.Speed >= MinSpeed && c.Speed <= MaxSpeed
}

// TextChunk is an ordered, zero-based substring of the original input.
type TextChunk struct {
	Index int
	Text  string
}

// AudioPayload is binary audio plus its declared media type.
type AudioPayload struct {
	Data      []byte
	MediaType string
}

// AudioSegment is the audio produced for one chunk.
type AudioSegment struct {
	Index   int
	Payload AudioPayload
}

// SynthesisResult is the final concatenated artifact for one input text.
type SynthesisResult struct {
	Data      []byte
	MediaType string
}

// Size returns the artifact length in bytes.
func (r SynthesisResult) Size() int {
	return len(r.Data)
}

// Filename returns the suggested download name.
func (r SynthesisResult) Filename() string {
	return resultFilename
}

// Payload converts the result into a payload suitable for encoding.
func (r SynthesisResult) Payload() AudioPayload {
	return AudioPayload{Data: r.Data, MediaType: r.MediaType}
}
