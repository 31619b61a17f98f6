// Package fingerprint derives deterministic cache keys from text and synthesis settings.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/book-expert/tts-playground/internal/core"
)

// Purposes keep whole-text and per-chunk keys apart.
const (
	PurposeAudio = "audio"
	PurposeChunk = "chunk"
)

const keySeparator = "-"

// GenerateKey returns purpose-model-voice-speed-sha256(text).
// The credential is not part of the key.
func GenerateKey(purpose, text string, cfg core.SynthesisConfig) string {
	return strings.Join([]string{
		purpose,
		cfg.Model,
		cfg.Voice,
		FormatSpeed(cfg.Speed),
		Hash(text),
	}, keySeparator)
}

// Hash returns the lowercase hex SHA-256 digest of text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))

	return hex.EncodeToString(sum[:])
}

// FormatSpeed renders speed with the fewest digits that round-trip, so 1.0 is "1".
func FormatSpeed(speed float64) string {
	return strconv.FormatFloat(speed, 'f', -1, 64)
}
