// Package codec converts audio payloads to and from a text form that can be
// kept in a string-valued store. The text form is a base64 data URL.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/tts-playground/internal/core"
)

const (
	dataURLPrefix    = "data:"
	base64Separator  = ";base64,"
	errFmtDecodeFail = "decode cached payload: %s: %v"
)

// ErrMalformedPayload indicates input that was not produced by Encode.
var ErrMalformedPayload = errors.New("malformed payload")

// DecodeError describes why a stored payload could not be decoded.
type DecodeError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf(errFmtDecodeFail, e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(reason string, err error) *DecodeError {
	return &DecodeError{Reason: reason, Err: err}
}

// Encode returns data:<media-type>;base64,<payload>.
func Encode(payload core.AudioPayload) string {
	var builder strings.Builder

	builder.Grow(len(dataURLPrefix) + len(payload.MediaType) + len(base64Separator) +
		base64.StdEncoding.EncodedLen(len(payload.Data)))
	builder.WriteString(dataURLPrefix)
	builder.WriteString(payload.MediaType)
	builder.WriteString(base64Separator)
	builder.WriteString(base64.StdEncoding.EncodeToString(payload.Data))

	return builder.String()
}

// Decode reverses Encode, reproducing the bytes and media type exactly.
func Decode(encoded string) (core.AudioPayload, error) {
	rest, found := strings.CutPrefix(encoded, dataURLPrefix)
	if !found {
		return core.AudioPayload{}, newDecodeError("missing data URL prefix", ErrMalformedPayload)
	}

	mediaType, body, found := strings.Cut(rest, base64Separator)
	if !found {
		return core.AudioPayload{}, newDecodeError("missing base64 separator", ErrMalformedPayload)
	}

	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return core.AudioPayload{}, newDecodeError("invalid base64 body", errors.Join(ErrMalformedPayload, err))
	}

	if data == nil {
		data = []byte{}
	}

	return core.AudioPayload{Data: data, MediaType: mediaType}, nil
}
