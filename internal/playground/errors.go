package playground

import "errors"

// Validation failures. Each is returned wrapped in a *ValidationError.
var (
	ErrCredentialRequired = errors.New("an API key is required")
	ErrTextEmpty          = errors.New("text must not be empty")
	ErrSpeedOutOfRange    = errors.New("speed must be between 0.25 and 4.0")
	ErrModelRequired      = errors.New("a model is required")
	ErrVoiceRequired      = errors.New("a voice is required")
)

// ValidationError reports a request rejected before any I/O.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}
