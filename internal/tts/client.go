// Package tts provides the HTTP client for an OpenAI-compatible speech endpoint.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/tts-playground/internal/core"
)

// API endpoints and paths.
const (
	apiSpeech = "/audio/speech"
)

// HTTP headers.
const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	bearerPrefix        = "Bearer "
	contentTypeJSON     = "application/json"

	// DefaultMediaType is assumed when the provider omits a content type.
	DefaultMediaType = "audio/mpeg"
)

// DefaultBaseURL is the public OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Error messages.
const (
	errFmtConvertFailed = "failed to convert text to speech: %s"
)

// Static errors.
var (
	ErrTextEmpty          = errors.New("text cannot be empty")
	ErrCredentialEmpty    = errors.New("credential cannot be empty")
	ErrSynthesisRejected  = errors.New("speech synthesis rejected")
	errReadResponseFailed = errors.New("failed to read audio data")
)

// HTTPClient represents a client for an OpenAI-compatible speech endpoint.
// It is stateless apart from its configuration and safe for concurrent use.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// SpeechRequest defines the JSON payload for a synthesis request.
// Field names follow the provider's /audio/speech contract.
type SpeechRequest struct {
	// Model selects the synthesis model (e.g., "tts-1", "gpt-4o-mini-tts").
	Model string `json:"model"`

	// Input contains the text to speak. Must be non-empty; the provider
	// rejects inputs longer than 4096 characters.
	Input string `json:"input"`

	// Voice names the speaker (e.g., "alloy", "nova").
	Voice string `json:"voice"`

	// Speed scales the speaking rate.
	// Valid range: 0.25 (slowest) to 4.0 (fastest); 1.0 is normal.
	Speed float64 `json:"speed"`
}

// SynthesisError carries the provider's diagnostic payload for a
// non-success response. Body is surfaced verbatim to the user.
type SynthesisError struct {
	// StatusCode is the HTTP status the provider answered with.
	StatusCode int

	// Status is the full status line, e.g. "401 Unauthorized".
	Status string

	// Body holds the raw response body, usually a JSON error object.
	Body string
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	return fmt.Sprintf(errFmtConvertFailed, e.Body)
}

// Unwrap lets callers match with errors.Is(err, ErrSynthesisRejected).
func (e *SynthesisError) Unwrap() error {
	return ErrSynthesisRejected
}

// NewHTTPClient creates a client for the service rooted at baseURL
// (for example "https://api.openai.com/v1"). The timeout applies per request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the service root the client talks to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Synthesize implements core.SpeechClient.
func (c *HTTPClient) Synthesize(
	ctx context.Context,
	text string,
	cfg core.SynthesisConfig,
) (core.AudioPayload, error) {
	req := SpeechRequest{
		Model: cfg.Model,
		Input: text,
		Voice: cfg.Voice,
		Speed: cfg.Speed,
	}

	return c.GenerateSpeech(ctx, req, cfg.Credential)
}

// GenerateSpeech sends one synthesis request and returns the audio bytes with
// the media type the service declared. It validates input at the boundary,
// authenticates with credential as a bearer token and posts req as JSON to
// <baseURL>/audio/speech.
//
// A 2xx response yields the body as audio; when the provider omits a content
// type, DefaultMediaType is assumed. Any other status yields a
// *SynthesisError holding the response body, which callers can match with
// errors.As or errors.Is(err, ErrSynthesisRejected). Transport failures and
// context cancellation are wrapped and returned as-is; nothing is retried.
func (c *HTTPClient) GenerateSpeech(
	ctx context.Context,
	req SpeechRequest,
	credential string,
) (core.AudioPayload, error) {
	if req.Input == "" {
		return core.AudioPayload{}, ErrTextEmpty
	}

	if credential == "" {
		return core.AudioPayload{}, ErrCredentialEmpty
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return core.AudioPayload{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiSpeech,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return core.AudioPayload{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerAuthorization, bearerPrefix+credential)
	httpReq.Header.Set(headerContentType, contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.AudioPayload{}, fmt.Errorf(
			"failed to send request to speech service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return core.AudioPayload{}, newSynthesisError(resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.AudioPayload{}, fmt.Errorf("%w: %w", errReadResponseFailed, err)
	}

	mediaType := resp.Header.Get(headerContentType)
	if mediaType == "" {
		mediaType = DefaultMediaType
	}

	return core.AudioPayload{Data: audioData, MediaType: mediaType}, nil
}

// newSynthesisError preserves the raw body so diagnostics reach the user.
func newSynthesisError(resp *http.Response) *SynthesisError {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil && len(body) == 0 {
		body = []byte(resp.Status)
	}

	return &SynthesisError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}
