// Package playground ties the chunker, the paced pipeline, the assembler and
// the caches together into one synthesis request.
package playground

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-playground/internal/assembler"
	"github.com/book-expert/tts-playground/internal/catalog"
	"github.com/book-expert/tts-playground/internal/chunker"
	"github.com/book-expert/tts-playground/internal/core"
	"github.com/book-expert/tts-playground/internal/fingerprint"
	"github.com/book-expert/tts-playground/internal/metrics"
	"github.com/book-expert/tts-playground/internal/pipeline"
)

// CredentialKey is the store key holding the last credential that produced a
// successful synthesis.
const CredentialKey = "apiKey"

const (
	logFmtWholeHit       = "Serving %d bytes from the whole-text cache"
	logFmtSynthesizing   = "Synthesizing %d characters in %d chunks with %s/%s at speed %s"
	logFmtSynthesized    = "Synthesized %d bytes in %s"
	logFmtCredentialSkip = "Could not remember the API key: %v"
)

// Options configures a Session. Zero values select the defaults.
type Options struct {
	MaxChunkSize int
	Pipeline     pipeline.Config
	Catalog      *catalog.Catalog
}

// Session runs synthesis requests against one store and one remote client.
// It is safe for concurrent use; overlapping requests for the same text are
// not deduplicated.
type Session struct {
	pipeline     *pipeline.Pipeline
	store        core.Store
	log          *logger.Logger
	metrics      *metrics.Metrics
	catalog      *catalog.Catalog
	maxChunkSize int
}

// Request is one synthesis request.
type Request struct {
	Text   string
	Config core.SynthesisConfig
}

// NewSession builds a session around client and store.
func NewSession(client core.SpeechClient, store core.Store, log *logger.Logger, opts Options) *Session {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = chunker.MaxChunkSize
	}

	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}

	return &Session{
		pipeline:     pipeline.New(client, store, log, opts.Pipeline),
		store:        store,
		log:          log,
		metrics:      opts.Pipeline.Metrics,
		catalog:      opts.Catalog,
		maxChunkSize: opts.MaxChunkSize,
	}
}

// Catalog returns the models and voices the session offers.
func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}

// Synthesize returns the audio for req.Text. A readable whole-text cache entry
// is returned without any remote call. Otherwise the text is chunked and
// synthesized, and the first remote error is returned unchanged with no
// partial audio.
func (s *Session) Synthesize(
	ctx context.Context,
	req Request,
	onProgress core.ProgressFunc,
) (core.SynthesisResult, error) {
	err := Validate(req)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	started := time.Now()

	result, err := s.synthesize(ctx, req, onProgress)
	s.metrics.ObserveSynthesis(metrics.Outcome(err), time.Since(started))

	return result, err
}

func (s *Session) synthesize(
	ctx context.Context,
	req Request,
	onProgress core.ProgressFunc,
) (core.SynthesisResult, error) {
	cache := s.pipeline.Cache()
	key := fingerprint.GenerateKey(fingerprint.PurposeAudio, req.Text, req.Config)

	payload, hit := cache.Lookup(ctx, fingerprint.PurposeAudio, key)
	if hit {
		s.log.Info(logFmtWholeHit, len(payload.Data))
		onProgress.Report(1)

		return core.SynthesisResult{Data: payload.Data, MediaType: payload.MediaType}, nil
	}

	started := time.Now()
	chunks := chunker.SplitWithLimit(req.Text, s.maxChunkSize)

	s.log.Info(logFmtSynthesizing, utf8.RuneCountInString(req.Text), len(chunks),
		req.Config.Model, req.Config.Voice, fingerprint.FormatSpeed(req.Config.Speed))

	segments, err := s.pipeline.SynthesizeChunks(ctx, chunks, req.Config, onProgress)
	if err != nil {
		return core.SynthesisResult{}, err
	}

	result := assembler.Concatenate(segments)
	cache.Remember(ctx, fingerprint.PurposeAudio, key, result.Payload())
	s.rememberCredential(ctx, req.Config.Credential)

	s.log.Info(logFmtSynthesized, result.Size(), time.Since(started).Round(time.Millisecond))

	return result, nil
}

func (s *Session) rememberCredential(ctx context.Context, credential string) {
	err := s.store.Set(ctx, CredentialKey, credential)
	if err != nil {
		s.log.Warn(logFmtCredentialSkip, err)
	}
}

// LastCredential returns the credential of the last successful synthesis.
func (s *Session) LastCredential(ctx context.Context) (string, bool) {
	credential, found, err := s.store.Get(ctx, CredentialKey)
	if err != nil || credential == "" {
		return "", false
	}

	return credential, found
}

// EstimatePrice returns the USD cost of synthesizing text with model.
func (s *Session) EstimatePrice(model, text string) float64 {
	return s.catalog.EstimatePrice(model, text)
}

// Validate checks req the way Synthesize does, without any I/O.
func Validate(req Request) error {
	cfg := req.Config

	switch {
	case cfg.Credential == "":
		return invalid("api_key", ErrCredentialRequired)
	case req.Text == "":
		return invalid("text", ErrTextEmpty)
	case !cfg.SpeedInRange():
		return invalid("speed", ErrSpeedOutOfRange)
	case cfg.Model == "":
		return invalid("model", ErrModelRequired)
	case cfg.Voice == "":
		return invalid("voice", ErrVoiceRequired)
	}

	return nil
}
