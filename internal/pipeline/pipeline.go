// Package pipeline turns ordered text chunks into ordered audio segments.
//
// Chunks are processed one at a time. Each chunk is first looked up in the
// audio cache; misses go to the remote service, paced by a Pacer, and are
// cached on success. The first remote failure aborts the whole request and
// nothing produced so far is returned.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-playground/internal/core"
	"github.com/book-expert/tts-playground/internal/fingerprint"
	"github.com/book-expert/tts-playground/internal/metrics"
)

// Log formats.
const (
	logFmtPacing         = "Waiting %s before remote call %d"
	logFmtChunkFailed    = "Failed to synthesize chunk %d/%d: %v"
	logFmtChunkProcessed = "Processed chunk %d/%d (%d bytes, cached=%t)"
	errFmtCancelled      = "synthesis stopped before chunk %d/%d: %w"
	errFmtPacingStopped  = "synthesis stopped while pacing chunk %d: %w"
)

// Config holds the pacing settings and optional collaborators of a Pipeline.
// Zero values select the defaults.
type Config struct {
	// RequestsPerWindow is the most remote calls started per Window.
	// Defaults to DefaultRequestsPerWindow.
	RequestsPerWindow int

	// Window is the pacing period. Defaults to DefaultWindow.
	Window time.Duration

	// Sleep overrides the timer-backed wait, for tests.
	Sleep SleepFunc

	// Metrics receives cache, remote-call and pacing observations. May be nil.
	Metrics *metrics.Metrics
}

// Pipeline synthesizes chunk sequences. It holds no per-request state and
// may be shared by concurrent requests.
type Pipeline struct {
	client  core.SpeechClient
	cache   *AudioCache
	log     *logger.Logger
	metrics *metrics.Metrics
	cfg     Config
}

// New creates a pipeline that calls client and caches through store.
func New(client core.SpeechClient, store core.Store, log *logger.Logger, cfg Config) *Pipeline {
	return &Pipeline{
		client:  client,
		cache:   NewAudioCache(store, log, cfg.Metrics),
		log:     log,
		metrics: cfg.Metrics,
		cfg:     cfg,
	}
}

// Cache exposes the audio cache the pipeline writes through.
func (p *Pipeline) Cache() *AudioCache {
	return p.cache
}

// SynthesizeChunks returns one segment per chunk, in chunk order.
//
// Chunks run strictly one after another. A chunk with a readable cache entry
// is served from the cache without touching the pacer; every other chunk
// waits for its pacing slot, calls the remote service and is cached on
// success. Each request gets its own Pacer, so budgets are not shared across
// requests.
//
// onProgress receives i/n before chunk i and 1 when all chunks are done; it
// may be nil. The context is checked before each chunk and during pacing
// waits. Errors from the remote service are returned unchanged, and on any
// error no segments are returned.
func (p *Pipeline) SynthesizeChunks(
	ctx context.Context,
	chunks []core.TextChunk,
	cfg core.SynthesisConfig,
	onProgress core.ProgressFunc,
) ([]core.AudioSegment, error) {
	pacer := NewPacer(p.cfg.RequestsPerWindow, p.cfg.Window, p.cfg.Sleep)
	total := len(chunks)
	segments := make([]core.AudioSegment, 0, total)

	for i, chunk := range chunks {
		onProgress.Report(float64(i) / float64(total))

		ctxErr := ctx.Err()
		if ctxErr != nil {
			return nil, fmt.Errorf(errFmtCancelled, i+1, total, ctxErr)
		}

		payload, cached, err := p.synthesizeChunk(ctx, pacer, chunk, cfg)
		if err != nil {
			p.log.Error(logFmtChunkFailed, i+1, total, err)

			return nil, err
		}

		p.log.Info(logFmtChunkProcessed, i+1, total, len(payload.Data), cached)

		segments = append(segments, core.AudioSegment{Index: chunk.Index, Payload: payload})
	}

	onProgress.Report(1)

	return segments, nil
}

func (p *Pipeline) synthesizeChunk(
	ctx context.Context,
	pacer *Pacer,
	chunk core.TextChunk,
	cfg core.SynthesisConfig,
) (core.AudioPayload, bool, error) {
	key := fingerprint.GenerateKey(fingerprint.PurposeChunk, chunk.Text, cfg)

	payload, hit := p.cache.Lookup(ctx, fingerprint.PurposeChunk, key)
	if hit {
		return payload, true, nil
	}

	delay := pacer.Delay()
	if delay > 0 {
		p.log.Info(logFmtPacing, delay, pacer.Calls()+1)
	}

	waited, err := pacer.Wait(ctx)
	if err != nil {
		return core.AudioPayload{}, false, fmt.Errorf(errFmtPacingStopped, chunk.Index+1, err)
	}

	p.metrics.PacingWait(waited)

	payload, err = p.client.Synthesize(ctx, chunk.Text, cfg)
	p.metrics.RemoteCall(metrics.Outcome(err))

	if err != nil {
		return core.AudioPayload{}, false, err
	}

	p.cache.Remember(ctx, fingerprint.PurposeChunk, key, payload)

	return payload, false, nil
}
