package pipeline

import (
	"context"
	"errors"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-playground/internal/codec"
	"github.com/book-expert/tts-playground/internal/core"
	"github.com/book-expert/tts-playground/internal/metrics"
)

const (
	logFmtCacheHit        = "Cache hit for %s key %s"
	logFmtCacheReadFailed = "Cache read failed for %s key %s, treating as miss: %v"
	logFmtCacheCorrupt    = "Cached %s entry %s is unreadable, treating as miss: %v"
	logFmtCacheWriteSkip  = "Skipping cache write for %s key %s: %v"
)

// AudioCache stores encoded audio in a core.Store. Reads that fail or return
// undecodable data count as misses; writes are best-effort and never fail the
// caller.
type AudioCache struct {
	store   core.Store
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewAudioCache wraps store. m may be nil.
func NewAudioCache(store core.Store, log *logger.Logger, m *metrics.Metrics) *AudioCache {
	return &AudioCache{store: store, log: log, metrics: m}
}

// Lookup returns the cached payload for key, if a readable one exists.
func (c *AudioCache) Lookup(ctx context.Context, purpose, key string) (core.AudioPayload, bool) {
	encoded, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn(logFmtCacheReadFailed, purpose, key, err)
		c.metrics.CacheLookup(purpose, metrics.ResultMiss)

		return core.AudioPayload{}, false
	}

	if !found {
		c.metrics.CacheLookup(purpose, metrics.ResultMiss)

		return core.AudioPayload{}, false
	}

	payload, err := codec.Decode(encoded)
	if err != nil {
		var decodeErr *codec.DecodeError
		if errors.As(err, &decodeErr) {
			c.log.Warn(logFmtCacheCorrupt, purpose, key, decodeErr)
		}

		c.metrics.CacheLookup(purpose, metrics.ResultCorrupt)

		return core.AudioPayload{}, false
	}

	c.log.Info(logFmtCacheHit, purpose, key)
	c.metrics.CacheLookup(purpose, metrics.ResultHit)

	return payload, true
}

// Remember stores payload under key. Failures, such as an exhausted quota,
// are logged and dropped.
func (c *AudioCache) Remember(ctx context.Context, purpose, key string, payload core.AudioPayload) {
	err := c.store.Set(ctx, key, codec.Encode(payload))
	if err != nil {
		c.log.Warn(logFmtCacheWriteSkip, purpose, key, err)
		c.metrics.CacheWriteFailed(purpose)
	}
}
