// Package playground_test tests whole-request synthesis.
package playground_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-playground/internal/assembler"
	"github.com/book-expert/tts-playground/internal/chunker"
	"github.com/book-expert/tts-playground/internal/codec"
	"github.com/book-expert/tts-playground/internal/core"
	"github.com/book-expert/tts-playground/internal/fingerprint"
	"github.com/book-expert/tts-playground/internal/metrics"
	"github.com/book-expert/tts-playground/internal/pipeline"
	"github.com/book-expert/tts-playground/internal/playground"
	"github.com/book-expert/tts-playground/internal/store"
	"github.com/book-expert/tts-playground/internal/tts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChunkSize = 16
	sampleText    = "First sentence. Second one here! Third? And a final line\nwith more."
)

type fakeSpeechClient struct {
	mu     sync.Mutex
	calls  []string
	failOn string
}

func (f *fakeSpeechClient) Synthesize(_ context.Context, text string, _ core.SynthesisConfig) (core.AudioPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, text)

	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return core.AudioPayload{}, &tts.SynthesisError{
			StatusCode: http.StatusTooManyRequests,
			Status:     "429 Too Many Requests",
			Body:       "rate limit reached",
		}
	}

	return core.AudioPayload{Data: []byte("<" + text + ">"), MediaType: "audio/mpeg"}, nil
}

func (f *fakeSpeechClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

// countingStore counts every operation on the wrapped store.
type countingStore struct {
	core.Store

	ops atomic.Int64
}

func (c *countingStore) Get(ctx context.Context, key string) (string, bool, error) {
	c.ops.Add(1)

	return c.Store.Get(ctx, key)
}

func (c *countingStore) Set(ctx context.Context, key, value string) error {
	c.ops.Add(1)

	return c.Store.Set(ctx, key, value)
}

func noSleep(context.Context, time.Duration) error { return nil }

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "playground-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

func newSession(t *testing.T, client core.SpeechClient, st core.Store, m *metrics.Metrics) *playground.Session {
	t.Helper()

	return playground.NewSession(client, st, createTestLogger(t), playground.Options{
		MaxChunkSize: testChunkSize,
		Pipeline: pipeline.Config{
			RequestsPerWindow: 100,
			Window:            time.Minute,
			Sleep:             noSleep,
			Metrics:           m,
		},
	})
}

func testRequest(text string) playground.Request {
	return playground.Request{
		Text:   text,
		Config: core.SynthesisConfig{Model: "tts-1", Voice: "alloy", Credential: "sk-test", Speed: 1},
	}
}

func expectedAudio(text string) []byte {
	var out []byte

	for _, chunk := range chunker.SplitWithLimit(text, testChunkSize) {
		out = append(out, "<"+chunk.Text+">"...)
	}

	return out
}

func TestSynthesize_MissThenWholeTextHit(t *testing.T) {
	t.Parallel()

	client := &fakeSpeechClient{}
	st := store.NewMemoryStore(0)
	session := newSession(t, client, st, nil)
	ctx := context.Background()
	wantChunks := len(chunker.SplitWithLimit(sampleText, testChunkSize))

	first, err := session.Synthesize(ctx, testRequest(sampleText), nil)
	require.NoError(t, err)
	assert.Equal(t, expectedAudio(sampleText), first.Data)
	assert.Equal(t, assembler.MediaTypeMPEG, first.MediaType)
	assert.Equal(t, wantChunks, client.callCount())

	var progress []float64

	second, err := session.Synthesize(ctx, testRequest(sampleText), func(f float64) {
		progress = append(progress, f)
	})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, wantChunks, client.callCount(), "whole-text hit must not call the service")
	assert.Equal(t, []float64{1}, progress)
}

func TestSynthesize_SeededWholeTextEntryShortCircuits(t *testing.T) {
	t.Parallel()

	client := &fakeSpeechClient{}
	st := store.NewMemoryStore(0)
	req := testRequest(sampleText)
	key := fingerprint.GenerateKey(fingerprint.PurposeAudio, req.Text, req.Config)

	require.NoError(t, st.Set(context.Background(), key,
		codec.Encode(core.AudioPayload{Data: []byte("cached"), MediaType: "audio/mpeg"})))

	result, err := newSession(t, client, st, nil).Synthesize(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), result.Data)
	assert.Zero(t, client.callCount())
}

func TestSynthesize_CorruptWholeTextEntryIsMiss(t *testing.T) {
	t.Parallel()

	client := &fakeSpeechClient{}
	st := store.NewMemoryStore(0)
	req := testRequest(sampleText)
	key := fingerprint.GenerateKey(fingerprint.PurposeAudio, req.Text, req.Config)

	require.NoError(t, st.Set(context.Background(), key, "not a data url"))

	result, err := newSession(t, client, st, nil).Synthesize(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, expectedAudio(sampleText), result.Data)
	assert.Positive(t, client.callCount())

	repaired, found, err := st.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, found)

	payload, err := codec.Decode(repaired)
	require.NoError(t, err)
	assert.Equal(t, result.Data, payload.Data)
}

func TestSynthesize_AbortsOnRemoteFailure(t *testing.T) {
	t.Parallel()

	client := &fakeSpeechClient{failOn: "Third"}
	st := store.NewMemoryStore(0)
	session := newSession(t, client, st, nil)
	req := testRequest(sampleText)

	result, err := session.Synthesize(context.Background(), req, nil)
	require.Error(t, err)
	assert.Empty(t, result.Data)
	assert.Equal(t, "failed to convert text to speech: rate limit reached", err.Error())

	var synthErr *tts.SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, http.StatusTooManyRequests, synthErr.StatusCode)

	key := fingerprint.GenerateKey(fingerprint.PurposeAudio, req.Text, req.Config)
	_, found, err := st.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, found, "no whole-text entry after a failure")

	_, remembered := session.LastCredential(context.Background())
	assert.False(t, remembered, "credential is only remembered after success")

	// Chunks before the failure stay cached, so a retry resumes there.
	calls := client.callCount()
	client.failOn = ""

	_, err = session.Synthesize(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, len(chunker.SplitWithLimit(sampleText, testChunkSize))-(calls-1), client.callCount()-calls)
}

func TestSynthesize_ValidatesBeforeIO(t *testing.T) {
	t.Parallel()

	valid := testRequest(sampleText)

	tests := []struct {
		name    string
		mutate  func(*playground.Request)
		wantErr error
		field   string
	}{
		{name: "missing credential", mutate: func(r *playground.Request) { r.Config.Credential = "" },
			wantErr: playground.ErrCredentialRequired, field: "api_key"},
		{name: "empty text", mutate: func(r *playground.Request) { r.Text = "" },
			wantErr: playground.ErrTextEmpty, field: "text"},
		{name: "speed too low", mutate: func(r *playground.Request) { r.Config.Speed = 0.1 },
			wantErr: playground.ErrSpeedOutOfRange, field: "speed"},
		{name: "speed too high", mutate: func(r *playground.Request) { r.Config.Speed = 4.5 },
			wantErr: playground.ErrSpeedOutOfRange, field: "speed"},
		{name: "missing model", mutate: func(r *playground.Request) { r.Config.Model = "" },
			wantErr: playground.ErrModelRequired, field: "model"},
		{name: "missing voice", mutate: func(r *playground.Request) { r.Config.Voice = "" },
			wantErr: playground.ErrVoiceRequired, field: "voice"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			client := &fakeSpeechClient{}
			st := &countingStore{Store: store.NewMemoryStore(0)}
			req := valid
			testCase.mutate(&req)

			_, err := newSession(t, client, st, nil).Synthesize(context.Background(), req, nil)
			require.ErrorIs(t, err, testCase.wantErr)

			var validationErr *playground.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, testCase.field, validationErr.Field)
			assert.Zero(t, st.ops.Load())
			assert.Zero(t, client.callCount())
		})
	}
}

func TestSynthesize_SpeedBoundsAccepted(t *testing.T) {
	t.Parallel()

	for _, speed := range []float64{core.MinSpeed, core.MaxSpeed} {
		req := testRequest("short")
		req.Config.Speed = speed

		require.NoError(t, playground.Validate(req))
	}
}

func TestSynthesize_CacheWriteFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	client := &fakeSpeechClient{}
	session := newSession(t, client, store.NewMemoryStore(1), nil)

	result, err := session.Synthesize(context.Background(), testRequest(sampleText), nil)
	require.NoError(t, err)
	assert.Equal(t, expectedAudio(sampleText), result.Data)
}

func TestLastCredential(t *testing.T) {
	t.Parallel()

	session := newSession(t, &fakeSpeechClient{}, store.NewMemoryStore(0), nil)
	ctx := context.Background()

	_, found := session.LastCredential(ctx)
	assert.False(t, found)

	req := testRequest("Remember me.")
	req.Config.Credential = "sk-remembered"

	_, err := session.Synthesize(ctx, req, nil)
	require.NoError(t, err)

	credential, found := session.LastCredential(ctx)
	assert.True(t, found)
	assert.Equal(t, "sk-remembered", credential)
}

func TestSynthesize_CredentialDoesNotAffectCache(t *testing.T) {
	t.Parallel()

	client := &fakeSpeechClient{}
	session := newSession(t, client, store.NewMemoryStore(0), nil)

	first := testRequest(sampleText)
	_, err := session.Synthesize(context.Background(), first, nil)
	require.NoError(t, err)

	calls := client.callCount()
	second := first
	second.Config.Credential = "sk-other"

	_, err = session.Synthesize(context.Background(), second, nil)
	require.NoError(t, err)
	assert.Equal(t, calls, client.callCount())
}

func TestSynthesize_RecordsDuration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	session := newSession(t, &fakeSpeechClient{failOn: "boom"}, store.NewMemoryStore(0), m)

	_, err = session.Synthesize(context.Background(), testRequest("fine"), nil)
	require.NoError(t, err)

	_, err = session.Synthesize(context.Background(), testRequest("boom"), nil)
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "tts_playground_synthesis_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEstimatePrice(t *testing.T) {
	t.Parallel()

	session := newSession(t, &fakeSpeechClient{}, store.NewMemoryStore(0), nil)

	assert.InDelta(t, 15.0, session.EstimatePrice("tts-1", strings.Repeat("a", 1_000_000)), 1e-9)
	assert.Zero(t, session.EstimatePrice("missing", "text"))
	assert.True(t, errors.Is(playground.Validate(playground.Request{}), playground.ErrCredentialRequired))
}
