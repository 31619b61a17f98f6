// Package store_test tests the cache store backends.
package store_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/book-expert/logger"
	"github.com/book-expert/tts-playground/internal/config"
	"github.com/book-expert/tts-playground/internal/core"
	"github.com/book-expert/tts-playground/internal/store"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleKey = "chunk-tts-1-alloy-1.5-e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "store-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

// StartTestServer starts an in-memory NATS server for testing purposes.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

// exerciseStore checks the behavior every backend shares.
func exerciseStore(t *testing.T, s core.Store) {
	t.Helper()

	ctx := context.Background()

	_, found, err := s.Get(ctx, sampleKey)
	require.NoError(t, err)
	assert.False(t, found)

	value := "data:audio/mpeg;base64," + strings.Repeat("QUJD", 64)
	require.NoError(t, s.Set(ctx, sampleKey, value))

	got, found, err := s.Get(ctx, sampleKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, value, got)

	require.NoError(t, s.Set(ctx, sampleKey, "replaced"))

	got, found, err = s.Get(ctx, sampleKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "replaced", got)

	require.NoError(t, s.Set(ctx, "credential", ""))

	got, found, err = s.Get(ctx, "credential")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, got)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	exerciseStore(t, store.NewMemoryStore(0))
}

func TestMemoryStore_Quota(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	memoryStore := store.NewMemoryStore(10)

	require.NoError(t, memoryStore.Set(ctx, "a", "12345"))

	err := memoryStore.Set(ctx, "b", "123456789")
	require.ErrorIs(t, err, store.ErrQuotaExceeded)

	// Replacing a value only counts the difference.
	require.NoError(t, memoryStore.Set(ctx, "a", "123456789"))
	assert.Equal(t, 1, memoryStore.Len())
}

func TestMemoryStore_Closed(t *testing.T) {
	t.Parallel()

	memoryStore := store.NewMemoryStore(0)
	require.NoError(t, memoryStore.Close())

	_, _, err := memoryStore.Get(context.Background(), "k")
	require.ErrorIs(t, err, store.ErrStoreClosed)
	require.ErrorIs(t, memoryStore.Set(context.Background(), "k", "v"), store.ErrStoreClosed)
}

func TestNatsStore(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	natsStore, err := store.NewNatsStore(jetstreamContext, "test-bucket")
	require.NoError(t, err)

	exerciseStore(t, natsStore)

	// Binding to an existing bucket sees the same objects.
	rebound, err := store.NewNatsStore(jetstreamContext, "test-bucket")
	require.NoError(t, err)

	got, found, err := rebound.Get(context.Background(), sampleKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "replaced", got)
	require.NoError(t, natsStore.Close())
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	redisStore := store.NewRedisStore(client, "test")
	defer redisStore.Close()

	exerciseStore(t, redisStore)

	raw, err := mr.Get("test:" + sampleKey)
	require.NoError(t, err)
	assert.Equal(t, "replaced", raw)
	assert.Zero(t, mr.TTL("test:"+sampleKey))
}

func TestRedisStore_ConnectionError(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	redisStore := store.NewRedisStore(client, "")

	mr.Close()

	_, found, err := redisStore.Get(context.Background(), sampleKey)
	require.Error(t, err)
	assert.False(t, found)
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	sqliteStore, err := store.OpenSQLite(context.Background(), path)
	require.NoError(t, err)

	exerciseStore(t, sqliteStore)
	require.NoError(t, sqliteStore.Close())

	reopened, err := store.OpenSQLite(context.Background(), path)
	require.NoError(t, err)

	defer reopened.Close()

	got, found, err := reopened.Get(context.Background(), sampleKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "replaced", got)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{name: "memory", cfg: config.StoreConfig{Backend: config.BackendMemory}},
		{name: "redis", cfg: config.StoreConfig{Backend: config.BackendRedis, RedisAddr: mr.Addr(), RedisPrefix: "open"}},
		{name: "sqlite", cfg: config.StoreConfig{
			Backend:    config.BackendSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "open.db"),
		}},
		{name: "embedded nats", cfg: config.StoreConfig{
			Backend:      config.BackendNATS,
			NATSEmbedded: true,
			NATSPort:     -1,
			NATSStoreDir: t.TempDir(),
			NATSBucket:   "OPEN_TEST",
		}},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			opened, err := store.Open(context.Background(), testCase.cfg, createTestLogger(t))
			require.NoError(t, err)

			exerciseStore(t, opened)
			require.NoError(t, opened.Close())
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := store.Open(context.Background(), config.StoreConfig{Backend: "etcd"}, createTestLogger(t))
	require.ErrorIs(t, err, store.ErrUnknownBackend)
}

func TestOpen_RedisUnreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := store.Open(context.Background(), config.StoreConfig{
		Backend:   config.BackendRedis,
		RedisAddr: addr,
	}, createTestLogger(t))
	require.Error(t, err)
}
