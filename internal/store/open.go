package store

import (
	"context"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-playground/internal/config"
	"github.com/book-expert/tts-playground/internal/core"
	"github.com/book-expert/tts-playground/internal/natsserver"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const natsClientName = "tts-playground"

// Open builds the backend selected by cfg.Backend. The returned store owns
// every connection and embedded server it started.
func Open(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (core.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		log.Info("Using in-memory cache store (quota %d bytes)", cfg.MemoryQuotaBytes)

		return NewMemoryStore(cfg.MemoryQuotaBytes), nil
	case config.BackendNATS:
		return openNATS(cfg, log)
	case config.BackendRedis:
		return openRedis(ctx, cfg, log)
	case config.BackendSQLite:
		log.Info("Using SQLite cache store at %s", cfg.SQLitePath)

		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownBackend, cfg.Backend)
	}
}

func openNATS(cfg config.StoreConfig, log *logger.Logger) (*NatsStore, error) {
	embedded, err := natsserver.Start(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to start embedded NATS server: %w", err)
	}

	url := cfg.NATSURL
	if embedded != nil {
		url = embedded.ClientURL()
	}

	natsConnection, err := nats.Connect(url, nats.Name(natsClientName))
	if err != nil {
		embedded.Shutdown()

		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()
		embedded.Shutdown()

		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	natsStore, err := NewNatsStore(jetstreamContext, cfg.NATSBucket)
	if err != nil {
		natsConnection.Close()
		embedded.Shutdown()

		return nil, err
	}

	natsStore.onClose = append(natsStore.onClose, embedded.Shutdown, natsConnection.Close)

	log.Info("Using NATS object store bucket '%s' at %s", cfg.NATSBucket, url)

	return natsStore, nil
}

func openRedis(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingErr := client.Ping(ctx).Err()
	if pingErr != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, pingErr)
	}

	log.Info("Using Redis cache store at %s (prefix %s)", cfg.RedisAddr, cfg.RedisPrefix)

	return NewRedisStore(client, cfg.RedisPrefix), nil
}
