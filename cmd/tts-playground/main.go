// main package for the tts-playground server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-playground/internal/config"
	"github.com/book-expert/tts-playground/internal/metrics"
	"github.com/book-expert/tts-playground/internal/pipeline"
	"github.com/book-expert/tts-playground/internal/playground"
	"github.com/book-expert/tts-playground/internal/server"
	"github.com/book-expert/tts-playground/internal/store"
	"github.com/book-expert/tts-playground/internal/tts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	bootstrapLogFileName = "tts-playground-bootstrap.log"
	finalLogFileName     = "tts-playground.log"
	flagConfigDesc       = "Path to project.toml (defaults to searching up directory tree)"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

func loadConfig(configPath string, bootstrapLog *logger.Logger) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}

	return config.Load(bootstrapLog)
}

func run(ctx context.Context, configPath string) error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFileName)
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration
	cfg, err := loadConfig(configPath, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, finalLogFileName)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	// 4. Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pipelineMetrics, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// 5. Cache store
	cacheStore, err := store.Open(ctx, cfg.Store, finalLog)
	if err != nil {
		finalLog.Error("Failed to open cache store: %v", err)

		return fmt.Errorf("failed to open cache store: %w", err)
	}

	defer func() {
		closeErr := cacheStore.Close()
		if closeErr != nil {
			finalLog.Warn("Error closing cache store: %v", closeErr)
		}
	}()

	// 6. Session and HTTP surface
	client := tts.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.Timeout())
	session := playground.NewSession(client, cacheStore, finalLog, playground.Options{
		MaxChunkSize: cfg.Pipeline.MaxChunkSize,
		Pipeline: pipeline.Config{
			RequestsPerWindow: cfg.Pipeline.RequestsPerWindow,
			Window:            cfg.Pipeline.Window(),
			Metrics:           pipelineMetrics,
		},
	})

	finalLog.System("TTS playground initialized. Provider: %s, cache backend: %s",
		client.BaseURL(), cfg.Store.Backend)

	srv := server.New(session, finalLog, registry, cfg.Provider)

	return srv.Run(ctx, cfg.Server.Address(), cfg.Server.ShutdownTimeout())
}

func main() {
	configPath := flag.String("config", "", flagConfigDesc)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, *configPath)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
