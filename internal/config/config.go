// Package config provides the configuration structure for the tts-playground.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Store backend names.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Defaults applied to zero values.
const (
	defaultBaseURL           = "https://api.openai.com/v1"
	defaultModel             = "tts-1"
	defaultVoice             = "alloy"
	defaultSpeed             = 1.0
	defaultTimeoutSeconds    = 60
	defaultMaxChunkSize      = 4096
	defaultRequestsPerWindow = 100
	defaultWindowSeconds     = 60
	defaultNATSURL           = "nats://127.0.0.1:4222"
	defaultNATSBucket        = "TTS_AUDIO_CACHE"
	defaultNATSStoreDir      = "./data/nats"
	defaultRedisPrefix       = "tts-playground"
	defaultSQLitePath        = "./data/tts-cache.db"
	defaultHost              = "127.0.0.1"
	defaultPort              = 8080
	defaultShutdownSeconds   = 10
	defaultLogsDir           = "./logs"
	minSpeed                 = 0.25
	maxSpeed                 = 4.0
	maxPort                  = 65535
)

// Validation errors.
var (
	ErrUnknownBackend     = errors.New("unknown store backend")
	ErrSpeedOutOfRange    = errors.New("default speed must be between 0.25 and 4.0")
	ErrNegativeValue      = errors.New("value must not be negative")
	ErrPortOutOfRange     = errors.New("port must be between 0 and 65535")
	ErrRedisAddrEmpty     = errors.New("redis_addr is required for the redis backend")
	ErrSQLitePathEmpty    = errors.New("sqlite_path is required for the sqlite backend")
	ErrNATSEndpointNeeded = errors.New("nats_url or nats_embedded is required for the nats backend")
)

// ProviderConfig describes the remote speech service.
type ProviderConfig struct {
	BaseURL        string  `toml:"base_url"`
	DefaultModel   string  `toml:"default_model"`
	DefaultVoice   string  `toml:"default_voice"`
	DefaultSpeed   float64 `toml:"default_speed"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// PipelineConfig holds chunking and pacing settings.
type PipelineConfig struct {
	MaxChunkSize      int `toml:"max_chunk_size"`
	RequestsPerWindow int `toml:"requests_per_window"`
	WindowSeconds     int `toml:"window_seconds"`
}

// StoreConfig selects and configures the durable cache backend.
type StoreConfig struct {
	Backend          string `toml:"backend"`
	NATSURL          string `toml:"nats_url"`
	NATSBucket       string `toml:"nats_bucket"`
	NATSEmbedded     bool   `toml:"nats_embedded"`
	NATSPort         int    `toml:"nats_port"`
	NATSStoreDir     string `toml:"nats_store_dir"`
	RedisAddr        string `toml:"redis_addr"`
	RedisPassword    string `toml:"redis_password"`
	RedisDB          int    `toml:"redis_db"`
	RedisPrefix      string `toml:"redis_prefix"`
	SQLitePath       string `toml:"sqlite_path"`
	MemoryQuotaBytes int    `toml:"memory_quota_bytes"`
}

// ServerConfig holds the playground HTTP server settings.
type ServerConfig struct {
	Host                   string `toml:"host"`
	Port                   int    `toml:"port"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Store    StoreConfig    `toml:"store"`
	Server   ServerConfig   `toml:"server"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load loads the configuration through the central configurator, then
// applies defaults and validates it.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg)
}

// LoadFile loads the configuration from an explicit TOML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes TOML data, then applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return finish(&cfg)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()

	return cfg
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	setString(&c.Provider.BaseURL, defaultBaseURL)
	setString(&c.Provider.DefaultModel, defaultModel)
	setString(&c.Provider.DefaultVoice, defaultVoice)
	setFloat(&c.Provider.DefaultSpeed, defaultSpeed)
	setInt(&c.Provider.TimeoutSeconds, defaultTimeoutSeconds)

	setInt(&c.Pipeline.MaxChunkSize, defaultMaxChunkSize)
	setInt(&c.Pipeline.RequestsPerWindow, defaultRequestsPerWindow)
	setInt(&c.Pipeline.WindowSeconds, defaultWindowSeconds)

	setString(&c.Store.Backend, BackendSQLite)
	setString(&c.Store.NATSBucket, defaultNATSBucket)
	setString(&c.Store.NATSStoreDir, defaultNATSStoreDir)
	setString(&c.Store.RedisPrefix, defaultRedisPrefix)

	if c.Store.Backend == BackendNATS && !c.Store.NATSEmbedded {
		setString(&c.Store.NATSURL, defaultNATSURL)
	}

	if c.Store.Backend == BackendSQLite {
		setString(&c.Store.SQLitePath, defaultSQLitePath)
	}

	setString(&c.Server.Host, defaultHost)
	setInt(&c.Server.Port, defaultPort)
	setInt(&c.Server.ShutdownTimeoutSeconds, defaultShutdownSeconds)

	setString(&c.Paths.BaseLogsDir, defaultLogsDir)
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.Provider.DefaultSpeed < minSpeed || c.Provider.DefaultSpeed > maxSpeed {
		return fmt.Errorf("%w: got %.2f", ErrSpeedOutOfRange, c.Provider.DefaultSpeed)
	}

	nonNegative := map[string]int{
		"provider.timeout_seconds":     c.Provider.TimeoutSeconds,
		"pipeline.max_chunk_size":      c.Pipeline.MaxChunkSize,
		"pipeline.requests_per_window": c.Pipeline.RequestsPerWindow,
		"pipeline.window_seconds":      c.Pipeline.WindowSeconds,
		"store.memory_quota_bytes":     c.Store.MemoryQuotaBytes,
		"store.redis_db":               c.Store.RedisDB,
	}

	for name, value := range nonNegative {
		if value < 0 {
			return fmt.Errorf("%w: %s = %d", ErrNegativeValue, name, value)
		}
	}

	if c.Server.Port < 0 || c.Server.Port > maxPort {
		return fmt.Errorf("%w: got %d", ErrPortOutOfRange, c.Server.Port)
	}

	return c.validateStore()
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendMemory:
		return nil
	case BackendNATS:
		if c.Store.NATSURL == "" && !c.Store.NATSEmbedded {
			return ErrNATSEndpointNeeded
		}

		return nil
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return ErrRedisAddrEmpty
		}

		return nil
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return ErrSQLitePathEmpty
		}

		return nil
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownBackend, c.Store.Backend)
	}
}

// Timeout returns the per-request timeout for the remote service.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// Window returns the pacing window.
func (p PipelineConfig) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ShutdownTimeout returns the graceful shutdown budget.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

func setString(target *string, value string) {
	if *target == "" {
		*target = value
	}
}

func setInt(target *int, value int) {
	if *target == 0 {
		*target = value
	}
}

func setFloat(target *float64, value float64) {
	if *target == 0 {
		*target = value
	}
}
