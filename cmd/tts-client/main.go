// main package for the one-shot tts-client
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-playground/internal/config"
	"github.com/book-expert/tts-playground/internal/core"
	"github.com/book-expert/tts-playground/internal/pipeline"
	"github.com/book-expert/tts-playground/internal/playground"
	"github.com/book-expert/tts-playground/internal/store"
	"github.com/book-expert/tts-playground/internal/tts"
)

// Flag descriptions.
const (
	flagTextDesc   = "Text to convert to speech"
	flagFileDesc   = "File containing the text to convert"
	flagOutputDesc = "Output file path (defaults to tts-audio.mp3)"
	flagModelDesc  = "Synthesis model (defaults to provider.default_model)"
	flagVoiceDesc  = "Voice (defaults to provider.default_voice)"
	flagSpeedDesc  = "Speaking speed between 0.25 and 4.0 (defaults to provider.default_speed)"
	flagAPIKeyDesc = "API key (defaults to $OPENAI_API_KEY, then the last key that worked)"
	flagConfigDesc = "Path to project.toml (defaults to searching up directory tree)"
)

// Flag names.
const (
	flagText   = "text"
	flagFile   = "file"
	flagOutput = "output"
	flagModel  = "model"
	flagVoice  = "voice"
	flagSpeed  = "speed"
	flagAPIKey = "api-key"
	flagConfig = "config"
)

// Error and log messages.
const (
	errFailedToLoadConfig  = "failed to load configuration: %w"
	errFailedToInitLogger  = "failed to initialize logger: %w"
	errFailedToReadText    = "failed to read text file: %w"
	errFailedToOpenStore   = "failed to open cache store: %w"
	errFailedToSynthesize  = "failed to synthesize speech: %w"
	errFailedToWriteOutput = "failed to write %s: %w"
	logConfigFallback      = "No project.toml found, using defaults: %v"
	logClientInitialized   = "TTS client initialized (backend %s, provider %s)"
	logSynthesisFailed     = "Synthesis failed: %v"
	logSuccessfullyWritten = "Wrote %d bytes to %s"
	msgProgress            = "\rProgress: %3.0f%%"
	msgGenerated           = "\nGenerated: %s (%d bytes)\n"
)

// File names and defaults.
const (
	envAPIKey             = "OPENAI_API_KEY"
	logFileName           = "tts-client.log"
	bootstrapLogFileName  = "tts-client-bootstrap.log"
	outputFilePermissions = 0o644
	flagSpeedUnset        = 0
)

// Errors.
var (
	ErrEitherTextOrFile  = errors.New("either --text or --file must be provided")
	ErrCannotSpecifyBoth = errors.New("cannot specify both --text and --file")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text   string
	file   string
	output string
	model  string
	voice  string
	speed  float64
	apiKey string
	config string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run is the application entry point, returning an error on failure.
func run(
	ctx context.Context,
	args []string,
	getenv func(string) string,
	stdout, stderr io.Writer,
) error {
	flags, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	text, err := inputText(flags)
	if err != nil {
		return err
	}

	cfg, log, err := setup(flags.config)
	if err != nil {
		return err
	}

	defer func() { _ = log.Close() }()

	cacheStore, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return fmt.Errorf(errFailedToOpenStore, err)
	}

	defer func() { _ = cacheStore.Close() }()

	client := tts.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.Timeout())
	session := playground.NewSession(client, cacheStore, log, playground.Options{
		MaxChunkSize: cfg.Pipeline.MaxChunkSize,
		Pipeline: pipeline.Config{
			RequestsPerWindow: cfg.Pipeline.RequestsPerWindow,
			Window:            cfg.Pipeline.Window(),
		},
	})

	log.Info(logClientInitialized, cfg.Store.Backend, client.BaseURL())

	req := playground.Request{Text: text, Config: synthesisConfig(ctx, flags, cfg.Provider, getenv, session)}

	result, err := session.Synthesize(ctx, req, func(fraction float64) {
		fmt.Fprintf(stderr, msgProgress, fraction*100)
	})
	if err != nil {
		log.Error(logSynthesisFailed, err)

		return fmt.Errorf(errFailedToSynthesize, err)
	}

	outputPath := flags.output
	if outputPath == "" {
		outputPath = result.Filename()
	}

	err = os.WriteFile(outputPath, result.Data, outputFilePermissions)
	if err != nil {
		return fmt.Errorf(errFailedToWriteOutput, outputPath, err)
	}

	log.Info(logSuccessfullyWritten, result.Size(), outputPath)
	fmt.Fprintf(stdout, msgGenerated, outputPath, result.Size())

	return nil
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags(args []string, output io.Writer) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("tts-client", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&flags.text, flagText, "", flagTextDesc)
	flagSet.StringVar(&flags.file, flagFile, "", flagFileDesc)
	flagSet.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flagSet.StringVar(&flags.model, flagModel, "", flagModelDesc)
	flagSet.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flagSet.Float64Var(&flags.speed, flagSpeed, flagSpeedUnset, flagSpeedDesc)
	flagSet.StringVar(&flags.apiKey, flagAPIKey, "", flagAPIKeyDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, err
	}

	if flags.text == "" && flags.file == "" {
		flagSet.Usage()

		return appFlags{}, ErrEitherTextOrFile
	}

	if flags.text != "" && flags.file != "" {
		return appFlags{}, ErrCannotSpecifyBoth
	}

	return flags, nil
}

func inputText(flags appFlags) (string, error) {
	if flags.text != "" {
		return flags.text, nil
	}

	data, err := os.ReadFile(flags.file)
	if err != nil {
		return "", fmt.Errorf(errFailedToReadText, err)
	}

	return string(data), nil
}

// setup loads config and initializes the logger.
func setup(configPath string) (*config.Config, *logger.Logger, error) {
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf(errFailedToLoadConfig, err)
		}

		log, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
		if err != nil {
			return nil, nil, fmt.Errorf(errFailedToInitLogger, err)
		}

		return cfg, log, nil
	}

	bootstrapLog, err := logger.New(os.TempDir(), bootstrapLogFileName)
	if err != nil {
		return nil, nil, fmt.Errorf(errFailedToInitLogger, err)
	}

	defer func() { _ = bootstrapLog.Close() }()

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Warn(logConfigFallback, err)

		cfg = config.Default()
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, nil, fmt.Errorf(errFailedToInitLogger, err)
	}

	return cfg, log, nil
}

// synthesisConfig merges flags over configured defaults. The API key comes
// from the flag, then the environment, then the last key that worked.
func synthesisConfig(
	ctx context.Context,
	flags appFlags,
	defaults config.ProviderConfig,
	getenv func(string) string,
	session *playground.Session,
) core.SynthesisConfig {
	cfg := core.SynthesisConfig{
		Model:      defaults.DefaultModel,
		Voice:      defaults.DefaultVoice,
		Speed:      defaults.DefaultSpeed,
		Credential: flags.apiKey,
	}

	if flags.model != "" {
		cfg.Model = flags.model
	}

	if flags.voice != "" {
		cfg.Voice = flags.voice
	}

	if flags.speed != flagSpeedUnset {
		cfg.Speed = flags.speed
	}

	if cfg.Credential == "" {
		cfg.Credential = getenv(envAPIKey)
	}

	if cfg.Credential == "" {
		cfg.Credential, _ = session.LastCredential(ctx)
	}

	return cfg
}
