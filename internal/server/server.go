// Package server exposes the playground over local HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-playground/internal/config"
	"github.com/book-expert/tts-playground/internal/core"
	"github.com/book-expert/tts-playground/internal/playground"
	"github.com/book-expert/tts-playground/internal/tts"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	headerContentType        = "Content-Type"
	headerContentDisposition = "Content-Disposition"
	headerRequestID          = "X-Request-ID"
	headerOrigin             = "Origin"
	contentTypeJSON          = "application/json"
	demoAudioPathFmt         = "/tts-demo-audio/%s.mp3"
	maxRequestBytes          = 1 << 20
	readHeaderTimeout        = 5 * time.Second
)

const (
	logFmtRequest        = "[%s] Synthesis request: %d characters, model=%s voice=%s speed=%s"
	logFmtRequestFailed  = "[%s] Synthesis failed: %v"
	logFmtRequestDone    = "[%s] Synthesis done: %d bytes"
	logFmtListening      = "Playground listening on %s"
	logFmtShuttingDown   = "Shutting down playground server"
	logFmtShutdownFailed = "HTTP shutdown error: %v"
)

// Errors.
var (
	ErrInvalidBody          = errors.New("request body is not valid JSON")
	ErrUnknownProvider      = errors.New("unknown demo provider")
	ErrUnsupportedMediaType = errors.New("request body must be application/json")
	ErrForeignOrigin        = errors.New("cross-origin requests are not accepted")
	ErrUnknownModel         = errors.New("model is not in the catalog")
	ErrUnknownVoice         = errors.New("voice is not in the catalog")
)

var demoProviders = map[string]bool{"openai": true, "cartesia": true, "11labs": true}

// Server serves the playground endpoints.
type Server struct {
	session  *playground.Session
	log      *logger.Logger
	gatherer prometheus.Gatherer
	defaults config.ProviderConfig
}

// New creates a server. gatherer backs GET /metrics; defaults fill the
// model, voice and speed a request leaves out.
func New(
	session *playground.Session,
	log *logger.Logger,
	gatherer prometheus.Gatherer,
	defaults config.ProviderConfig,
) *Server {
	return &Server{session: session, log: log, gatherer: gatherer, defaults: defaults}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/speech", requireLocalJSON(s.handleSpeech))
	mux.HandleFunc("POST /api/tts", requireLocalJSON(s.handleDemo))
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/estimate", s.handleEstimate)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return mux
}

// Run serves on addr until ctx is done, then shuts down within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return s.Serve(ctx, listener, shutdownTimeout)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	s.log.System(logFmtListening, listener.Addr().String())

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info(logFmtShuttingDown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.log.Error(logFmtShutdownFailed, err)

		return fmt.Errorf("http shutdown: %w", err)
	}

	return nil
}

type speechRequest struct {
	Text   string   `json:"text"`
	Model  string   `json:"model"`
	Voice  string   `json:"voice"`
	Speed  *float64 `json:"speed"`
	APIKey string   `json:"api_key"`
}

type demoRequest struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
}

type demoResponse struct {
	AudioURL string `json:"audioUrl"`
}

type estimateResponse struct {
	Model      string  `json:"model"`
	Characters int     `json:"characters"`
	PriceUSD   float64 `json:"priceUsd"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set(headerRequestID, requestID)

	var body speechRequest

	err := decodeBody(w, r, &body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	req := s.toRequest(r.Context(), body)

	err = s.checkCatalog(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	s.log.Info(logFmtRequest, requestID, utf8.RuneCountInString(req.Text), req.Config.Model, req.Config.Voice,
		strconv.FormatFloat(req.Config.Speed, 'f', -1, 64))

	result, err := s.session.Synthesize(r.Context(), req, nil)
	if err != nil {
		s.log.Error(logFmtRequestFailed, requestID, err)
		writeError(w, statusFor(err), err)

		return
	}

	s.log.Info(logFmtRequestDone, requestID, result.Size())

	w.Header().Set(headerContentType, result.MediaType)
	w.Header().Set(headerContentDisposition, fmt.Sprintf("attachment; filename=%q", result.Filename()))
	w.Header().Set("Content-Length", strconv.Itoa(result.Size()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *Server) toRequest(ctx context.Context, body speechRequest) playground.Request {
	cfg := core.SynthesisConfig{
		Model:      body.Model,
		Voice:      body.Voice,
		Credential: body.APIKey,
		Speed:      s.defaults.DefaultSpeed,
	}

	if cfg.Model == "" {
		cfg.Model = s.defaults.DefaultModel
	}

	if cfg.Voice == "" {
		cfg.Voice = s.defaults.DefaultVoice
	}

	if body.Speed != nil {
		cfg.Speed = *body.Speed
	}

	if cfg.Credential == "" {
		cfg.Credential, _ = s.session.LastCredential(ctx)
	}

	return playground.Request{Text: body.Text, Config: cfg}
}

func (s *Server) checkCatalog(cfg core.SynthesisConfig) error {
	cat := s.session.Catalog()

	if !cat.HasModel(cfg.Model) {
		return &playground.ValidationError{Field: "model", Err: fmt.Errorf("%w: %q", ErrUnknownModel, cfg.Model)}
	}

	if !cat.HasVoice(cfg.Voice) {
		return &playground.ValidationError{Field: "voice", Err: fmt.Errorf("%w: %q", ErrUnknownVoice, cfg.Voice)}
	}

	return nil
}

func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	var body demoRequest

	err := decodeBody(w, r, &body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	if !demoProviders[body.Provider] {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", ErrUnknownProvider, body.Provider))

		return
	}

	writeJSON(w, http.StatusOK, demoResponse{AudioURL: fmt.Sprintf(demoAudioPathFmt, body.Provider)})
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Catalog())
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	if model == "" {
		model = s.defaults.DefaultModel
	}

	text := r.URL.Query().Get("text")

	writeJSON(w, http.StatusOK, estimateResponse{
		Model:      model,
		Characters: utf8.RuneCountInString(text),
		PriceUSD:   s.session.EstimatePrice(model, text),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func statusFor(err error) int {
	var validationErr *playground.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}

	var synthErr *tts.SynthesisError
	if errors.As(err, &synthErr) {
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// requireLocalJSON answers 415 for non-JSON bodies and 403 for requests whose
// Origin is not the server itself.
func requireLocalJSON(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get(headerContentType))
		if err != nil || mediaType != contentTypeJSON {
			writeError(w, http.StatusUnsupportedMediaType, ErrUnsupportedMediaType)

			return
		}

		if !sameOrigin(r) {
			writeError(w, http.StatusForbidden, ErrForeignOrigin)

			return
		}

		next(w, r)
	}
}

// sameOrigin reports whether r has no Origin header or one naming the host
// the request was sent to.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get(headerOrigin)
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	return parsed.Host == r.Host
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))

	err := decoder.Decode(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
