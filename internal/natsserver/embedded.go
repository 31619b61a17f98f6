// Package natsserver runs an in-process NATS server with JetStream so the
// nats cache backend works without external infrastructure.
package natsserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-playground/internal/config"
	"github.com/nats-io/nats-server/v2/server"
)

const (
	embeddedHost = "127.0.0.1"
	readyTimeout = 5 * time.Second
)

// ErrNotReady indicates the embedded server did not accept connections in time.
var ErrNotReady = errors.New("embedded NATS server failed to start")

// EmbeddedServer wraps a NATS server instance.
type EmbeddedServer struct {
	ns  *server.Server
	log *logger.Logger
}

// Start creates and starts an embedded NATS server with JetStream enabled.
// It returns nil when cfg does not ask for an embedded server.
func Start(cfg config.StoreConfig, log *logger.Logger) (*EmbeddedServer, error) {
	if !cfg.NATSEmbedded {
		return nil, nil
	}

	opts := &server.Options{
		Host:      embeddedHost,
		Port:      cfg.NATSPort,
		JetStream: true,
		StoreDir:  cfg.NATSStoreDir,
		NoSigs:    true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()

		return nil, fmt.Errorf("%w within %s", ErrNotReady, readyTimeout)
	}

	log.Info("Embedded NATS server started at %s (store dir %s)", ns.ClientURL(), cfg.NATSStoreDir)

	return &EmbeddedServer{ns: ns, log: log}, nil
}

// ClientURL returns the URL clients connect to.
func (e *EmbeddedServer) ClientURL() string {
	return e.ns.ClientURL()
}

// Shutdown stops the server and waits for it to exit. It is safe on nil.
func (e *EmbeddedServer) Shutdown() {
	if e == nil || e.ns == nil {
		return
	}

	e.log.Info("Shutting down embedded NATS server")
	e.ns.Shutdown()
	e.ns.WaitForShutdown()
}
