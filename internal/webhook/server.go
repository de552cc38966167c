package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ovationhq/ovation-core/internal/infrastructure/config"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Ingestor delivers a raw event envelope into the classification and
// dispatch pipeline. Implemented by stream.Manager.
type Ingestor interface {
	Ingest(ctx context.Context, raw []byte) error
}

// HealthChecker reports whether a collaborator is alive.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Logger defines the logging interface required by the webhook server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Server is the inbound HTTP surface: one POST entry per recognized event
// type plus a generic fallback, and a health endpoint covering the store and
// the hub.
//
// Entry points acknowledge success unless the payload is structurally
// unparseable; internal processing failures are logged, not surfaced, since
// the hub does not retry on handler failure.
type Server struct {
	cfg      config.WebhookConfig
	ingestor Ingestor
	store    HealthChecker
	hub      HealthChecker
	logger   Logger
	server   *http.Server
}

// New creates a webhook server. Store and hub health checkers may be nil;
// /healthz then skips them.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If the ingestor is missing
func New(cfg config.WebhookConfig, ingestor Ingestor, store, hub HealthChecker, logger Logger) (*Server, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("webhook: ingestor is required")
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Server{
		cfg:      cfg,
		ingestor: ingestor,
		store:    store,
		hub:      hub,
		logger:   logger,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server is stopped with Close.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("webhook server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webhook server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the webhook server, waiting for in-flight
// requests up to gracefulShutdownTimeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("webhook server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down webhook server: %w", err)
	}
	return nil
}
