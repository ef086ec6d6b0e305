// Package server exposes health, readiness and Prometheus metrics over HTTP,
// plus an upload endpoint that runs the code pipeline on a single frame.
package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net"
	"net/http"
	"time"

	"github.com/MeKo-Tech/codespot/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// CodeFinder runs the code pipeline on a frame.
type CodeFinder interface {
	FindCodes(ctx context.Context, img image.Image) pipeline.Outcome
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Config contains HTTP server settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	MaxUploadMB     int64
	RequestTimeout  time.Duration
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":9090",
		ShutdownTimeout: 10 * time.Second,
		MaxUploadMB:     20,
		RequestTimeout:  30 * time.Second,
	}
}

// Server serves the operational endpoints.
type Server struct {
	cfg    Config
	finder CodeFinder
	checks map[string]ReadinessCheck
	logger *zap.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithCodeFinder enables POST /v1/codes.
func WithCodeFinder(f CodeFinder) Option {
	return func(s *Server) { s.finder = f }
}

// WithReadinessCheck adds a named check to GET /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithLogger sets the server's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server; it does not listen until Run.
func New(cfg Config, opts ...Option) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = DefaultConfig().MaxUploadMB
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	s := &Server{cfg: cfg, checks: map[string]ReadinessCheck{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.instrument("/healthz", s.healthHandler))
	mux.HandleFunc("/readyz", s.instrument("/readyz", s.readyHandler))
	mux.Handle("/metrics", promhttp.Handler())
	if s.finder != nil {
		mux.HandleFunc("/v1/codes", s.instrument("/v1/codes", s.codesHandler))
	}
	return mux
}

// Run listens on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
