// Package server is the HTTP front of seedling: it serves client assets,
// negotiates the page language and answers every other path with a
// server-rendered page or its failure document.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/seedling/internal/config"
	"github.com/conneroisu/seedling/internal/logging"
	"github.com/conneroisu/seedling/internal/metrics"
	"github.com/conneroisu/seedling/internal/middleware"
)

// PageRenderer renders the page at a request path.
type PageRenderer interface {
	Render(ctx context.Context, pagePath, language string) (string, error)
}

// Server serves rendered pages.
type Server struct {
	config   *config.Config
	renderer PageRenderer
	metrics  *metrics.Recorder
	logger   logging.Logger
	started  time.Time

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
	closed       bool
}

// New creates a server. rec and logger may be nil.
func New(cfg *config.Config, renderer PageRenderer, rec *metrics.Recorder, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		config:   cfg,
		renderer: renderer,
		metrics:  rec,
		logger:   logger,
		started:  time.Now(),
	}
}

// Handler returns the routed handler wrapped in the default middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/", s.handleRoot)

	chain := middleware.NewDefaultChain(middleware.Dependencies{
		Config:  s.config,
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	return chain.Apply(mux)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.serverMutex.Lock()
	if s.closed {
		s.serverMutex.Unlock()
		_ = ln.Close()
		return nil
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "server listening", "addr", ln.Addr().String(), "environment", s.config.Server.Environment)
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server. Later calls are no-ops.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down server")

		s.serverMutex.Lock()
		s.closed = true
		server := s.httpServer
		s.serverMutex.Unlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})
	return shutdownErr
}
