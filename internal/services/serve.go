package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/conneroisu/seedling/internal/config"
	"github.com/conneroisu/seedling/internal/logging"
	"github.com/conneroisu/seedling/internal/metrics"
	"github.com/conneroisu/seedling/internal/server"
)

// ShutdownTimeout bounds the graceful shutdown of the HTTP server.
const ShutdownTimeout = 10 * time.Second

// ServeService runs the rendering HTTP server.
type ServeService struct {
	config *config.Config
	logger logging.Logger
}

// NewServeService creates a new serve service
func NewServeService(cfg *config.Config, logger logging.Logger) *ServeService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ServeService{config: cfg, logger: logger}
}

// ServerInfo describes where and what the server serves.
type ServerInfo struct {
	Host       string
	Port       int
	ServerURL  string
	MetricsURL string
	Mode       string
	Module     string
}

// GetServerInfo returns information about the server configuration
func (s *ServeService) GetServerInfo() *ServerInfo {
	url := "http://" + s.config.Addr()
	return &ServerInfo{
		Host:       s.config.Server.Host,
		Port:       s.config.Server.Port,
		ServerURL:  url,
		MetricsURL: url + "/metrics",
		Mode:       s.config.Render.Mode,
		Module:     s.config.Render.Module,
	}
}

// Serve listens on the configured address until ctx is cancelled.
func (s *ServeService) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Addr(), err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *ServeService) ServeListener(ctx context.Context, ln net.Listener) error {
	rec := metrics.New()
	render, err := NewRenderService(s.config, s.logger, rec)
	if err != nil {
		_ = ln.Close()
		return err
	}
	if err := render.Watch(ctx); err != nil {
		s.logger.Warn(ctx, err, "module watching disabled")
	}
	defer func() {
		if err := render.Close(); err != nil {
			s.logger.Warn(ctx, err, "closing module watcher")
		}
	}()

	srv := server.New(s.config, render, rec, s.logger)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.WithoutCancel(ctx), ln) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return <-done
}
