// Package httpserver exposes the health snapshot, source administration and
// Prometheus metrics over HTTP.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/eas-monitor/internal/audiocore/registry"
	"github.com/tphakala/eas-monitor/internal/health"
	"github.com/tphakala/eas-monitor/internal/logging"
	"github.com/tphakala/eas-monitor/internal/observability"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 5 * time.Second
	bodyLimit       = "64K"
)

// SourceAdmin is the source registry as seen by the admin API.
type SourceAdmin interface {
	List() []registry.Source
	Get(id string) (registry.Source, error)
	Start(ctx context.Context, id string) error
	Stop(id string) error
	Restart(ctx context.Context, id string) error
}

// HealthProvider returns the current health snapshot.
type HealthProvider interface {
	Snapshot() health.Snapshot
}

// Server serves the health and admin API.
type Server struct {
	echo    *echo.Echo
	listen  string
	version string
	sources SourceAdmin
	health  HealthProvider
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics serves /metrics from m and records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New creates a server listening on listen (host:port).
func New(listen string, sources SourceAdmin, hp HealthProvider, opts ...Option) *Server {
	s := &Server{
		listen:  listen,
		sources: sources,
		health:  hp,
		logger:  serviceLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = readTimeout
	s.echo.Server.WriteTimeout = writeTimeout
	s.echo.Server.IdleTimeout = idleTimeout
	s.echo.HTTPErrorHandler = s.errorHandler

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func serviceLogger() *slog.Logger {
	logger := logging.ForService("httpserver")
	if logger == nil {
		logger = slog.Default().With("service", "httpserver")
	}
	return logger
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(newRequestLogger(s.logger))
	if s.metrics != nil {
		s.echo.Use(requestMetrics(s.metrics.HTTP))
	}
	s.echo.Use(echomw.BodyLimit(bodyLimit))
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api/v1")
	api.GET("/health", s.getHealth)
	api.GET("/sources", s.listSources)
	api.GET("/sources/:id", s.getSource)
	api.POST("/sources/:id/start", s.startSource)
	api.POST("/sources/:id/stop", s.stopSource)
	api.POST("/sources/:id/restart", s.restartSource)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// ServeHTTP makes the server usable as a plain http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln
	s.logger.Info("HTTP server started", "address", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	<-errCh
	s.logger.Info("HTTP server stopped")
	return nil
}
