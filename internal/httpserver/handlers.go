package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/eas-monitor/internal/audiocore/registry"
	"github.com/tphakala/eas-monitor/internal/errors"
	"github.com/tphakala/eas-monitor/internal/health"
)

// Overall health states.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded" // some sources not running or silent
	StatusDown     = "down"     // no source delivering audio
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	health.Snapshot
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) getHealth(c echo.Context) error {
	snap := s.health.Snapshot()
	status := overallStatus(snap)

	code := http.StatusOK
	if status == StatusDown {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, HealthResponse{Status: status, Version: s.version, Snapshot: snap})
}

// overallStatus is healthy when every known source runs with audio, down
// when none does.
func overallStatus(snap health.Snapshot) string {
	if len(snap.Sources) == 0 {
		return StatusDegraded
	}
	live := 0
	for _, src := range snap.Sources {
		if src.Status == string(registry.StateRunning) && !src.Silent {
			live++
		}
	}
	switch live {
	case len(snap.Sources):
		return StatusHealthy
	case 0:
		return StatusDown
	default:
		return StatusDegraded
	}
}

func (s *Server) listSources(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sources.List())
}

func (s *Server) getSource(c echo.Context) error {
	src, err := s.sources.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, src)
}

func (s *Server) startSource(c echo.Context) error {
	return s.adminOperation(c, "start", func(ctx context.Context, id string) error {
		return s.sources.Start(ctx, id)
	})
}

func (s *Server) stopSource(c echo.Context) error {
	return s.adminOperation(c, "stop", func(_ context.Context, id string) error {
		return s.sources.Stop(id)
	})
}

func (s *Server) restartSource(c echo.Context) error {
	return s.adminOperation(c, "restart", func(ctx context.Context, id string) error {
		return s.sources.Restart(ctx, id)
	})
}

// adminOperation runs op on the source named in the path and responds with
// the source's state afterwards.
func (s *Server) adminOperation(c echo.Context, name string, op func(context.Context, string) error) error {
	id := c.Param("id")
	err := op(c.Request().Context(), id)
	if s.metrics != nil {
		s.metrics.HTTP.RecordAdminOperation(name, err)
	}
	if err != nil {
		s.logger.Warn("source operation failed", "operation", name, "source_id", id, "error", err)
		return err
	}

	s.logger.Info("source operation completed", "operation", name, "source_id", id)
	src, err := s.sources.Get(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, src)
}

// errorHandler maps enhanced error categories to status codes.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	case errors.IsCategory(err, errors.CategoryNotFound):
		code = http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryState),
		errors.IsCategory(err, errors.CategoryConflict):
		code = http.StatusConflict
	case errors.IsCategory(err, errors.CategoryConfiguration),
		errors.IsCategory(err, errors.CategoryValidation):
		code = http.StatusBadRequest
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Error: msg})
	}
	if err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}
