// Package coordination bridges isolated workers to shared run state.
// This file implements the loopback HTTP server exposing the protocol.
package coordination

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	dilerrors "github.com/mrz1836/dilagent/internal/errors"
)

// Server hosts the coordination protocol on a loopback-only listener.
// Workers on the same machine are the only intended callers; nothing binds to
// a routable interface.
type Server struct {
	echo *echo.Echo
	svc  *Service
	port int
}

// NewServer creates a Server for the service. Port 0 picks a free port;
// the actual address is available from Addr after Start.
func NewServer(svc *Service, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, svc: svc, port: port}
	s.registerRoutes()
	return s
}

// registerRoutes registers the four coordination operations plus liveness.
func (s *Server) registerRoutes() {
	s.echo.POST("/v1/hypotheses/:id/status", s.handleReportStatus)
	s.echo.POST("/v1/hypotheses/:id/result", s.handleSetResult)
	s.echo.GET("/v1/hypotheses/status", s.handleQueryStatuses)
	s.echo.POST("/v1/reset", s.handleReset)
	s.echo.GET("/health", s.handleHealth)
}

// Start binds the loopback listener and serves until Shutdown or failure.
// It blocks; run it in its own goroutine or errgroup.
func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	log.Info().Str("addr", addr).Msg("coordination server starting")

	err := s.echo.Start(addr)
	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.echo.ListenerAddr()
}

// handleReportStatus handles POST /v1/hypotheses/:id/status.
func (s *Server) handleReportStatus(c echo.Context) error {
	hypothesisID := c.Param("id")

	var req StatusReportRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmt.Errorf("%w: %w", dilerrors.ErrInvalidPayload, err))
	}
	if err := req.Validate(); err != nil {
		return writeError(c, err)
	}

	if err := s.svc.ReportStatus(c.Request().Context(), hypothesisID, req.Phase, req.ExperimentID, req.Message, req.Evidence); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, AckResponse{OK: true})
}

// handleSetResult handles POST /v1/hypotheses/:id/result.
func (s *Server) handleSetResult(c echo.Context) error {
	hypothesisID := c.Param("id")

	var req SetResultRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, fmt.Errorf("%w: %w", dilerrors.ErrInvalidPayload, err))
	}
	result, err := req.Validate()
	if err != nil {
		return writeError(c, err)
	}

	if err = s.svc.SetResult(c.Request().Context(), hypothesisID, result); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, AckResponse{OK: true})
}

// handleQueryStatuses handles GET /v1/hypotheses/status.
func (s *Server) handleQueryStatuses(c echo.Context) error {
	statuses, err := s.svc.QueryAllStatuses(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, QueryStatusesResponse{Statuses: statuses})
}

// handleReset handles POST /v1/reset.
func (s *Server) handleReset(c echo.Context) error {
	if err := s.svc.ResetAll(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, AckResponse{OK: true})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// writeError maps a service error onto the protocol's structured error body
// and HTTP status.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case stderrors.Is(err, dilerrors.ErrInvalidPayload), stderrors.Is(err, dilerrors.ErrInvalidResult):
		status = http.StatusBadRequest
	case stderrors.Is(err, dilerrors.ErrUnknownHypothesis):
		status = http.StatusNotFound
	case stderrors.Is(err, dilerrors.ErrHypothesisTerminal):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("coordination request failed")
	}
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}
