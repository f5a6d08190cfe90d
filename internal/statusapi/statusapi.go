// Package statusapi serves the agent's local observability surface:
// liveness, readiness, Prometheus metrics, and the recent command
// journal. It binds to loopback by default and carries no auth; it is
// an operator-facing local endpoint, not part of the control plane.
package statusapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/remora-dev/remora/internal/journal"
	"github.com/remora-dev/remora/internal/observability"
)

const defaultRecentLimit = 50

// Config configures the status server.
type Config struct {
	ListenAddr string // e.g. "127.0.0.1:7600"

	MetricsRegistry *prometheus.Registry         // nil disables /metrics.
	HealthChecker   *observability.HealthChecker // nil makes /readyz always ok.
	Journal         *journal.Journal             // nil disables /journal/recent.
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// Server is the local status HTTP server.
type Server struct {
	config Config
	logger *slog.Logger
	okapi  *okapi.Okapi
	server *http.Server
}

// NewServer creates a status server.
func NewServer(cfg Config, logger *slog.Logger) *Server {
	return &Server{
		config: cfg,
		logger: logger,
		okapi:  okapi.New(),
	}
}

// Start launches the HTTP server and blocks until it exits or ctx is
// canceled.
func (s *Server) Start(ctx context.Context) error {
	s.okapi.Get("/healthz", s.handleLiveness)
	s.okapi.Get("/readyz", s.handleReadiness)

	if s.config.MetricsRegistry != nil {
		s.okapi.HandleStd("GET", "/metrics",
			promhttp.HandlerFor(s.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if s.config.Journal != nil {
		s.okapi.Get("/journal/recent", s.handleJournalRecent)
	}

	s.server = &http.Server{
		Addr:              s.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	s.logger.Info("status server starting", slog.String("addr", s.config.ListenAddr))
	return s.okapi.StartServer(s.server)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("status server stopping")
	return s.okapi.Shutdown(s.server)
}

func (s *Server) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (s *Server) handleReadiness(c *okapi.Context) error {
	if s.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := s.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

func (s *Server) handleJournalRecent(c *okapi.Context) error {
	limit := defaultRecentLimit
	if raw := c.Request().URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 1000"})
		}
		limit = n
	}

	entries, err := s.config.Journal.Recent(c.Context(), limit)
	if err != nil {
		s.logger.ErrorContext(c.Context(), "journal query failed",
			slog.String("error", err.Error()),
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "journal unavailable"})
	}
	return c.OK(map[string]any{"entries": entries})
}
