// Package core provides the HTTP chassis for the webhook receiver. It builds
// a chi router that serves both a standard net/http listener (local) and AWS
// Lambda API Gateway proxy events, and applies the cross-cutting concerns
// (panic recovery, request IDs, logging, metrics, error envelopes) before
// requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"commercepay/internal/config"
)

// MetricsCollector records per-request telemetry.
type MetricsCollector interface {
	RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration)
}

// RouteRegistrar mounts domain routes on the router. Handler packages
// provide registrars so core does not import them.
type RouteRegistrar func(r chi.Router)

// Server holds the dependencies of the HTTP surface.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Metrics      MetricsCollector // optional
	HealthProbes []HealthProbe
	Registrars   []RouteRegistrar

	router *chi.Mux
}

// NewServer validates its inputs and prepares an empty router. Call
// MountRoutes after the optional fields are set.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}
