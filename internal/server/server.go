// Package server exposes the bot's observability surface over HTTP: health,
// Prometheus metrics, and a small read-only JSON API for dashboards.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantfall/xrparb/internal/server/handler"
	"github.com/quantfall/xrparb/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port   int
	APIKey string // if empty, the /api routes are unauthenticated
}

// Handlers aggregates the HTTP handlers the server registers. Nil fields are
// skipped, so a detect-only deployment without Postgres simply lacks the
// corresponding routes.
type Handlers struct {
	Health        *handler.HealthHandler
	Executions    *handler.ExecutionHandler
	Trades        *handler.TradeHandler
	Opportunities *handler.OpportunityHandler
	Positions     *handler.PositionHandler
}

// Server is the read-only HTTP API and metrics endpoint.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the router and middleware chain. The Prometheus registry
// is served at /metrics; registry may be nil to disable it.
func NewServer(cfg Config, handlers Handlers, registry *prometheus.Registry, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)

	if handlers.Health != nil {
		r.Get("/healthz", handlers.Health.Check)
	}
	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.APIKey))

		if handlers.Executions != nil {
			r.Get("/executions", handlers.Executions.ListRecent)
			r.Get("/executions/stats", handlers.Executions.Stats)
		}
		if handlers.Trades != nil {
			r.Get("/trades", handlers.Trades.List)
		}
		if handlers.Opportunities != nil {
			r.Get("/opportunities", handlers.Opportunities.ListRecent)
		}
		if handlers.Positions != nil {
			r.Get("/positions", handlers.Positions.Snapshot)
		}
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
