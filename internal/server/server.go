// Package server exposes the monitoring HTTP API: health, status, quotes,
// detected opportunities, the trade ledger, and the auto-execution toggle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/arbcorelabs/arbcore/internal/server/handler"
	"github.com/arbcorelabs/arbcore/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers the server registers. Nil entries
// leave their routes unregistered.
type Handlers struct {
	Health        *handler.HealthHandler
	Status        *handler.StatusHandler
	Quotes        *handler.QuotesHandler
	Opportunities *handler.OpportunitiesHandler
	Attempts      *handler.AttemptsHandler
	Archive       *handler.ArchiveHandler
	Loop          *handler.LoopHandler
}

// Server is the headless monitoring API for the arbitrage engine.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered on the ServeMux and the
// middleware chain (rate limit, logging, CORS, auth) applied.
func New(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	if handlers.Health != nil {
		mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	}
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}
	if handlers.Quotes != nil {
		mux.HandleFunc("GET /api/quotes", handlers.Quotes.List)
	}
	if handlers.Opportunities != nil {
		mux.HandleFunc("GET /api/opportunities", handlers.Opportunities.List)
	}
	if handlers.Attempts != nil {
		mux.HandleFunc("GET /api/attempts", handlers.Attempts.ListRecent)
	}
	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/archive", handlers.Archive.List)
	}
	if handlers.Loop != nil {
		mux.HandleFunc("GET /api/loop", handlers.Loop.GetState)
		mux.HandleFunc("POST /api/loop/enable", handlers.Loop.Enable)
		mux.HandleFunc("POST /api/loop/disable", handlers.Loop.Disable)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.RateLimit(rate.Limit(20), 40)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
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
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
