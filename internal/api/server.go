// Package api exposes the operator console: ledger records, sync run
// history, mapping management, and manual sync triggering.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/tonglian-sync-backend/internal/api/handlers"
	"github.com/eshaffer321/tonglian-sync-backend/internal/api/middleware"
	"github.com/eshaffer321/tonglian-sync-backend/internal/domain/matcher"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	matcher    *matcher.Matcher
	runner     handlers.SyncRunner
}

// NewServer creates a new API server.
// If runner is nil the manual sync endpoint is not registered; if matcher is
// nil the mapping endpoints are not registered.
func NewServer(cfg Config, repo storage.Repository, m *matcher.Matcher, runner handlers.SyncRunner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		logger:  logger,
		repo:    repo,
		matcher: m,
		runner:  runner,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}
	s.router.Use(middleware.CORS(corsConfig))
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Ledger records
		ordersHandler := handlers.NewOrdersHandler(s.repo)
		r.Get("/orders", ordersHandler.List)
		r.Get("/orders/{id}", ordersHandler.Get)

		// Sync run history
		runsHandler := handlers.NewRunsHandler(s.repo)
		r.Get("/runs", runsHandler.List)

		// Stats
		statsHandler := handlers.NewStatsHandler(s.repo)
		r.Get("/stats", statsHandler.Get)

		// Product mappings
		if s.matcher != nil {
			mappingsHandler := handlers.NewMappingsHandler(s.matcher)
			r.Get("/mappings", mappingsHandler.List)
			r.Post("/mappings", mappingsHandler.Add)
			r.Delete("/mappings/{id}", mappingsHandler.Remove)
			r.Get("/mappings/stats", mappingsHandler.Stats)
		}

		// Manual sync trigger
		if s.runner != nil {
			syncHandler := handlers.NewSyncHandler(s.runner)
			r.Post("/sync", syncHandler.Trigger)
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
