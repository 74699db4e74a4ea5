// Package server exposes the HTTP surface: the public keyword search endpoint
// and the JWT-protected admin configuration endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"top3hunter/internal/config"
	"top3hunter/internal/configstore"
	"top3hunter/internal/core"
	"top3hunter/internal/logger"
)

// SearchRunner executes the recommendation pipeline for one keyword.
type SearchRunner interface {
	Run(ctx context.Context, keyword string) (*core.SearchResponse, error)
}

// SettingsStore is the configuration-table surface the admin API needs.
type SettingsStore interface {
	List(ctx context.Context) ([]configstore.Entry, error)
	GetByGroup(ctx context.Context, group string) ([]configstore.Entry, error)
	BatchUpdate(ctx context.Context, settings map[string]string) error
	Seed(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// CacheControl lets handlers invalidate and health-check the cache layer.
type CacheControl interface {
	Delete(ctx context.Context, key string) bool
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	pipeline   SearchRunner
	store      SettingsStore
	cache      CacheControl
	cfg        *config.Config
	log        *slog.Logger
}

// New creates a new HTTP server instance
func New(runner SearchRunner, store SettingsStore, cacheCtl CacheControl, cfg *config.Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		pipeline: runner,
		store:    store,
		cache:    cacheCtl,
		cfg:      cfg,
		log:      logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	// Bound a little above the combined search and analysis timeouts so the
	// pipeline, not the router, decides how a slow provider is reported.
	s.router.Use(middleware.Timeout(s.cfg.Search.Timeout + s.cfg.LLM.Timeout + 10*time.Second))

	if s.cfg.Server.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Server.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.handleAdminLogin)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/settings", s.handleGetSettings)
				r.Put("/settings", s.handleUpdateSettings)
				r.Post("/seed", s.handleSeed)
				r.Get("/health", s.handleAdminHealth)
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.cfg.Server.ReadTimeout,
		"write_timeout", s.cfg.Server.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
