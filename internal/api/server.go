package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/harrier/internal/breach"
	"github.com/opensource-finance/harrier/internal/cooldown"
	"github.com/opensource-finance/harrier/internal/dashboard"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, breaches *breach.Service, dashboards *dashboard.Service, cooldowns *cooldown.Service, version string) *Server {
	handler := NewHandler(repo, cache, bus, breaches, dashboards, cooldowns, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Rule set management
		r.Get("/rulesets", handler.ListRuleSets)
		r.Post("/rulesets", handler.CreateRuleSet)
		r.Get("/rulesets/{id}", handler.GetRuleSet)
		r.Put("/rulesets/{id}", handler.UpdateRuleSet)
		r.Delete("/rulesets/{id}", handler.DeleteRuleSet)
		r.Put("/rulesets/{id}/rules/{ruleType}", handler.UpsertSubRule)
		r.Get("/rulesets/{id}/summary", handler.RuleSetSummary)

		// Breach ingest and query
		r.Post("/breaches", handler.IngestBreach)
		r.Get("/breaches", handler.ListBreaches)

		// Dashboard rollups
		r.Get("/dashboard/kpis", handler.DashboardKPIs)
		r.Get("/dashboard/heatmap", handler.DashboardHeatmap)
		r.Get("/dashboard/toprulesets", handler.DashboardTopRuleSets)

		// Cooldown lifecycle
		r.Get("/cooldowns", handler.ListCooldowns)
		r.Post("/cooldowns", handler.StartCooldown)
		r.Post("/cooldowns/{id}/end", handler.EndCooldown)

		// Provider registry
		r.Get("/providers", handler.ListProviders)
		r.Post("/providers", handler.CreateProvider)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
