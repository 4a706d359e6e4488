package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/pipeline"
	"github.com/opensource-finance/agencysim/internal/rules"
	"github.com/opensource-finance/agencysim/internal/scoring"
	"github.com/opensource-finance/agencysim/internal/simulator"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, sim *simulator.Simulator, processor *pipeline.Processor, scorer *scoring.Scorer, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, sim, processor, scorer, version)
	router := chi.NewRouter()

	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5, "application/json", "text/html", "text/markdown"))

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	router.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Simulation
		r.Post("/simulate/month", handler.SimulateMonth)
		r.Post("/simulate/run", handler.SimulateRun)

		// Reports
		r.Post("/reports", handler.CreateReport)
		r.Get("/reports", handler.ListReports)
		r.Get("/reports/{id}", handler.GetReport)
		r.Get("/reports/{id}/html", handler.GetReportHTML)
		r.Get("/reports/{id}/markdown", handler.GetReportMarkdown)

		// Leads
		r.Post("/leads/score", handler.ScoreLeads)
		r.Post("/leads/import", handler.ImportLeads)

		// Scoring rule management
		r.Get("/scoring-rules", handler.ListScoringRules)
		r.Post("/scoring-rules", handler.CreateScoringRule)
		r.Delete("/scoring-rules/{id}", handler.DeleteScoringRule)
		r.Post("/scoring-rules/reload", handler.ReloadScoringRules)
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
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       time.Duration(s.config.ReadTimeout) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:       120 * time.Second,
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
