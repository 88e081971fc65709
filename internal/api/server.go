package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Pris83/retirement-calculator/internal/domain"
	"github.com/Pris83/retirement-calculator/internal/maintenance"
	"github.com/Pris83/retirement-calculator/internal/plan"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server. repo, cache and bus are only used by health checks
// and history and may be nil.
func NewServer(cfg domain.ServerConfig, calc *plan.Service, maint *maintenance.Service, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Server {
	handler := NewHandler(calc, maint, repo, cache, bus, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(MetricsMiddleware)      // Prometheus request metrics
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	router.NotFound(handler.NotFound)
	router.MethodNotAllowed(handler.MethodNotAllowed)

	// Operational endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Handle("/metrics", promhttp.Handler())

	// Plan calculation
	router.Route("/retirement-plans", func(r chi.Router) {
		r.With(handler.RequireReady).Post("/calculate", handler.Calculate)
		r.Get("/history", handler.History)
	})

	// Cache maintenance
	router.Route("/cache", func(r chi.Router) {
		r.Get("/status/{key}", handler.CacheStatus)
		r.Put("/refresh/{key}", handler.RefreshCache)
		r.Post("/refreshAll", handler.RefreshAllCache)
		r.Get("/get/{key}", handler.GetCache)
		r.Get("/all", handler.GetAllCache)
		r.Post("/set", handler.SetCache)
		r.Delete("/delete/{key}", handler.DeleteCache)
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

// SetReady flips the readiness probe. The server reports not ready until startup loading completes.
func (s *Server) SetReady(ready bool) {
	s.handler.ready.Store(ready)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
