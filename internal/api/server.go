package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/nodewatch/internal/api/handler"
	mw "github.com/edvin/nodewatch/internal/api/middleware"
	"github.com/edvin/nodewatch/internal/config"
	"github.com/edvin/nodewatch/internal/core"
)

type Server struct {
	router    chi.Router
	logger    zerolog.Logger
	pool      *pgxpool.Pool
	cfg       *config.Config
	registry  *core.RegistryService
	refresher handler.MetricsRefresher
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, cfg *config.Config, registry *core.RegistryService, refresher handler.MetricsRefresher) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger,
		pool:      pool,
		cfg:       cfg,
		registry:  registry,
		refresher: refresher,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	node := handler.NewNode(s.registry)
	heartbeat := handler.NewHeartbeat(s.registry)
	admin := handler.NewAdmin(s.registry, s.refresher, s.cfg.PruneDays)

	s.router.Route("/api", func(r chi.Router) {
		// The fleet overview is read-only and stays open.
		r.Get("/nodes", node.List)

		r.Group(func(r chi.Router) {
			r.Use(mw.BearerAuth(s.cfg.SharedSecret))
			r.Post("/heartbeat", heartbeat.Ingest)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.BearerAuth(s.cfg.AdminToken))
			r.Post("/rename", admin.Rename)
			r.Post("/prune", admin.Prune)
			r.Post("/refresh", admin.Refresh)
			r.Delete("/nodes/{nodeID}", admin.Delete)
			r.Put("/nodes/{nodeID}/alerts", admin.ToggleAlerts)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
