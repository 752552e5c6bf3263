// Package server provides the HTTP API for vecshard.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/vecshard/internal/config"
	"github.com/hyperjump/vecshard/internal/embedding"
	"github.com/hyperjump/vecshard/internal/store"
)

// Server is the HTTP server for the vecshard API.
type Server struct {
	store    *store.Store
	embedder embedding.Embedder
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. embedder may be nil, in which case
// requests carrying text instead of a vector are rejected.
func NewServer(st *store.Store, embedder embedding.Embedder, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:    st,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if s.config.Debug {
		r.Use(middleware.Logger)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects/{project}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteProject)
			r.Post("/entries", s.handleStoreEntry)
			r.Post("/entries/batch", s.handleBatchStore)
			r.Delete("/entries/{id}", s.handleDeleteEntry)
			r.Post("/search", s.handleSearch)
			r.Get("/count", s.handleCount)
			r.Post("/reload", s.handleReload)
		})
		r.Get("/shards", s.handleShardStats)
		r.Post("/rebalance", s.handleRebalance)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
