// Package server provides the HTTP API for hawker's serve mode.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hawkshop/hawker/internal/config"
	"github.com/hawkshop/hawker/internal/pipeline"
	"github.com/hawkshop/hawker/internal/storage"
)

// Server is the HTTP server for the hawker API.
type Server struct {
	pipe   *pipeline.Pipeline
	store  storage.Backend
	config config.ServerConfig
	logger *slog.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies. store may be nil
// when no run-history backend is configured; the runs endpoint then returns
// 404.
func NewServer(pipe *pipeline.Pipeline, store storage.Backend, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		pipe:   pipe,
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// Router builds the chi router. Exposed separately so tests can drive
// handlers through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/runs", s.handleRuns)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
