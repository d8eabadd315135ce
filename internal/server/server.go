// Package server exposes the context engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/amagilabs/kasane/internal/config"
	"github.com/amagilabs/kasane/internal/rag"
)

// Server is the HTTP API over a rag.Service.
type Server struct {
	svc    *rag.Service
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(svc *rag.Service, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, config: cfg, logger: logger}
}

// Handler builds the route tree. Exposed separately so tests can drive the
// API through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/documents", s.handleIngestDocument)
	r.Delete("/api/v1/documents/{source}", s.handleRemoveSource)
	r.Post("/api/v1/retrieve", s.handleRetrieve)
	r.Get("/api/v1/stats", s.handleStats)
	r.Delete("/api/v1/chunks", s.handleClear)
	r.Get("/api/v1/export", s.handleExport)
	r.Post("/api/v1/import", s.handleImport)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
