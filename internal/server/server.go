// Package server provides the HTTP API for embed-service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kosa-aws-develop-figh2team/embed-service/internal/config"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/ingest"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/retrieval"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/storage"
)

// Server is the HTTP server for the embed-service API.
type Server struct {
	writer    *ingest.Writer
	retriever *retrieval.Retriever
	store     storage.Store
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	writer *ingest.Writer,
	retriever *retrieval.Retriever,
	store storage.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		writer:    writer,
		retriever: retriever,
		store:     store,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/embeddings", s.handleIngest)
	r.Post("/api/v1/embeddings/batch", s.handleIngestBatch)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/services/{serviceID}/chunks", s.handleListChunks)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
