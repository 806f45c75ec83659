package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kosa-aws-develop-figh2team/embed-service/internal/models"
)

// errProcessing is the only error detail exposed to callers on internal
// failures; everything else goes to the logs.
const errProcessing = "processing error"

type ingestRequest struct {
	Text      string `json:"text"`
	ServiceID string `json:"service_id"`
}

type ingestBatchRequest struct {
	Chunks    []string `json:"chunks"`
	ServiceID string   `json:"service_id"`
	Async     bool     `json:"async,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" || req.ServiceID == "" {
		s.respondError(w, http.StatusBadRequest, "text and service_id are required")
		return
	}
	s.logger.Debug("ingest request", zap.String("service_id", req.ServiceID))

	id, err := s.writer.SaveOne(r.Context(), req.Text, req.ServiceID)
	if err != nil {
		s.logger.Error("ingest failed", zap.String("service_id", req.ServiceID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, errProcessing)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var req ingestBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ServiceID == "" {
		s.respondError(w, http.StatusBadRequest, "service_id is required")
		return
	}
	if len(req.Chunks) == 0 {
		s.respondError(w, http.StatusBadRequest, "chunks must not be empty")
		return
	}
	s.logger.Debug("batch ingest request",
		zap.String("service_id", req.ServiceID),
		zap.Int("chunks", len(req.Chunks)),
		zap.Bool("async", req.Async),
	)

	if req.Async {
		jobID := uuid.NewString()
		// Completion or failure is observable only via the status tracker.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			if _, err := s.writer.SaveMany(ctx, req.Chunks, req.ServiceID); err != nil {
				s.logger.Error("async batch failed",
					zap.String("job_id", jobID),
					zap.String("service_id", req.ServiceID),
					zap.Error(err),
				)
			}
		}()
		s.respondJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "accepted"})
		return
	}

	ids, err := s.writer.SaveMany(r.Context(), req.Chunks, req.ServiceID)
	if err != nil {
		s.logger.Error("batch ingest failed", zap.String("service_id", req.ServiceID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, errProcessing)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"ids": ids, "count": len(ids)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if query.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	topK := query.TopK
	if topK == 0 {
		topK = s.config.Search.DefaultTopK
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("top_k", topK), zap.String("mode", query.Mode))

	var (
		results []models.SearchResult
		err     error
	)
	switch query.Mode {
	case models.SearchModeHybrid, "":
		results, err = s.retriever.Search(r.Context(), query.Query, topK)
	case models.SearchModeVector:
		results, err = s.retriever.SearchVector(r.Context(), query.Query, topK)
	default:
		s.respondError(w, http.StatusBadRequest, "unknown search mode")
		return
	}
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, errProcessing)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	serviceID := chi.URLParam(r, "serviceID")
	chunks, err := s.store.ListChunks(r.Context(), serviceID)
	if err != nil {
		s.logger.Error("list chunks failed", zap.String("service_id", serviceID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, errProcessing)
		return
	}

	ids := make([]string, 0, len(chunks))
	contents := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
		contents = append(contents, c.Content)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"vector_ids": ids,
		"content":    contents,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
