// Package retrieval implements the hybrid query core.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kosa-aws-develop-figh2team/embed-service/internal/config"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/embedding"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/models"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/storage"
)

// Retriever answers similarity queries. It embeds the query text through the
// same gateway used at ingestion and delegates scoring to the store, which
// ranks by an equal-weighted blend of vector similarity and lexical relevance.
type Retriever struct {
	store    storage.Store
	embedder embedding.Embedder
	config   *config.SearchConfig
	logger   *zap.Logger
}

// NewRetriever creates a retriever with the given dependencies.
func NewRetriever(store storage.Store, embedder embedding.Embedder, cfg *config.SearchConfig, logger *zap.Logger) *Retriever {
	return &Retriever{
		store:    store,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
	}
}

// Search returns up to topK chunks ranked by hybrid score, best first.
// A non-positive topK yields an empty result without embedding the query or
// touching storage.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	topK = r.clampTopK(topK)
	if topK <= 0 {
		return []models.SearchResult{}, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := r.store.HybridSearch(ctx, queryVec, query, topK)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("hybrid search complete", zap.Int("top_k", topK), zap.Int("results", len(results)))
	return results, nil
}

// SearchVector returns up to topK chunks ranked by cosine distance alone,
// nearest first. Same validation as Search.
func (r *Retriever) SearchVector(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	topK = r.clampTopK(topK)
	if topK <= 0 {
		return []models.SearchResult{}, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := r.store.VectorSearch(ctx, queryVec, topK)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("vector search complete", zap.Int("top_k", topK), zap.Int("results", len(results)))
	return results, nil
}

// clampTopK caps topK at the configured maximum. Zero and negative values
// pass through so callers get an empty result rather than an unbounded scan.
func (r *Retriever) clampTopK(topK int) int {
	if r.config.MaxTopK > 0 && topK > r.config.MaxTopK {
		return r.config.MaxTopK
	}
	return topK
}
