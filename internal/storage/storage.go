// Package storage defines the persistence interface for chunk records.
package storage

import (
	"context"

	"github.com/kosa-aws-develop-figh2team/embed-service/internal/models"
)

// Store defines chunk persistence and retrieval operations. The writer mutates
// rows only through a Tx; search and listing are read-only.
type Store interface {
	// Begin opens a transaction. Whoever calls Begin owns the transaction:
	// commit/rollback authority never passes to a callee that borrows the Tx.
	Begin(ctx context.Context) (Tx, error)

	// HybridSearch ranks all chunks by the blended vector+lexical score, descending.
	HybridSearch(ctx context.Context, queryVec []float32, queryText string, topK int) ([]models.SearchResult, error)

	// VectorSearch ranks all chunks by cosine distance to queryVec, ascending.
	VectorSearch(ctx context.Context, queryVec []float32, topK int) ([]models.SearchResult, error)

	// ListChunks returns the id/content pairs stored for a service.
	ListChunks(ctx context.Context, serviceID string) ([]models.ChunkInfo, error)

	Ping(ctx context.Context) error
	Close()
}

// Tx is a transaction over chunk records. Reads within the transaction see a
// view consistent with the writes that follow them.
type Tx interface {
	// CountChunks returns the number of chunks stored for serviceID. By the
	// gapless-sequence invariant this count is also the next free index.
	CountChunks(ctx context.Context, serviceID string) (int, error)

	// InsertChunk writes one chunk record. Not visible until Commit.
	InsertChunk(ctx context.Context, chunk *models.Chunk) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
