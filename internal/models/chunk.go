// Package models defines core data structures for chunks, queries, and search results.
package models

import (
	"fmt"
	"time"
)

// Chunk represents one unit of source text stored with its embedding vector.
type Chunk struct {
	ID        string    `json:"id" db:"id"`
	ServiceID string    `json:"service_id" db:"service_id"`
	Content   string    `json:"content" db:"content"`
	Embedding []float32 `json:"-" db:"embedding"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ChunkID derives the chunk id for a service and index. Indices are assigned
// contiguously per service starting at 0, so the id is unique by construction.
func ChunkID(serviceID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", serviceID, index)
}

// ChunkInfo is the id/content pair returned when listing a service's stored chunks.
type ChunkInfo struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}
