package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kosa-aws-develop-figh2team/embed-service/internal/models"
)

// MemoryStore is an in-memory Store for tests and local development. It
// mirrors the PostgreSQL semantics that matter to callers: buffered
// transactional writes, duplicate-id rejection, and the equal-weighted hybrid
// score over cosine similarity and a bag-of-words rank.
type MemoryStore struct {
	mu     sync.Mutex
	chunks []*models.Chunk
	ids    map[string]bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]bool)}
}

// Begin opens a buffered transaction. Writes become visible on Commit.
func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	return &memTx{store: s}, nil
}

// HybridSearch ranks all chunks by 0.5*cosine similarity + 0.5*lexical rank.
func (s *MemoryStore) HybridSearch(ctx context.Context, queryVec []float32, queryText string, topK int) ([]models.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]models.SearchResult, 0, len(s.chunks))
	for _, c := range s.chunks {
		score := 0.5*cosineSimilarity(c.Embedding, queryVec) + 0.5*lexicalRank(queryText, c.Content)
		results = append(results, models.SearchResult{
			ID:        c.ID,
			ServiceID: c.ServiceID,
			Content:   c.Content,
			Score:     score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return truncateResults(results, topK), nil
}

// VectorSearch ranks all chunks by cosine distance, nearest first.
func (s *MemoryStore) VectorSearch(ctx context.Context, queryVec []float32, topK int) ([]models.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]models.SearchResult, 0, len(s.chunks))
	for _, c := range s.chunks {
		results = append(results, models.SearchResult{
			ID:        c.ID,
			ServiceID: c.ServiceID,
			Content:   c.Content,
			Score:     1 - cosineSimilarity(c.Embedding, queryVec),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	return truncateResults(results, topK), nil
}

// ListChunks returns id/content pairs for a service in insertion order.
func (s *MemoryStore) ListChunks(ctx context.Context, serviceID string) ([]models.ChunkInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var infos []models.ChunkInfo
	for _, c := range s.chunks {
		if c.ServiceID == serviceID {
			infos = append(infos, models.ChunkInfo{ID: c.ID, Content: c.Content})
		}
	}
	return infos, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Chunks returns a snapshot of all committed chunks. Test helper.
func (s *MemoryStore) Chunks() []*models.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

func truncateResults(results []models.SearchResult, topK int) []models.SearchResult {
	if topK < len(results) {
		return results[:topK]
	}
	return results
}

type memTx struct {
	store    *MemoryStore
	buffered []*models.Chunk
	done     bool
}

func (t *memTx) CountChunks(ctx context.Context, serviceID string) (int, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	count := 0
	for _, c := range t.store.chunks {
		if c.ServiceID == serviceID {
			count++
		}
	}
	for _, c := range t.buffered {
		if c.ServiceID == serviceID {
			count++
		}
	}
	return count, nil
}

func (t *memTx) InsertChunk(ctx context.Context, chunk *models.Chunk) error {
	if t.done {
		return fmt.Errorf("transaction is closed")
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.store.ids[chunk.ID] {
		return fmt.Errorf("duplicate key: %s", chunk.ID)
	}
	for _, b := range t.buffered {
		if b.ID == chunk.ID {
			return fmt.Errorf("duplicate key: %s", chunk.ID)
		}
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}
	t.buffered = append(t.buffered, chunk)
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction is closed")
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, c := range t.buffered {
		if t.store.ids[c.ID] {
			return fmt.Errorf("duplicate key: %s", c.ID)
		}
	}
	for _, c := range t.buffered {
		t.store.ids[c.ID] = true
		t.store.chunks = append(t.store.chunks, c)
	}
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.buffered = nil
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// lexicalRank approximates the lexical signal with normalized term overlap.
func lexicalRank(query, content string) float64 {
	queryTerms := strings.Fields(strings.ToLower(query))
	if len(queryTerms) == 0 {
		return 0
	}
	contentTerms := make(map[string]bool)
	for _, term := range strings.Fields(strings.ToLower(content)) {
		contentTerms[term] = true
	}
	matched := 0
	for _, term := range queryTerms {
		if contentTerms[term] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}
