package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/kosa-aws-develop-figh2team/embed-service/internal/models"
)

// PostgresStore implements Store on PostgreSQL with the pgvector extension.
// Vector similarity uses the <=> cosine distance operator; lexical relevance
// uses ts_rank_cd over a simple-dictionary tsvector of the content column.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects to PostgreSQL at dsn and initializes the schema
// with the given embedding width. pgvector types are registered on every
// pooled connection.
func NewPostgresStore(ctx context.Context, dsn string, dimensions int, logger *zap.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := initSchema(ctx, pool, dimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("connected to PostgreSQL", zap.Int("dimensions", dimensions))
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	schema := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS embeddings (
		id TEXT PRIMARY KEY,
		service_id TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_embeddings_service_id ON embeddings(service_id);
	`, dimensions)
	_, err := pool.Exec(ctx, schema)
	return err
}

// Begin opens a transaction owned by the caller.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

// HybridSearch executes the single combined-score query: equal-weighted
// normalized cosine similarity and ts_rank_cd lexical rank, highest first.
func (s *PostgresStore) HybridSearch(ctx context.Context, queryVec []float32, queryText string, topK int) ([]models.SearchResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, service_id, content,
		       (0.5 * (1 - (embedding <=> $1)) +
		        0.5 * ts_rank_cd(to_tsvector('simple', content), plainto_tsquery('simple', $2))) AS hybrid_score
		FROM embeddings
		ORDER BY hybrid_score DESC
		LIMIT $3`,
		pgvector.NewVector(queryVec), queryText, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("hybrid search query failed: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// VectorSearch ranks by cosine distance alone, nearest first. The returned
// score is the distance (lower is better).
func (s *PostgresStore) VectorSearch(ctx context.Context, queryVec []float32, topK int) ([]models.SearchResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, service_id, content, embedding <=> $1 AS distance
		FROM embeddings
		ORDER BY distance
		LIMIT $2`,
		pgvector.NewVector(queryVec), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search query failed: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows pgx.Rows) ([]models.SearchResult, error) {
	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ID, &r.ServiceID, &r.Content, &r.Score); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListChunks returns id/content pairs for a service in insertion order.
func (s *PostgresStore) ListChunks(ctx context.Context, serviceID string) ([]models.ChunkInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content FROM embeddings WHERE service_id = $1 ORDER BY created_at, id`,
		serviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chunks query failed: %w", err)
	}
	defer rows.Close()

	var chunks []models.ChunkInfo
	for rows.Next() {
		var c models.ChunkInfo
		if err := rows.Scan(&c.ID, &c.Content); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// pgTx wraps a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

// CountChunks serializes ingestion per service with a transaction-level
// advisory lock before counting, so two concurrent writers for the same
// service cannot compute the same resume index.
func (t *pgTx) CountChunks(ctx context.Context, serviceID string) (int, error) {
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, serviceID); err != nil {
		return 0, fmt.Errorf("failed to acquire service lock: %w", err)
	}
	var count int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE service_id = $1`, serviceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count existing chunks: %w", err)
	}
	return count, nil
}

// InsertChunk writes one chunk record within the transaction.
func (t *pgTx) InsertChunk(ctx context.Context, chunk *models.Chunk) error {
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO embeddings (id, service_id, content, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		chunk.ID, chunk.ServiceID, chunk.Content, pgvector.NewVector(chunk.Embedding), chunk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
	}
	return nil
}

// Commit commits the transaction.
func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback aborts the transaction. Safe to call after Commit.
func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
