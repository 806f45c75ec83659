package status

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteTracker stores job-status records in a local SQLite file. It stands in
// for the deployment's external job-metadata store in single-node setups.
type SQLiteTracker struct {
	db *sql.DB
}

// NewSQLiteTracker opens or creates the tracker database at dbPath.
// Parent directories are created if they do not exist.
func NewSQLiteTracker(dbPath string) (*SQLiteTracker, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create tracker directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracker database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS job_status (
		service_id TEXT NOT NULL,
		step TEXT NOT NULL,
		status TEXT NOT NULL,
		vector_ids TEXT,
		error TEXT,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (service_id, step)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize tracker schema: %w", err)
	}
	return &SQLiteTracker{db: db}, nil
}

// Record upserts the status entry for (service_id, step).
func (t *SQLiteTracker) Record(ctx context.Context, rec Record) error {
	idsJSON, err := json.Marshal(rec.VectorIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal vector ids: %w", err)
	}
	rec.UpdatedAt = time.Now().UTC()

	_, err = t.db.ExecContext(ctx,
		`INSERT INTO job_status (service_id, step, status, vector_ids, error, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(service_id, step) DO UPDATE SET
		   status = excluded.status,
		   vector_ids = excluded.vector_ids,
		   error = excluded.error,
		   updated_at = excluded.updated_at`,
		rec.ServiceID, rec.Step, string(rec.Status), string(idsJSON), rec.Error, rec.UpdatedAt,
	)
	return err
}

// Get returns the current record for (serviceID, step). The ingestion core
// never calls this; it exists for operators and tests.
func (t *SQLiteTracker) Get(ctx context.Context, serviceID, step string) (*Record, error) {
	var rec Record
	var statusStr, idsJSON string
	err := t.db.QueryRowContext(ctx,
		`SELECT service_id, step, status, vector_ids, error, updated_at
		 FROM job_status WHERE service_id = ? AND step = ?`,
		serviceID, step,
	).Scan(&rec.ServiceID, &rec.Step, &statusStr, &idsJSON, &rec.Error, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no status for %s/%s", serviceID, step)
	}
	if err != nil {
		return nil, err
	}
	rec.Status = Status(statusStr)
	if idsJSON != "" {
		if err := json.Unmarshal([]byte(idsJSON), &rec.VectorIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vector ids: %w", err)
		}
	}
	return &rec, nil
}

// Close closes the tracker database.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
