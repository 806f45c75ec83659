// Package status records ingestion job lifecycle transitions into an external
// metadata store. The ingestion core writes records and never reads them back;
// callers poll the tracker to observe batch progress.
package status

import (
	"context"
	"time"
)

// Status is the lifecycle stage of an ingestion job.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// StepEmbedding is the pipeline step this service reports under.
const StepEmbedding = "embedding"

// Record is one job-status entry, keyed by (service_id, step). A later record
// for the same key replaces the previous one; terminal states are not merged.
type Record struct {
	ServiceID string    `json:"service_id"`
	Step      string    `json:"step"`
	Status    Status    `json:"status"`
	VectorIDs []string  `json:"vector_ids,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker persists job-status records. Callers treat Record as best-effort:
// a tracker failure is logged by the caller and never fails the ingestion
// whose outcome it reports.
type Tracker interface {
	Record(ctx context.Context, rec Record) error
	Close() error
}

// NoopTracker discards all records. Used when status tracking is disabled.
type NoopTracker struct{}

// Record discards rec.
func (NoopTracker) Record(ctx context.Context, rec Record) error { return nil }

// Close is a no-op.
func (NoopTracker) Close() error { return nil }
