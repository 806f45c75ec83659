package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kosa-aws-develop-figh2team/embed-service/internal/embedding"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/models"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/status"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/storage"
)

// Writer persists text chunks as vectors. It is the sole writer of chunk
// records: every mutation goes through a transaction, committed only when the
// whole logical operation succeeded.
type Writer struct {
	store    storage.Store
	embedder embedding.Embedder
	alloc    Allocator
	tracker  status.Tracker
	logger   *zap.Logger
}

// NewWriter creates a writer with the given dependencies.
func NewWriter(store storage.Store, embedder embedding.Embedder, tracker status.Tracker, logger *zap.Logger) *Writer {
	return &Writer{
		store:    store,
		embedder: embedder,
		tracker:  tracker,
		logger:   logger,
	}
}

// SaveOne embeds and stores a single text chunk in its own transaction. The
// chunk index is allocated from the current stored count for serviceID.
func (w *Writer) SaveOne(ctx context.Context, text, serviceID string) (string, error) {
	w.track(ctx, serviceID, status.StatusInProgress, nil, "")

	id, err := w.saveOne(ctx, text, serviceID)
	if err != nil {
		w.track(ctx, serviceID, status.StatusFailed, nil, err.Error())
		return "", err
	}
	w.track(ctx, serviceID, status.StatusCompleted, []string{id}, "")
	return id, nil
}

func (w *Writer) saveOne(ctx context.Context, text, serviceID string) (string, error) {
	tx, err := w.store.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	id, err := w.SaveOneTx(ctx, tx, text, serviceID, -1)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit chunk %s: %w", id, err)
	}
	w.logger.Info("chunk stored", zap.String("id", id), zap.String("service_id", serviceID))
	return id, nil
}

// SaveOneTx embeds and stores one chunk inside a borrowed transaction. The
// transaction is never committed or rolled back here; that authority stays
// with the caller that opened it. A negative index allocates the next free
// index within tx. The embedding call happens before any storage mutation, so
// a gateway failure leaves the transaction untouched.
func (w *Writer) SaveOneTx(ctx context.Context, tx storage.Tx, text, serviceID string, index int) (string, error) {
	if index < 0 {
		var err error
		index, err = w.alloc.NextIndex(ctx, tx, serviceID)
		if err != nil {
			return "", err
		}
	}
	id := models.ChunkID(serviceID, index)

	vec, err := w.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embedding failed for %s: %w", id, err)
	}

	chunk := &models.Chunk{
		ID:        id,
		ServiceID: serviceID,
		Content:   text,
		Embedding: vec,
	}
	if err := tx.InsertChunk(ctx, chunk); err != nil {
		return "", err
	}
	return id, nil
}

// SaveMany stores an ordered chunk list in one transaction, resuming after any
// chunks a prior attempt already committed. On any mid-batch failure the whole
// transaction rolls back and the error propagates; a retry of the same list
// resumes from the unchanged stored count. Returns the ids written by this
// call, in input order.
func (w *Writer) SaveMany(ctx context.Context, chunks []string, serviceID string) ([]string, error) {
	w.track(ctx, serviceID, status.StatusInProgress, nil, "")

	ids, err := w.saveMany(ctx, chunks, serviceID)
	if err != nil {
		w.track(ctx, serviceID, status.StatusFailed, nil, err.Error())
		return nil, err
	}
	w.track(ctx, serviceID, status.StatusCompleted, ids, "")
	return ids, nil
}

func (w *Writer) saveMany(ctx context.Context, chunks []string, serviceID string) ([]string, error) {
	tx, err := w.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	start, err := w.alloc.NextIndex(ctx, tx, serviceID)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	if start < len(chunks) {
		for n, text := range chunks[start:] {
			id, err := w.SaveOneTx(ctx, tx, text, serviceID, start+n)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit batch for %s: %w", serviceID, err)
	}
	w.logger.Info("batch stored",
		zap.String("service_id", serviceID),
		zap.Int("stored", len(ids)),
		zap.Int("resumed_from", start),
	)
	return ids, nil
}

// track reports a lifecycle transition. Tracker failures are logged and
// swallowed: by the time the terminal transition fires the storage transaction
// is already finalized, and the tracker must not mask the outcome it reports.
func (w *Writer) track(ctx context.Context, serviceID string, st status.Status, ids []string, errMsg string) {
	rec := status.Record{
		ServiceID: serviceID,
		Step:      status.StepEmbedding,
		Status:    st,
		VectorIDs: ids,
		Error:     errMsg,
	}
	if err := w.tracker.Record(ctx, rec); err != nil {
		w.logger.Warn("status tracking failed",
			zap.String("service_id", serviceID),
			zap.String("status", string(st)),
			zap.Error(err),
		)
	}
}
