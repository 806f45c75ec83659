package ingest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/kosa-aws-develop-figh2team/embed-service/internal/embedding"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/status"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/storage"
)

// recordingTracker captures every status transition for assertions.
type recordingTracker struct {
	records []status.Record
	fail    bool
}

func (t *recordingTracker) Record(ctx context.Context, rec status.Record) error {
	if t.fail {
		return errors.New("tracker unavailable")
	}
	t.records = append(t.records, rec)
	return nil
}

func (t *recordingTracker) Close() error { return nil }

// countingEmbedder fails on the nth Embed call (1-based); failAt 0 never fails.
type countingEmbedder struct {
	inner  embedding.Embedder
	calls  int
	failAt int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.failAt > 0 && e.calls >= e.failAt {
		return nil, errors.New("provider unreachable")
	}
	return e.inner.Embed(ctx, text)
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		emb, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

func (e *countingEmbedder) Dimensions() int { return e.inner.Dimensions() }
func (e *countingEmbedder) Close() error    { return nil }

func newTestWriter(store storage.Store) (*Writer, *recordingTracker) {
	tracker := &recordingTracker{}
	w := NewWriter(store, embedding.NewMockEmbedder(64), tracker, zap.NewNop())
	return w, tracker
}

func TestSaveOne(t *testing.T) {
	store := storage.NewMemoryStore()
	w, tracker := newTestWriter(store)
	ctx := context.Background()

	id, err := w.SaveOne(ctx, "alpha text", "svcA")
	if err != nil {
		t.Fatal(err)
	}
	if id != "svcA_chunk_0" {
		t.Errorf("expected svcA_chunk_0, got %s", id)
	}

	id, err = w.SaveOne(ctx, "beta text", "svcA")
	if err != nil {
		t.Fatal(err)
	}
	if id != "svcA_chunk_1" {
		t.Errorf("expected svcA_chunk_1, got %s", id)
	}

	chunks := store.Chunks()
	if len(chunks) != 2 {
		t.Fatalf("expected 2 stored chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "alpha text" || len(chunks[0].Embedding) != 64 {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}

	// Two transitions per call: in_progress then completed.
	if len(tracker.records) != 4 {
		t.Fatalf("expected 4 tracker records, got %d", len(tracker.records))
	}
	if tracker.records[0].Status != status.StatusInProgress || tracker.records[1].Status != status.StatusCompleted {
		t.Errorf("unexpected transitions: %v, %v", tracker.records[0].Status, tracker.records[1].Status)
	}
	if !reflect.DeepEqual(tracker.records[1].VectorIDs, []string{"svcA_chunk_0"}) {
		t.Errorf("unexpected vector ids: %v", tracker.records[1].VectorIDs)
	}
}

func TestSaveOne_gatewayFailureLeavesNoRow(t *testing.T) {
	store := storage.NewMemoryStore()
	tracker := &recordingTracker{}
	emb := &countingEmbedder{inner: embedding.NewMockEmbedder(64), failAt: 1}
	w := NewWriter(store, emb, tracker, zap.NewNop())

	_, err := w.SaveOne(context.Background(), "alpha text", "svcA")
	if err == nil {
		t.Fatal("expected gateway failure")
	}
	if got := len(store.Chunks()); got != 0 {
		t.Errorf("expected 0 stored chunks after failure, got %d", got)
	}
	last := tracker.records[len(tracker.records)-1]
	if last.Status != status.StatusFailed || last.Error == "" {
		t.Errorf("expected failed record with error detail, got %+v", last)
	}
}

func TestSaveMany_scenario(t *testing.T) {
	store := storage.NewMemoryStore()
	w, _ := newTestWriter(store)
	ctx := context.Background()

	ids, err := w.SaveMany(ctx, []string{"alpha text", "beta text"}, "svcA")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"svcA_chunk_0", "svcA_chunk_1"}) {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if got := len(store.Chunks()); got != 2 {
		t.Fatalf("expected 2 rows, got %d", got)
	}

	// Re-submitting a superset reprocesses only the unconfirmed tail.
	ids, err = w.SaveMany(ctx, []string{"alpha text", "beta text", "gamma text"}, "svcA")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"svcA_chunk_2"}) {
		t.Fatalf("expected only svcA_chunk_2, got %v", ids)
	}
	chunks := store.Chunks()
	if len(chunks) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(chunks))
	}
	if chunks[2].Content != "gamma text" {
		t.Errorf("expected gamma text stored last, got %q", chunks[2].Content)
	}
}

func TestSaveMany_resumability(t *testing.T) {
	store := storage.NewMemoryStore()
	w, _ := newTestWriter(store)
	ctx := context.Background()

	if _, err := w.SaveMany(ctx, []string{"a", "b", "c"}, "svcA"); err != nil {
		t.Fatal(err)
	}
	ids, err := w.SaveMany(ctx, []string{"a", "b", "c", "d", "e"}, "svcA")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"svcA_chunk_3", "svcA_chunk_4"}) {
		t.Fatalf("unexpected ids: %v", ids)
	}

	// Index contiguity: stored indices are exactly 0..4 in order.
	var gotIDs []string
	for _, c := range store.Chunks() {
		gotIDs = append(gotIDs, c.ID)
	}
	var wantIDs []string
	for i := 0; i < 5; i++ {
		wantIDs = append(wantIDs, fmt.Sprintf("svcA_chunk_%d", i))
	}
	if !reflect.DeepEqual(gotIDs, wantIDs) {
		t.Errorf("expected %v, got %v", wantIDs, gotIDs)
	}
}

func TestSaveMany_emptyList(t *testing.T) {
	store := storage.NewMemoryStore()
	tracker := &recordingTracker{}
	emb := &countingEmbedder{inner: embedding.NewMockEmbedder(64)}
	w := NewWriter(store, emb, tracker, zap.NewNop())

	ids, err := w.SaveMany(context.Background(), []string{}, "fresh")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty id list, got %v", ids)
	}
	if emb.calls != 0 {
		t.Errorf("expected no gateway calls, got %d", emb.calls)
	}
	if got := len(store.Chunks()); got != 0 {
		t.Errorf("expected no storage mutation, got %d chunks", got)
	}
	last := tracker.records[len(tracker.records)-1]
	if last.Status != status.StatusCompleted {
		t.Errorf("empty batch should complete, got %s", last.Status)
	}
}

func TestSaveMany_shorterThanStored(t *testing.T) {
	store := storage.NewMemoryStore()
	w, _ := newTestWriter(store)
	ctx := context.Background()

	if _, err := w.SaveMany(ctx, []string{"a", "b", "c"}, "svcA"); err != nil {
		t.Fatal(err)
	}
	// Effective slice is empty when the list is shorter than the stored count.
	ids, err := w.SaveMany(ctx, []string{"a"}, "svcA")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no new ids, got %v", ids)
	}
	if got := len(store.Chunks()); got != 3 {
		t.Errorf("stored rows should be untouched, got %d", got)
	}
}

func TestSaveMany_atomicity(t *testing.T) {
	store := storage.NewMemoryStore()
	tracker := &recordingTracker{}
	// Fail on the third embedding of the batch.
	emb := &countingEmbedder{inner: embedding.NewMockEmbedder(64), failAt: 3}
	w := NewWriter(store, emb, tracker, zap.NewNop())
	ctx := context.Background()

	_, err := w.SaveMany(ctx, []string{"a", "b", "c", "d"}, "svcA")
	if err == nil {
		t.Fatal("expected batch failure")
	}
	if got := len(store.Chunks()); got != 0 {
		t.Fatalf("expected full rollback, found %d rows", got)
	}
	last := tracker.records[len(tracker.records)-1]
	if last.Status != status.StatusFailed {
		t.Errorf("expected failed status, got %s", last.Status)
	}

	// Retry resumes from the original point, not from the failure point.
	emb.failAt = 0
	ids, err := w.SaveMany(ctx, []string{"a", "b", "c", "d"}, "svcA")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 4 || ids[0] != "svcA_chunk_0" {
		t.Errorf("retry should reprocess the full batch, got %v", ids)
	}
}

func TestSaveOneTx_borrowedTransactionNotCommitted(t *testing.T) {
	store := storage.NewMemoryStore()
	w, tracker := newTestWriter(store)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id, err := w.SaveOneTx(ctx, tx, "alpha text", "svcA", 7)
	if err != nil {
		t.Fatal(err)
	}
	if id != "svcA_chunk_7" {
		t.Errorf("expected explicit index to be used, got %s", id)
	}
	// The callee must not commit a borrowed transaction, and the borrowed
	// path never reports status.
	if got := len(store.Chunks()); got != 0 {
		t.Errorf("borrowed tx must not be committed by callee, found %d rows", got)
	}
	if len(tracker.records) != 0 {
		t.Errorf("borrowed path should not touch the tracker, got %d records", len(tracker.records))
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSaveMany_trackerFailureDoesNotFailIngestion(t *testing.T) {
	store := storage.NewMemoryStore()
	tracker := &recordingTracker{fail: true}
	w := NewWriter(store, embedding.NewMockEmbedder(64), tracker, zap.NewNop())

	ids, err := w.SaveMany(context.Background(), []string{"alpha"}, "svcA")
	if err != nil {
		t.Fatalf("tracker failure must not fail ingestion: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"svcA_chunk_0"}) {
		t.Errorf("unexpected ids: %v", ids)
	}
	if got := len(store.Chunks()); got != 1 {
		t.Errorf("expected 1 stored chunk, got %d", got)
	}
}

func TestSaveMany_servicesAreIndependent(t *testing.T) {
	store := storage.NewMemoryStore()
	w, _ := newTestWriter(store)
	ctx := context.Background()

	if _, err := w.SaveMany(ctx, []string{"a", "b"}, "svcA"); err != nil {
		t.Fatal(err)
	}
	ids, err := w.SaveMany(ctx, []string{"x"}, "svcB")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"svcB_chunk_0"}) {
		t.Errorf("indices are per service, got %v", ids)
	}
}
