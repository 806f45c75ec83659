package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/kosa-aws-develop-figh2team/embed-service/internal/models"
	"github.com/kosa-aws-develop-figh2team/embed-service/internal/storage"
)

func TestAllocator_NextIndex(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	var alloc Allocator

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := alloc.NextIndex(ctx, tx, "svcA")
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 {
		t.Errorf("fresh service should start at 0, got %d", idx)
	}

	for i := 0; i < 3; i++ {
		chunk := &models.Chunk{ID: models.ChunkID("svcA", i), ServiceID: "svcA", Content: "x"}
		if err := tx.InsertChunk(ctx, chunk); err != nil {
			t.Fatal(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	tx2, _ := store.Begin(ctx)
	defer tx2.Rollback(ctx)
	idx, err = alloc.NextIndex(ctx, tx2, "svcA")
	if err != nil {
		t.Fatal(err)
	}
	if idx != 3 {
		t.Errorf("expected next index 3, got %d", idx)
	}
	idx, err = alloc.NextIndex(ctx, tx2, "svcB")
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 {
		t.Errorf("other services are unaffected, got %d", idx)
	}
}

type failingTx struct {
	storage.Tx
}

func (failingTx) CountChunks(ctx context.Context, serviceID string) (int, error) {
	return 0, errors.New("connection reset")
}

func TestAllocator_readFailurePropagates(t *testing.T) {
	var alloc Allocator
	_, err := alloc.NextIndex(context.Background(), failingTx{}, "svcA")
	if err == nil {
		t.Fatal("a count failure must propagate, never default to index 0")
	}
}
