// Package ingest implements the ingestion core: chunk index allocation and
// resumable, transactional chunk storage.
package ingest

import (
	"context"
	"fmt"

	"github.com/kosa-aws-develop-figh2team/embed-service/internal/storage"
)

// Allocator computes the next free chunk index for a service. Because indices
// per service form a contiguous sequence starting at 0, the count of stored
// chunks is the next free index; a retried batch resumes from there.
type Allocator struct{}

// NextIndex returns the next free chunk index for serviceID, read within tx so
// it is consistent with the writes that follow. A read failure propagates; it
// never defaults to 0, which would silently overwrite existing chunks.
func (Allocator) NextIndex(ctx context.Context, tx storage.Tx, serviceID string) (int, error) {
	count, err := tx.CountChunks(ctx, serviceID)
	if err != nil {
		return 0, fmt.Errorf("failed to determine resume index for %s: %w", serviceID, err)
	}
	return count, nil
}
