// Package wayqueue is the Work Queue (C6): a thin, explicit seam between
// the Download Workers and the Persistent Store's claim/commit
// transactions, so workers depend on core.Queue rather than on waystore
// directly.
package wayqueue

import (
	"context"

	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// Backend is the subset of the Persistent Store the Work Queue leases
// against; waystore.Store satisfies it.
type Backend interface {
	Claim(ctx context.Context) (snapshot.Snapshot, bool, error)
	Commit(ctx context.Context, s snapshot.Snapshot, outcome snapshot.Outcome) error
}

// Queue implements core.Queue over a Backend.
type Queue struct {
	backend Backend
}

// New wraps backend as a Queue.
func New(backend Backend) *Queue {
	return &Queue{backend: backend}
}

// Claim delegates to the store's atomic claim transaction.
func (q *Queue) Claim(ctx context.Context) (snapshot.Snapshot, bool, error) {
	return q.backend.Claim(ctx)
}

// Commit delegates to the store's commit transaction.
func (q *Queue) Commit(ctx context.Context, s snapshot.Snapshot, outcome snapshot.Outcome) error {
	return q.backend.Commit(ctx, s, outcome)
}
