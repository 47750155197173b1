// Package core declares the narrow interfaces that let the Supervisor,
// pipeline and workers talk to the store, the queue, the network and the UI
// without depending on each other's concrete types: no shared mutable state
// between components beyond what passes through these seams.
package core

import (
	"context"
	"io"

	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// Store is the Persistent Store contract (C1).
type Store interface {
	ResetLocks(ctx context.Context) error
	EnsureJob(ctx context.Context, jobKey string) (job snapshot.Job, existed bool, err error)
	SetLatch(ctx context.Context, jobKey, latch string) error
	InsertBatch(ctx context.Context, rows []snapshot.Snapshot) (inserted, duplicates int, err error)
	CreateIndexes(ctx context.Context, mode snapshot.Mode) error
	FilterMode(ctx context.Context, mode snapshot.Mode) (removed int64, err error)
	AssignCounters(ctx context.Context) error
	CountByStatus(ctx context.Context, statuses ...string) (int64, error)
	MergePrior(ctx context.Context, prior []snapshot.PriorResult) (merged int, err error)
	PendingCount(ctx context.Context) (int64, error)
	ExportRows(ctx context.Context) ([]snapshot.Snapshot, error)
	Close() error
}

// Queue is the Work Queue contract (C6).
type Queue interface {
	Claim(ctx context.Context) (snapshot.Snapshot, bool, error)
	Commit(ctx context.Context, s snapshot.Snapshot, outcome snapshot.Outcome) error
}

// Sink is the log/progress rendering contract; out of core scope per
// section 1, consumed only through this interface.
type Sink interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Progress(handled, total int64)
	Done(results []snapshot.Snapshot)
}

// HTTPClient is the outgoing-request contract the Download Worker is built
// against, so tests can substitute a mock transport. The CDX Client uses its
// own resty client directly.
type HTTPClient interface {
	// Get performs a GET and returns the status code, response headers
	// (only Location and Content-Encoding matter to callers), and a reader
	// for the body. Callers must close the returned body.
	Get(ctx context.Context, url string) (status int, location string, contentEncoding string, body io.ReadCloser, err error)
	Close() error
}
