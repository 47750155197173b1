package waypipeline

import (
	"context"
	"fmt"

	"github.com/lcalzada-xor/waybackup/internal/core"
	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// Report summarizes the three phases for the Supervisor/Sink.
type Report struct {
	Insert           InsertStats
	IndexBuilt       bool
	FilterRemoved    int64
	FilteredByStatus int64
	PriorMerged      int
}

// Run executes phases A, B, C in order, each skipped when its Job latch is
// already set (idempotent resume), then merges any prior Result File rows.
func Run(ctx context.Context, store core.Store, job snapshot.Job, indexPath string, mode snapshot.Mode, prior []snapshot.PriorResult) (Report, error) {
	var report Report

	if !job.InsertDone {
		stats, err := RunInsert(ctx, store, indexPath)
		if err != nil {
			return report, fmt.Errorf("waypipeline: phase A: %w", err)
		}
		report.Insert = stats
		if err := store.SetLatch(ctx, job.JobKey, "insert"); err != nil {
			return report, fmt.Errorf("waypipeline: latch insert: %w", err)
		}
		job.InsertDone = true
	}

	if !job.IndexDone {
		if err := store.CreateIndexes(ctx, mode); err != nil {
			return report, fmt.Errorf("waypipeline: phase B: %w", err)
		}
		report.IndexBuilt = true
		if err := store.SetLatch(ctx, job.JobKey, "index"); err != nil {
			return report, fmt.Errorf("waypipeline: latch index: %w", err)
		}
		job.IndexDone = true
	}

	if !job.FilterDone {
		removed, err := store.FilterMode(ctx, mode)
		if err != nil {
			return report, fmt.Errorf("waypipeline: phase C filter: %w", err)
		}
		report.FilterRemoved = removed

		if err := store.AssignCounters(ctx); err != nil {
			return report, fmt.Errorf("waypipeline: phase C counters: %w", err)
		}

		filtered, err := store.CountByStatus(ctx, "404", "301")
		if err != nil {
			return report, fmt.Errorf("waypipeline: phase C count by status: %w", err)
		}
		report.FilteredByStatus = filtered

		if err := store.SetLatch(ctx, job.JobKey, "filter"); err != nil {
			return report, fmt.Errorf("waypipeline: latch filter: %w", err)
		}
		job.FilterDone = true
	}

	if len(prior) > 0 {
		merged, err := store.MergePrior(ctx, prior)
		if err != nil {
			return report, fmt.Errorf("waypipeline: merge prior: %w", err)
		}
		report.PriorMerged = merged
	}

	return report, nil
}
