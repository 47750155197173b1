package waystore

import (
	"context"
	"fmt"
	"time"

	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// ResetLocks resets any row left in the LOCK sentinel back to NULL. Called
// once at startup per §4.6 step 1, recovering from an unclean prior exit.
func (s *Store) ResetLocks(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE snapshot SET response = NULL WHERE response = ?`, snapshot.LockSentinel)
	if err != nil {
		return fmt.Errorf("waystore: reset locks: %w", err)
	}
	return nil
}

// EnsureJob returns the Job row for jobKey, creating it with all phase
// latches false if it does not already exist.
func (s *Store) EnsureJob(ctx context.Context, jobKey string) (snapshot.Job, bool, error) {
	job, err := s.loadJob(ctx, jobKey)
	if err == nil {
		return job, true, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job (job_key, progress_done, progress_total, insert_done, index_done, filter_done, created_at)
		 VALUES (?, 0, 0, 0, 0, 0, ?)`, jobKey, now)
	if err != nil {
		return snapshot.Job{}, false, fmt.Errorf("waystore: insert job: %w", err)
	}
	job, err = s.loadJob(ctx, jobKey)
	if err != nil {
		return snapshot.Job{}, false, fmt.Errorf("waystore: reload new job: %w", err)
	}
	return job, false, nil
}

func (s *Store) loadJob(ctx context.Context, jobKey string) (snapshot.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_key, progress_done, progress_total, insert_done, index_done, filter_done, created_at
		 FROM job WHERE job_key = ?`, jobKey)

	var j snapshot.Job
	var created string
	if err := row.Scan(&j.JobKey, &j.ProgressDone, &j.ProgressTotal, &j.InsertDone, &j.IndexDone, &j.FilterDone, &created); err != nil {
		return snapshot.Job{}, err
	}
	if t, perr := time.Parse(time.RFC3339, created); perr == nil {
		j.CreatedAt = t
	}
	return j, nil
}

// SetLatch flips one of the three phase latches ("insert", "index",
// "filter") irreversibly to true.
func (s *Store) SetLatch(ctx context.Context, jobKey, latch string) error {
	col, err := latchColumn(latch)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE job SET %s = 1 WHERE job_key = ?`, col), jobKey)
	if err != nil {
		return fmt.Errorf("waystore: set latch %s: %w", latch, err)
	}
	return nil
}

// latchColumn maps a latch name to its column via an allowlist; the
// reference implementation builds the equivalent column name with an
// f-string, which is a SQL-injection shape we do not reproduce.
func latchColumn(latch string) (string, error) {
	switch latch {
	case "insert":
		return "insert_done", nil
	case "index":
		return "index_done", nil
	case "filter":
		return "filter_done", nil
	default:
		return "", fmt.Errorf("waystore: unknown latch %q", latch)
	}
}

// SetProgress records the operator-facing progress counters on the Job row.
func (s *Store) SetProgress(ctx context.Context, jobKey string, done, total int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE job SET progress_done = ?, progress_total = ? WHERE job_key = ?`, done, total, jobKey)
	if err != nil {
		return fmt.Errorf("waystore: set progress: %w", err)
	}
	return nil
}

// Reset drops the Job row and all Snapshot rows for jobKey, used by the
// operator's --reset flag.
func (s *Store) Reset(ctx context.Context, jobKey string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("waystore: begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM job WHERE job_key = ?`, jobKey); err != nil {
		return fmt.Errorf("waystore: reset job: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot`); err != nil {
		return fmt.Errorf("waystore: reset snapshot rows: %w", err)
	}
	return tx.Commit()
}
