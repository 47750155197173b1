package waystore

import (
	"context"
	"fmt"
	"time"
)

// RecordRunStart inserts a row into the runs table marking the start of a
// Supervisor invocation against jobKey. The runs table is a plain audit
// log, never read back by this program; operators query it directly with
// a sqlite3 client to see the history of attempts against a job.
func (s *Store) RecordRunStart(ctx context.Context, jobKey string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (job_key, started_at) VALUES (?, ?)`,
		jobKey, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("waystore: record run start: %w", err)
	}
	return nil
}

// RecordRunFinish stamps finished_at and exit_reason on the most recently
// started run row for jobKey.
func (s *Store) RecordRunFinish(ctx context.Context, jobKey, exitReason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, exit_reason = ?
		WHERE rowid = (
			SELECT rowid FROM runs WHERE job_key = ? AND finished_at IS NULL
			ORDER BY rowid DESC LIMIT 1
		)`, time.Now().UTC().Format(time.RFC3339), exitReason, jobKey)
	if err != nil {
		return fmt.Errorf("waystore: record run finish: %w", err)
	}
	return nil
}
