package waystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// Claim selects the lowest-scid row with response IS NULL, marks it LOCK,
// and returns it, all inside one transaction. SQLite has no SKIP LOCKED, so
// claimMu serializes this transaction across goroutines in this process —
// the fallback the spec explicitly permits when the backend lacks it.
func (s *Store) Claim(ctx context.Context) (snapshot.Snapshot, bool, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return snapshot.Snapshot{}, false, fmt.Errorf("waystore: begin claim: %w", err)
	}
	defer tx.Rollback()

	var scid int64
	err = tx.QueryRowContext(ctx,
		`SELECT scid FROM snapshot WHERE response IS NULL ORDER BY scid ASC LIMIT 1`).Scan(&scid)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.Snapshot{}, false, nil
	}
	if err != nil {
		return snapshot.Snapshot{}, false, fmt.Errorf("waystore: select claimable row: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE snapshot SET response = ? WHERE scid = ?`, snapshot.LockSentinel, scid); err != nil {
		return snapshot.Snapshot{}, false, fmt.Errorf("waystore: lock row %d: %w", scid, err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT scid, COALESCE(counter, 0), timestamp, url_origin, url_archive,
		       COALESCE(redirect_url, ''), COALESCE(redirect_timestamp, ''), response, COALESCE(file, '')
		FROM snapshot WHERE scid = ?`, scid)

	var out snapshot.Snapshot
	if err := row.Scan(&out.SCID, &out.Counter, &out.Timestamp, &out.URLOrigin, &out.URLArchive,
		&out.RedirectURL, &out.RedirectTimestamp, &out.Response, &out.File); err != nil {
		return snapshot.Snapshot{}, false, fmt.Errorf("waystore: reload claimed row %d: %w", scid, err)
	}

	if err := tx.Commit(); err != nil {
		return snapshot.Snapshot{}, false, fmt.Errorf("waystore: commit claim: %w", err)
	}
	return out, true, nil
}

// Commit writes the terminal outcome for a previously claimed row.
func (s *Store) Commit(ctx context.Context, claimed snapshot.Snapshot, outcome snapshot.Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE snapshot
		SET response = ?, file = NULLIF(?, ''), redirect_url = NULLIF(?, ''), redirect_timestamp = NULLIF(?, '')
		WHERE scid = ?`,
		outcome.Response, outcome.File, outcome.RedirectURL, outcome.RedirectTimestamp, claimed.SCID)
	if err != nil {
		return fmt.Errorf("waystore: commit row %d: %w", claimed.SCID, err)
	}
	return nil
}
