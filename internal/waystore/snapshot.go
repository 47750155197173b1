package waystore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// InsertBatch inserts rows under a single transaction, ignoring conflicts on
// the unique url_archive key (Phase A). Callers are expected to chunk rows
// into batches of 2,500 themselves (see waypipeline/insert.go) so a single
// call here always maps to one transaction.
func (s *Store) InsertBatch(ctx context.Context, rows []snapshot.Snapshot) (inserted, duplicates int, err error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("waystore: begin insert batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO snapshot (timestamp, url_archive, url_origin, response)
		 VALUES (?, ?, ?, NULLIF(?, ''))`)
	if err != nil {
		return 0, 0, fmt.Errorf("waystore: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		res, err := stmt.ExecContext(ctx, r.Timestamp, r.URLArchive, r.URLOrigin, r.Response)
		if err != nil {
			return 0, 0, fmt.Errorf("waystore: insert row %s: %w", r.URLArchive, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			duplicates++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("waystore: commit insert batch: %w", err)
	}
	return inserted, duplicates, nil
}

// CreateIndexes builds the secondary indexes Phase C needs (§4.3 Phase B).
func (s *Store) CreateIndexes(ctx context.Context, mode snapshot.Mode) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_snapshot_timestamp_origin ON snapshot (timestamp, url_origin)`,
	}
	switch mode {
	case snapshot.ModeLast:
		stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_snapshot_origin_ts_desc ON snapshot (url_origin, timestamp DESC)`)
	case snapshot.ModeFirst:
		stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_snapshot_origin_ts_asc ON snapshot (url_origin, timestamp ASC)`)
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("waystore: create index: %w", err)
		}
	}
	return nil
}

// FilterMode applies the mode filter (Phase C, first half): for "last"/
// "first" it deletes every row outranked by another row sharing the same
// url_origin; "all" is a no-op. Returns the number of rows removed.
func (s *Store) FilterMode(ctx context.Context, mode snapshot.Mode) (int64, error) {
	if mode == snapshot.ModeAll {
		return 0, nil
	}

	dir := "DESC"
	if mode == snapshot.ModeFirst {
		dir = "ASC"
	}

	query := fmt.Sprintf(`
		DELETE FROM snapshot WHERE rowid IN (
			SELECT rowid FROM (
				SELECT rowid, ROW_NUMBER() OVER (
					PARTITION BY url_origin ORDER BY timestamp %s
				) AS ranking
				FROM snapshot
			) WHERE ranking > 1
		)`, dir)

	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("waystore: filter mode %s: %w", mode, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// AssignCounters assigns the dense 1..N counter to surviving rows in stable
// scid order, in batches of 5,000 (Phase C, second half).
func (s *Store) AssignCounters(ctx context.Context) error {
	const batchSize = 5000

	rows, err := s.db.QueryContext(ctx, `SELECT scid FROM snapshot ORDER BY scid ASC`)
	if err != nil {
		return fmt.Errorf("waystore: list scids: %w", err)
	}
	var scids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("waystore: scan scid: %w", err)
		}
		scids = append(scids, id)
	}
	rows.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("waystore: begin assign counters: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE snapshot SET counter = ? WHERE scid = ?`)
	if err != nil {
		return fmt.Errorf("waystore: prepare counter update: %w", err)
	}
	defer stmt.Close()

	for i, id := range scids {
		if _, err := stmt.ExecContext(ctx, int64(i+1), id); err != nil {
			return fmt.Errorf("waystore: assign counter to scid %d: %w", id, err)
		}
		if (i+1)%batchSize == 0 {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("waystore: commit counter batch: %w", err)
			}
			tx, err = s.db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("waystore: begin next counter batch: %w", err)
			}
			defer tx.Rollback()
			stmt, err = tx.PrepareContext(ctx, `UPDATE snapshot SET counter = ? WHERE scid = ?`)
			if err != nil {
				return fmt.Errorf("waystore: prepare counter update: %w", err)
			}
			defer stmt.Close()
		}
	}
	return tx.Commit()
}

// CountByStatus counts rows whose response is one of the given values
// (used to report the "filtered by status" total for 301/404).
func (s *Store) CountByStatus(ctx context.Context, statuses ...string) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	query := `SELECT COUNT(*) FROM snapshot WHERE response IN (` + placeholders(len(statuses)) + `)`
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("waystore: count by status: %w", err)
	}
	return n, nil
}

func placeholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += "?"
	}
	return out
}

// MergePrior updates rows matching (timestamp, url_origin) with terminal
// columns recovered from a prior Result File, implementing resumption
// across a lost Persistent Store.
func (s *Store) MergePrior(ctx context.Context, prior []snapshot.PriorResult) (int, error) {
	if len(prior) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("waystore: begin merge prior: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE snapshot
		SET url_archive = ?, redirect_url = NULLIF(?, ''), redirect_timestamp = NULLIF(?, ''),
		    response = NULLIF(?, ''), file = NULLIF(?, '')
		WHERE timestamp = ? AND url_origin = ?`)
	if err != nil {
		return 0, fmt.Errorf("waystore: prepare merge prior: %w", err)
	}
	defer stmt.Close()

	merged := 0
	for _, p := range prior {
		res, err := stmt.ExecContext(ctx, p.URLArchive, p.RedirectURL, p.RedirectTimestamp, p.Response, p.File, p.Timestamp, p.URLOrigin)
		if err != nil {
			return merged, fmt.Errorf("waystore: merge prior row %s: %w", p.URLArchive, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			merged++
		}
	}
	if err := tx.Commit(); err != nil {
		return merged, fmt.Errorf("waystore: commit merge prior: %w", err)
	}
	return merged, nil
}

// PendingCount returns the number of rows still awaiting a claim.
func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshot WHERE response IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("waystore: pending count: %w", err)
	}
	return n, nil
}

// ExportRows is the view projecting snapshot columns for the Result File:
// every row whose response is not NULL, ordered by counter.
func (s *Store) ExportRows(ctx context.Context) ([]snapshot.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scid, COALESCE(counter, 0), timestamp, url_origin, url_archive,
		       COALESCE(redirect_url, ''), COALESCE(redirect_timestamp, ''),
		       response, COALESCE(file, '')
		FROM snapshot
		WHERE response IS NOT NULL
		ORDER BY counter ASC`)
	if err != nil {
		return nil, fmt.Errorf("waystore: export rows: %w", err)
	}
	defer rows.Close()

	var out []snapshot.Snapshot
	for rows.Next() {
		var s snapshot.Snapshot
		if err := rows.Scan(&s.SCID, &s.Counter, &s.Timestamp, &s.URLOrigin, &s.URLArchive,
			&s.RedirectURL, &s.RedirectTimestamp, &s.Response, &s.File); err != nil {
			return nil, fmt.Errorf("waystore: scan export row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// rowByArchive is a small helper used by tests to look up a row directly.
func (s *Store) rowByArchive(ctx context.Context, urlArchive string) (snapshot.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT scid, COALESCE(counter, 0), timestamp, url_origin, url_archive,
		       COALESCE(redirect_url, ''), COALESCE(redirect_timestamp, ''),
		       COALESCE(response, ''), COALESCE(file, '')
		FROM snapshot WHERE url_archive = ?`, urlArchive)

	var out snapshot.Snapshot
	err := row.Scan(&out.SCID, &out.Counter, &out.Timestamp, &out.URLOrigin, &out.URLArchive,
		&out.RedirectURL, &out.RedirectTimestamp, &out.Response, &out.File)
	if err == sql.ErrNoRows {
		return snapshot.Snapshot{}, fmt.Errorf("waystore: no row for %s", urlArchive)
	}
	return out, err
}
