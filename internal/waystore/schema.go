package waystore

import (
	"context"
	"fmt"
)

// migration is one versioned step applied inside its own transaction,
// following the reference database.go's schema_migrations idiom.
type migration struct {
	version int
	stmt    string
}

var migrations = []migration{
	{1, `CREATE TABLE IF NOT EXISTS job (
		job_key        TEXT PRIMARY KEY,
		progress_done  INTEGER NOT NULL DEFAULT 0,
		progress_total INTEGER NOT NULL DEFAULT 0,
		insert_done    INTEGER NOT NULL DEFAULT 0,
		index_done     INTEGER NOT NULL DEFAULT 0,
		filter_done    INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL
	)`},
	{2, `CREATE TABLE IF NOT EXISTS snapshot (
		scid               INTEGER PRIMARY KEY AUTOINCREMENT,
		counter            INTEGER,
		timestamp          TEXT NOT NULL,
		url_origin         TEXT NOT NULL,
		url_archive        TEXT NOT NULL,
		redirect_url       TEXT,
		redirect_timestamp TEXT,
		response           TEXT,
		file               TEXT,
		UNIQUE(url_archive)
	)`},
	{3, `CREATE TABLE IF NOT EXISTS runs (
		job_key      TEXT NOT NULL,
		started_at   TEXT NOT NULL,
		finished_at  TEXT,
		exit_reason  TEXT
	)`},
	{4, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`},
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("waystore: bootstrap migrations table: %w", err)
	}

	applied := map[int]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("waystore: read migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("waystore: scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("waystore: begin migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("waystore: apply migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("waystore: record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("waystore: commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
