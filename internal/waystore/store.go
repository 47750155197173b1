// Package waystore is the Persistent Store (C1): an embedded, transactional
// SQLite database holding the Job table and the Snapshot table, with
// row-level atomic claim/commit for the Work Queue.
//
// Grounded on the reference database.go's connection setup (WAL mode,
// foreign keys pragma, pool tuning, versioned migrations) and on
// pywaybackup's db.py for the table shapes and lifecycle operations.
package waystore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"
)

// Store wraps a *sql.DB for the Snapshot/Job schema. SQLite has no
// SELECT ... FOR UPDATE SKIP LOCKED, so the claim path (claim.go) falls
// back to the explicitly-permitted process-wide mutex instead.
type Store struct {
	db       *sql.DB
	path     string
	claimMu  sync.Mutex
}

// Open creates (if needed) the parent directory, opens the SQLite file in
// WAL mode, tunes the connection pool, and applies pending migrations.
// The initial open is retried with a short constant backoff because WAL
// checkpoints can transiently return SQLITE_BUSY.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("waystore: create directory: %w", err)
		}
	}

	var db *sql.DB
	openOnce := func() error {
		var err error
		db, err = sql.Open("sqlite", path)
		if err != nil {
			return err
		}
		return db.PingContext(ctx)
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), 3)
	if err := backoff.Retry(openOnce, policy); err != nil {
		return nil, fmt.Errorf("waystore: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1) // single-writer: SQLite + WAL, avoid cross-conn lock churn
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("waystore: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the database file.
func (s *Store) Path() string { return s.path }

// Remove closes and deletes the database file along with its WAL/SHM
// siblings, used by the Supervisor's final cleanup step.
func (s *Store) Remove() error {
	if err := s.Close(); err != nil {
		return err
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
