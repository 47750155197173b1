// Package snapshot holds the value types shared across the pipeline, store,
// queue and fetch packages: a Job (one per origin URL / mode / filter set)
// and a Snapshot (one per archived capture).
package snapshot

import "time"

// Mode selects which subset of snapshots per origin URL survives Phase C.
type Mode string

const (
	ModeAll   Mode = "all"
	ModeLast  Mode = "last"
	ModeFirst Mode = "first"
)

// LockSentinel marks a Snapshot row currently leased by a worker.
const LockSentinel = "LOCK"

// Job is one row per (origin URL, mode, filter set).
type Job struct {
	JobKey        string
	ProgressDone  int
	ProgressTotal int
	InsertDone    bool
	IndexDone     bool
	FilterDone    bool
	CreatedAt     time.Time
}

// Snapshot is one row per unique (timestamp, url_origin, url_archive) triple.
type Snapshot struct {
	SCID              int64
	Counter           int64
	Timestamp         string
	URLOrigin         string
	URLArchive        string
	RedirectURL       string
	RedirectTimestamp string
	Response          string // "" means NULL/unclaimed
	File              string
}

// IsLocked reports whether the row is currently leased.
func (s Snapshot) IsLocked() bool { return s.Response == LockSentinel }

// IsPending reports whether the row has never been claimed or terminated.
func (s Snapshot) IsPending() bool { return s.Response == "" }

// IsTerminal reports whether the row holds a final outcome.
func (s Snapshot) IsTerminal() bool { return s.Response != "" && s.Response != LockSentinel }

// PriorResult is the flat projection read back from a Result File: the
// Snapshot columns minus internal bookkeeping (scid, counter).
type PriorResult struct {
	Timestamp         string
	URLArchive        string
	URLOrigin         string
	RedirectURL       string
	RedirectTimestamp string
	Response          string
	File              string
}

// Outcome is the terminal classification a Download Worker commits.
type Outcome struct {
	Response          string
	File              string
	RedirectURL       string
	RedirectTimestamp string
}
