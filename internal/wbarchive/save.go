// Package wbarchive holds the two out-of-scope collaborators named in §1:
// a "save to archive" requester and a link-rewriting post-processor.
// Neither is implemented; both exist so the CLI surface that references
// them (the --save flag) fails loudly instead of silently doing nothing.
// Grounded on original_source/pywaybackup/archive.py's save_page, which
// POSTs/GETs https://web.archive.org/save/<url> and parses the resulting
// redirect for a fresh snapshot timestamp — out of scope here, but its
// shape is what SaveRequester.Save would need to implement.
package wbarchive

import (
	"context"
	"errors"
)

// SaveRequester asks the Wayback Machine to capture a fresh snapshot of a
// URL before the downloader runs. Unimplemented: the CLI wires --save to
// this interface so the flag parses but fails loud rather than silently
// downloading stale snapshots.
type SaveRequester interface {
	Save(ctx context.Context, url string) error
}

// Unsupported is the SaveRequester used when --save is given: it always
// fails with errors.ErrUnsupported.
type Unsupported struct{}

// NewUnsupportedSaveRequester returns the stub SaveRequester.
func NewUnsupportedSaveRequester() SaveRequester { return Unsupported{} }

func (Unsupported) Save(ctx context.Context, url string) error {
	return errors.ErrUnsupported
}
