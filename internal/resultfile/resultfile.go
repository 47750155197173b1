// Package resultfile is the Result File (C3): a CSV projection of terminal
// snapshot rows, written on shutdown and re-ingested as prior state on a
// later run. Grounded on db.py's csv_view and SnapshotCollection.py's
// csv_create/skip_set.
package resultfile

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

var header = []string{"timestamp", "url_archive", "url_origin", "redirect_url", "redirect_timestamp", "response", "file"}

// Write exports rows (only terminal rows, response IS NOT NULL, is the
// caller's contract — waystore.ExportRows already filters this way) to a
// fresh CSV file at path.
func Write(path string, rows []snapshot.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("resultfile: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("resultfile: write header: %w", err)
	}
	for _, r := range rows {
		record := []string{r.Timestamp, r.URLArchive, r.URLOrigin, r.RedirectURL, r.RedirectTimestamp, r.Response, r.File}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("resultfile: write row %s: %w", r.URLArchive, err)
		}
	}
	w.Flush()
	return w.Error()
}

// Read loads a prior Result File, if present, returning (nil, nil) when the
// file does not exist so callers can treat "no prior state" as the normal
// case on a first run.
func Read(path string) ([]snapshot.PriorResult, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resultfile: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("resultfile: parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var out []snapshot.PriorResult
	for _, rec := range records[1:] { // skip header
		if len(rec) < 7 {
			continue
		}
		out = append(out, snapshot.PriorResult{
			Timestamp:         rec[0],
			URLArchive:        rec[1],
			URLOrigin:         rec[2],
			RedirectURL:       rec[3],
			RedirectTimestamp: rec[4],
			Response:          rec[5],
			File:              rec[6],
		})
	}
	return out, nil
}

// Exists reports whether a Result File is present for reuse as prior state.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
