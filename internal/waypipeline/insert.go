// Package waypipeline is the Index Pipeline (C5): Phase A parses the Index
// File into the Snapshot table in batches, Phase B builds secondary
// indexes, Phase C applies the mode filter and assigns the display
// counter. Grounded on SnapshotCollection.py's insert_cdx/index_snapshots/
// filter_snapshots.
package waypipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	jsonlib "github.com/goccy/go-json"

	"github.com/lcalzada-xor/waybackup/internal/core"
	"github.com/lcalzada-xor/waybackup/internal/waycdx"
	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

const insertBatchSize = 2500

// InsertStats summarizes Phase A for reporting.
type InsertStats struct {
	CDXTotal   int // lines seen, header excluded
	Faulty     int // lines that failed to parse
	Inserted   int
	Duplicates int
}

// cdxRow is the shape of one CDX data line: [timestamp, digest, mimetype, statuscode, original].
type cdxRow [5]string

// RunInsert executes Phase A: read indexPath line by line (dropping the
// header), parse each remaining line tolerating trailing "]]"/"," noise,
// and insert in batches of 2,500 with conflict-ignore semantics.
func RunInsert(ctx context.Context, store core.Store, indexPath string) (InsertStats, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return InsertStats{}, fmt.Errorf("waypipeline: open index file: %w", err)
	}
	defer f.Close()

	var stats InsertStats
	batch := make([]snapshot.Snapshot, 0, insertBatchSize)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			continue // header line
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		stats.CDXTotal++

		row, ok := parseCDXLine(line)
		if !ok {
			stats.Faulty++
			continue
		}

		batch = append(batch, toSnapshotRow(row))
		if len(batch) >= insertBatchSize {
			if err := flush(ctx, store, batch, &stats); err != nil {
				return stats, err
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("waypipeline: scan index file: %w", err)
	}
	if err := flush(ctx, store, batch, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

func flush(ctx context.Context, store core.Store, batch []snapshot.Snapshot, stats *InsertStats) error {
	if len(batch) == 0 {
		return nil
	}
	inserted, duplicates, err := store.InsertBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("waypipeline: insert batch: %w", err)
	}
	stats.Inserted += inserted
	stats.Duplicates += duplicates
	return nil
}

// parseCDXLine tolerates the trailing "]]" of the last data line and the
// trailing "," of every other data line before JSON-decoding the row.
func parseCDXLine(line string) (cdxRow, bool) {
	line = strings.TrimSuffix(line, "]]")
	line = strings.TrimSuffix(line, ",")
	line = strings.TrimSpace(line)
	if line == "" {
		return cdxRow{}, false
	}

	var fields []string
	if err := jsonlib.Unmarshal([]byte(line), &fields); err != nil {
		return cdxRow{}, false
	}
	if len(fields) < 5 {
		return cdxRow{}, false
	}
	var row cdxRow
	copy(row[:], fields[:5])
	return row, true
}

// toSnapshotRow converts a parsed CDX row to a Snapshot insert candidate,
// pre-marking 301/404 as already-terminal per §4.3 Phase A.
func toSnapshotRow(row cdxRow) snapshot.Snapshot {
	timestamp, _, _, statuscode, original := row[0], row[1], row[2], row[3], row[4]

	response := ""
	if statuscode == "301" || statuscode == "404" {
		response = statuscode
	}

	return snapshot.Snapshot{
		Timestamp:  timestamp,
		URLOrigin:  original,
		URLArchive: waycdx.SnapshotURL(timestamp, original),
		Response:   response,
	}
}
