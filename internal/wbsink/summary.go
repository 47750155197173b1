package wbsink

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// stats mirrors the teacher's Reporter.Stats: counts grouped by terminal
// response, the one piece of aggregation the run-end summary needs.
type stats struct {
	total      int
	downloaded int
	redirect   int
	notFound   int
	failed     int
	unknown    int
}

func collectStats(results []snapshot.Snapshot) stats {
	var st stats
	st.total = len(results)
	for _, r := range results {
		switch r.Response {
		case "200":
			st.downloaded++
		case "301":
			st.redirect++
		case "404":
			st.notFound++
		case "failed":
			st.failed++
		default:
			st.unknown++
		}
	}
	return st
}

// RenderSummary renders the end-of-run table, grounded on the teacher's
// ResultsTable/RenderSummary but backed by go-pretty instead of hand-rolled
// box drawing.
func RenderSummary(results []snapshot.Snapshot) string {
	st := collectStats(results)

	var sb strings.Builder
	sb.WriteString("Download Summary\n")

	tbl := table.NewWriter()
	tbl.AppendHeader(table.Row{"Outcome", "Count"})
	tbl.AppendRow(table.Row{"downloaded", humanize.Comma(int64(st.downloaded))})
	tbl.AppendRow(table.Row{"redirect recorded", humanize.Comma(int64(st.redirect))})
	tbl.AppendRow(table.Row{"not found", humanize.Comma(int64(st.notFound))})
	tbl.AppendRow(table.Row{"failed", humanize.Comma(int64(st.failed))})
	if st.unknown > 0 {
		tbl.AppendRow(table.Row{"unknown", humanize.Comma(int64(st.unknown))})
	}
	tbl.AppendSeparator()
	tbl.AppendRow(table.Row{"total", humanize.Comma(int64(st.total))})
	tbl.SetStyle(table.StyleLight)

	sb.WriteString(tbl.Render())
	sb.WriteString("\n")
	return sb.String()
}
