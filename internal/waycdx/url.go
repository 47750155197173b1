// Package waycdx builds the CDX query URL and streams the CDX response to
// the Index File (C2/C4), grounded on query_list/inject/query in
// archive.py and restated against the spec's §4.2 rules.
package waycdx

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QueryParams is the filter set a CDX query is built from.
type QueryParams struct {
	Domain     string
	Subdir     string
	Filename   string
	Explicit   bool
	RangeYears int    // years back from today; 0 means unset
	Start      string // 14-digit explicit bound
	End        string // 14-digit explicit bound
	Limit      int
	FileTypes  []string // extensions, without leading dot
	StatusCode []string
}

// BuildURL constructs the CDX query URL deterministically per §4.2.
func BuildURL(p QueryParams) string {
	host := p.Domain
	if p.Subdir != "" {
		host += "/" + strings.Trim(p.Subdir, "/")
	}
	if p.Filename != "" {
		host += "/" + p.Filename
	}
	if !p.Explicit {
		host += "/*"
	}

	var b strings.Builder
	b.WriteString("https://web.archive.org/cdx/search/cdx?url=")
	b.WriteString(host)
	b.WriteString("&fl=timestamp,digest,mimetype,statuscode,original")
	b.WriteString("&output=json")

	switch {
	case p.Start != "" && p.End != "":
		b.WriteString("&from=" + p.Start)
		b.WriteString("&to=" + p.End)
	case p.RangeYears > 0:
		year := time.Now().UTC().Year() - p.RangeYears
		b.WriteString("&from=" + strconv.Itoa(year))
	}

	if p.Limit > 0 {
		b.WriteString("&limit=" + strconv.Itoa(p.Limit))
	}

	if len(p.StatusCode) > 0 {
		b.WriteString("&filter=statuscode:(" + strings.Join(p.StatusCode, "|") + ")$")
	}
	if len(p.FileTypes) > 0 {
		b.WriteString(`&filter=original:.*\.(` + strings.Join(p.FileTypes, "|") + `)$`)
	}

	return b.String()
}

// SnapshotURL builds the canonical archive URL for a given timestamp and
// origin URL.
func SnapshotURL(timestamp, origin string) string {
	return fmt.Sprintf("https://web.archive.org/web/%sid_/%s", timestamp, origin)
}
