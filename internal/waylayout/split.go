// Package waylayout computes the output path for a downloaded snapshot and
// implements the collision-safe write rules of §4.5. The domain/subdir/
// filename split also backs CLI-level configuration (§1), and is exposed
// here as the in-scope helper the Download Worker actually calls to
// compute its output path.
package waylayout

import (
	"net/url"
	"path"
	"runtime"
	"strings"
)

// Split is the (domain, subdir, filename) decomposition of an origin URL.
type Split struct {
	Domain   string
	Subdir   string
	Filename string
}

// SplitURL decomposes rawURL the way helper.py's url_split does: strip the
// scheme, strip userinfo/port from the host, and default the filename to
// index.html when the path ends in "/" or has no final segment.
func SplitURL(rawURL string) Split {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Split{Domain: sanitizeComponent(rawURL), Filename: "index.html"}
	}

	domain := u.Hostname()
	if domain == "" {
		domain = strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
		if idx := strings.IndexAny(domain, "/"); idx >= 0 {
			domain = domain[:idx]
		}
	}

	p := u.Path
	dir, file := path.Split(p)
	dir = strings.Trim(dir, "/")

	if file == "" || !strings.Contains(file, ".") && strings.HasSuffix(p, "/") {
		file = "index.html"
	}
	if file == "" {
		file = "index.html"
	}

	return Split{
		Domain:   sanitizeComponent(domain),
		Subdir:   sanitizeSubdir(dir),
		Filename: sanitizeFilename(file),
	}
}

// sanitizeComponent strips path-traversal and null-byte hazards from a
// single path component, adapted from the teacher's sanitizePathComponent.
func sanitizeComponent(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "..", "")
	s = strings.Trim(s, "/")
	return s
}

func sanitizeSubdir(s string) string {
	parts := strings.Split(s, "/")
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		if p := sanitizeComponent(p); p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "/")
}

// sanitizeFilename percent-encodes characters Windows disallows in
// filenames, then restores "%20" to a literal space per §4.5.
func sanitizeFilename(name string) string {
	if runtime.GOOS != "windows" {
		return sanitizeComponent(name)
	}
	const disallowed = `:*?&=<>\|`
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(disallowed, r) {
			b.WriteString(url.QueryEscape(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(sanitizeComponent(b.String()), "%20", " ")
}
