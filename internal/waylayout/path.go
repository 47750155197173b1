package waylayout

import (
	"path/filepath"

	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// OutputPath computes the on-disk path for a snapshot per §4.5/§6:
//   - mode "all":          <output>/<domain>/<timestamp>/<subdir>/<filename>
//   - mode "last"/"first": <output>/<domain>/<subdir>/<filename>
func OutputPath(outputDir string, mode snapshot.Mode, timestamp string, split Split) string {
	parts := []string{outputDir, split.Domain}
	if mode == snapshot.ModeAll {
		parts = append(parts, timestamp)
	}
	if split.Subdir != "" {
		parts = append(parts, split.Subdir)
	}
	parts = append(parts, split.Filename)
	return filepath.Join(parts...)
}
