package waylayout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

func TestSplitURL_DefaultFilename(t *testing.T) {
	s := SplitURL("http://h.example/a/")
	require.Equal(t, "h.example", s.Domain)
	require.Equal(t, "a", s.Subdir)
	require.Equal(t, "index.html", s.Filename)
}

func TestSplitURL_ExplicitFilename(t *testing.T) {
	s := SplitURL("http://h.example/a/b/x.html")
	require.Equal(t, "h.example", s.Domain)
	require.Equal(t, "a/b", s.Subdir)
	require.Equal(t, "x.html", s.Filename)
}

func TestOutputPath_AllModeIncludesTimestamp(t *testing.T) {
	s := SplitURL("http://h.example/a/b/x.html")
	got := OutputPath("/output", snapshot.ModeAll, "20200101000000", s)
	require.Equal(t, filepath.Join("/output", "h.example", "20200101000000", "a", "b", "x.html"), got)
}

func TestOutputPath_LastModeOmitsTimestamp(t *testing.T) {
	s := SplitURL("http://h.example/a/b/x.html")
	got := OutputPath("/output", snapshot.ModeLast, "20200101000000", s)
	require.Equal(t, filepath.Join("/output", "h.example", "a", "b", "x.html"), got)
}

func TestOutputPath_DefaultFilenameAllMode(t *testing.T) {
	s := SplitURL("http://h.example/a/")
	got := OutputPath("/output", snapshot.ModeAll, "20200101000000", s)
	require.Equal(t, filepath.Join("/output", "h.example", "20200101000000", "a", "index.html"), got)
}

func TestWriter_CollisionRuleA_FileBecomesDirectory(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "h.example", "a", "b")
	require.NoError(t, os.MkdirAll(filepath.Dir(base), 0o755))
	require.NoError(t, os.WriteFile(base, []byte("old contents"), 0o644))

	w := NewWriter()
	target := filepath.Join(base, "index.html")
	final, err := w.Write(target, []byte("<html>new</html>"))
	require.NoError(t, err)
	require.Equal(t, target, final)

	info, err := os.Stat(base)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	moved, err := os.ReadFile(filepath.Join(base, "b"))
	require.NoError(t, err)
	require.Equal(t, "old contents", string(moved))
}

func TestWriter_CollisionRuleB_DirectoryGetsIndexHTML(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "h.example", "a", "b", "c")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	w := NewWriter()
	final, err := w.Write(dir, []byte("<html><body>hi</body></html>"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "index.html"), final)
}

func TestWriter_ExistingFileNotOverwritten(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "x.html")
	require.NoError(t, os.WriteFile(target, []byte("first"), 0o644))

	w := NewWriter()
	_, err := w.Write(target, []byte("second"))
	require.ErrorIs(t, err, ErrExisting)

	data, _ := os.ReadFile(target)
	require.Equal(t, "first", string(data))
}
