package waypipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/waybackup/internal/waystore"
	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

func writeIndexFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.jsonl")
	content := "[\"timestamp\",\"digest\",\"mimetype\",\"statuscode\",\"original\"]\n"
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCDXLine_TrailingArtifacts(t *testing.T) {
	plain := `["20200101000000","d1","text/html","200","http://h.example/a"]`
	withComma := plain + ","
	withBrackets := plain + "]]"

	rowA, okA := parseCDXLine(plain)
	rowB, okB := parseCDXLine(withComma)
	rowC, okC := parseCDXLine(withBrackets)

	require.True(t, okA)
	require.True(t, okB)
	require.True(t, okC)
	require.Equal(t, rowA, rowB)
	require.Equal(t, rowA, rowC)
}

func TestRunInsert_PreMarksNonSuccess(t *testing.T) {
	path := writeIndexFile(t,
		`["20200101000000","d1","text/html","200","http://h.example/a"]`,
		`["20200101000100","d2","text/html","404","http://h.example/b"]`,
	)

	ctx := context.Background()
	s, err := waystore.Open(ctx, filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	defer s.Close()

	stats, err := RunInsert(ctx, s, path)
	require.NoError(t, err)
	require.Equal(t, 2, stats.CDXTotal)
	require.Equal(t, 2, stats.Inserted)

	n, err := s.CountByStatus(ctx, "404")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestRun_ResumptionIdempotence(t *testing.T) {
	path := writeIndexFile(t, `["20200101000000","d1","text/html","200","http://h.example/a"]`)

	ctx := context.Background()
	s, err := waystore.Open(ctx, filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	defer s.Close()

	job, _, err := s.EnsureJob(ctx, "job-1")
	require.NoError(t, err)

	report1, err := Run(ctx, s, job, path, snapshot.ModeAll, nil)
	require.NoError(t, err)
	require.Equal(t, 1, report1.Insert.Inserted)

	job2, existed, err := s.EnsureJob(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, existed)
	require.True(t, job2.InsertDone)
	require.True(t, job2.IndexDone)
	require.True(t, job2.FilterDone)

	// Second run with all latches set must not touch Phase A again: removing
	// the index file would make a second Phase A fail, so this run proves
	// the latch skip actually happened.
	require.NoError(t, os.Remove(path))
	report2, err := Run(ctx, s, job2, path, snapshot.ModeAll, nil)
	require.NoError(t, err)
	require.Equal(t, InsertStats{}, report2.Insert)
}
