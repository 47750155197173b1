package resultfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

func TestWriteThenRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.csv")

	rows := []snapshot.Snapshot{
		{Timestamp: "20200101000000", URLArchive: "A1", URLOrigin: "http://h.example/a", Response: "200", File: "/out/a"},
		{Timestamp: "20200101000100", URLArchive: "A2", URLOrigin: "http://h.example/b", Response: "404"},
	}
	require.NoError(t, Write(path, rows))

	prior, err := Read(path)
	require.NoError(t, err)
	require.Len(t, prior, 2)
	require.Equal(t, "200", prior[0].Response)
	require.Equal(t, "/out/a", prior[0].File)
	require.Equal(t, "404", prior[1].Response)
}

func TestRead_MissingFileReturnsNilNil(t *testing.T) {
	prior, err := Read(filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	require.Nil(t, prior)
}
