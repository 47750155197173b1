package wbarchive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnsupported_SaveAlwaysFails(t *testing.T) {
	r := NewUnsupportedSaveRequester()
	err := r.Save(context.Background(), "http://h.example/a")
	require.True(t, errors.Is(err, errors.ErrUnsupported))
}
