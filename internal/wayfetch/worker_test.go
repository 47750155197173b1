package wayfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/waybackup/internal/waylayout"
	"github.com/lcalzada-xor/waybackup/internal/wbpace"
	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// shrinkWaits overrides the package-level wbpace wait vars to millisecond
// durations for the lifetime of a test, restoring the originals after.
func shrinkWaits(t *testing.T) func() {
	t.Helper()
	origTransient, origProtocol, origOuter := wbpace.TransientSocketWait, wbpace.ProtocolFaultWait, wbpace.OuterAttemptWait
	wbpace.TransientSocketWait = time.Millisecond
	wbpace.ProtocolFaultWait = time.Millisecond
	wbpace.OuterAttemptWait = time.Millisecond
	return func() {
		wbpace.TransientSocketWait = origTransient
		wbpace.ProtocolFaultWait = origProtocol
		wbpace.OuterAttemptWait = origOuter
	}
}

// fakeQueue serves exactly one pre-set snapshot, then reports no more work.
type fakeQueue struct {
	snap      snapshot.Snapshot
	served    bool
	committed []snapshot.Outcome
}

func (q *fakeQueue) Claim(ctx context.Context) (snapshot.Snapshot, bool, error) {
	if q.served {
		return snapshot.Snapshot{}, false, nil
	}
	q.served = true
	return q.snap, true, nil
}

func (q *fakeQueue) Commit(ctx context.Context, s snapshot.Snapshot, outcome snapshot.Outcome) error {
	q.committed = append(q.committed, outcome)
	return nil
}

type nopSink struct{}

func (nopSink) Infof(string, ...any)             {}
func (nopSink) Warnf(string, ...any)             {}
func (nopSink) Errorf(string, ...any)            {}
func (nopSink) Progress(int64, int64)            {}
func (nopSink) Done(results []snapshot.Snapshot) {}

// scriptedConn replays a fixed sequence of responses/errors, one per Get
// call, and counts Reopen calls.
type scriptedConn struct {
	steps   []func() (int, string, string, io.ReadCloser, error)
	calls   int
	reopens int
}

func (c *scriptedConn) Get(ctx context.Context, url string) (int, string, string, io.ReadCloser, error) {
	i := c.calls
	c.calls++
	if i >= len(c.steps) {
		return 0, "", "", nil, fmt.Errorf("scriptedConn: no more steps")
	}
	return c.steps[i]()
}

func (c *scriptedConn) Reopen()      { c.reopens++ }
func (c *scriptedConn) Close() error { return nil }

func bodyOf(s string) io.ReadCloser { return io.NopCloser(strings.NewReader(s)) }

func TestWorker_RedirectCap(t *testing.T) {
	restore := shrinkWaits(t)
	defer restore()

	conn := &scriptedConn{}
	for i := 0; i < 10; i++ {
		conn.steps = append(conn.steps, func() (int, string, string, io.ReadCloser, error) {
			return http.StatusFound, "https://web.archive.org/web/20200101000000id_/http://h.example/next", "", bodyOf(""), nil
		})
	}

	q := &fakeQueue{snap: snapshot.Snapshot{
		SCID: 1, Timestamp: "20200101000000", URLOrigin: "http://h.example/a",
		URLArchive: "https://web.archive.org/web/20200101000000id_/http://h.example/a",
	}}

	w := NewWorkerWithClient(0, q, nopSink{}, waylayout.NewWriter(), Config{
		Mode: snapshot.ModeAll, OutputDir: t.TempDir(), MaxRetry: 1, FollowRedirect: true,
	}, new(atomic.Int64), conn)

	require.NoError(t, w.Run(context.Background()))
	require.Len(t, q.committed, 1)
	require.NotEqual(t, "200", q.committed[0].Response)
	// 5 redirect hops (MaxRedirectHops) plus the initial GET is 6 calls,
	// then a terminal non-200 outcome once the hop budget is exhausted.
	require.Equal(t, wbpace.MaxRedirectHops+1, conn.calls)
}

func TestWorker_RetryDiscipline_TransientThenSuccess(t *testing.T) {
	restore := shrinkWaits(t)
	defer restore()

	conn := &scriptedConn{steps: []func() (int, string, string, io.ReadCloser, error){
		func() (int, string, string, io.ReadCloser, error) {
			return 0, "", "", nil, fmt.Errorf("dial tcp: %w", syscall.ECONNRESET)
		},
		func() (int, string, string, io.ReadCloser, error) {
			return 0, "", "", nil, fmt.Errorf("dial tcp: %w", syscall.ECONNRESET)
		},
		func() (int, string, string, io.ReadCloser, error) {
			return http.StatusOK, "", "", bodyOf("<html>ok</html>"), nil
		},
	}}

	q := &fakeQueue{snap: snapshot.Snapshot{
		SCID: 1, Timestamp: "20200101000000", URLOrigin: "http://h.example/a/",
		URLArchive: "https://web.archive.org/web/20200101000000id_/http://h.example/a/",
	}}

	w := NewWorkerWithClient(0, q, nopSink{}, waylayout.NewWriter(), Config{
		Mode: snapshot.ModeAll, OutputDir: t.TempDir(), MaxRetry: 1, FollowRedirect: true,
	}, new(atomic.Int64), conn)

	require.NoError(t, w.Run(context.Background()))

	require.Len(t, q.committed, 1)
	require.Equal(t, "200", q.committed[0].Response)
	// Two transient faults before success means exactly two
	// TransientSocketWait sleeps and zero OuterAttemptWait sleeps, since
	// the single outer attempt succeeds within its inner retry budget.
	require.Equal(t, 3, conn.calls)
	require.Equal(t, 0, conn.reopens)
}
