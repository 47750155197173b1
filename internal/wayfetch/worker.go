package wayfetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/lcalzada-xor/waybackup/internal/core"
	"github.com/lcalzada-xor/waybackup/internal/waylayout"
	"github.com/lcalzada-xor/waybackup/internal/wbpace"
	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// Config parameterizes a Worker; constructed once by the Supervisor from
// the immutable Config value.
type Config struct {
	Mode           snapshot.Mode
	OutputDir      string
	MaxRetry       int // outer attempts is max(MaxRetry, 1)
	Delay          time.Duration
	FollowRedirect bool
	Total          int64
}

// connection is the per-worker HTTP seam: core.HTTPClient plus the ability
// to discard and reopen the underlying connection after a protocol fault.
// *Client satisfies it; tests substitute a mock to exercise the retry
// structure without a network.
type connection interface {
	core.HTTPClient
	Reopen()
}

// Worker owns one HTTP connection and drains the Queue until it is empty
// or the context is cancelled.
type Worker struct {
	id      int
	queue   core.Queue
	sink    core.Sink
	writer  *waylayout.Writer
	cfg     Config
	client  connection
	pacer   *wbpace.Pacer
	handled *atomic.Int64
}

// NewWorker builds a Worker bound to queue/sink/writer and the shared
// handled-counter.
func NewWorker(id int, queue core.Queue, sink core.Sink, writer *waylayout.Writer, cfg Config, handled *atomic.Int64) *Worker {
	return NewWorkerWithClient(id, queue, sink, writer, cfg, handled, NewClient())
}

// NewWorkerWithClient builds a Worker against an explicit connection,
// primarily for tests that need to simulate faults deterministically.
func NewWorkerWithClient(id int, queue core.Queue, sink core.Sink, writer *waylayout.Writer, cfg Config, handled *atomic.Int64, client connection) *Worker {
	return &Worker{
		id:      id,
		queue:   queue,
		sink:    sink,
		writer:  writer,
		cfg:     cfg,
		client:  client,
		pacer:   wbpace.NewPacer(cfg.Delay),
		handled: handled,
	}
}

// Run loops claim -> retry_loop -> commit until the queue drains or ctx is
// cancelled, per §4.5's main loop.
func (w *Worker) Run(ctx context.Context) error {
	defer w.client.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}

		claimed, ok, err := w.queue.Claim(ctx)
		if err != nil {
			return fmt.Errorf("wayfetch: worker %d claim: %w", w.id, err)
		}
		if !ok {
			return nil
		}

		outcome := w.retryLoop(ctx, claimed)
		if err := w.queue.Commit(ctx, claimed, outcome); err != nil {
			return fmt.Errorf("wayfetch: worker %d commit: %w", w.id, err)
		}
		w.sink.Infof("%s: %s", claimed.URLArchive, describeStatus(outcome.Response))

		w.handled.Add(1)
		w.sink.Progress(w.handled.Load(), w.cfg.Total)

		if err := w.pacer.Wait(ctx); err != nil {
			return nil
		}
	}
}

// retryLoop implements the two nested retry levels of §4.5.
func (w *Worker) retryLoop(ctx context.Context, s snapshot.Snapshot) snapshot.Outcome {
	outerAttempts := w.cfg.MaxRetry
	if outerAttempts < 1 {
		outerAttempts = 1
	}

	var lastErr error
	for outer := 0; outer < outerAttempts; outer++ {
		outcome, done, err := w.attempt(ctx, s)
		if done {
			return outcome
		}
		lastErr = err

		if outer < outerAttempts-1 {
			if werr := wbpace.Sleep(ctx, wbpace.OuterAttemptWait); werr != nil {
				break
			}
		}
	}

	if lastErr != nil {
		w.sink.Errorf("snapshot %s: %v", s.URLArchive, lastErr)
	}
	return snapshot.Outcome{Response: "failed"}
}

// attempt runs the inner connection-retry loop for a single outer attempt.
func (w *Worker) attempt(ctx context.Context, s snapshot.Snapshot) (snapshot.Outcome, bool, error) {
	inner := 0
	for inner < wbpace.MaxInnerAttempts {
		outcome, done, err := w.fetchOnce(ctx, s)
		if done {
			return outcome, true, nil
		}

		switch {
		case isTransientSocketFault(err):
			if werr := wbpace.Sleep(ctx, wbpace.TransientSocketWait); werr != nil {
				return snapshot.Outcome{}, false, werr
			}
			inner++
		case isProtocolFault(err):
			if werr := wbpace.Sleep(ctx, wbpace.ProtocolFaultWait); werr != nil {
				return snapshot.Outcome{}, false, werr
			}
			w.client.Reopen()
			inner = max(inner+1, wbpace.MaxInnerAttempts-1) // one fresh-connection attempt, then give up
		default:
			return snapshot.Outcome{}, false, err
		}
	}
	return snapshot.Outcome{}, false, fmt.Errorf("wayfetch: exhausted inner attempts for %s", s.URLArchive)
}

var timestampRe = regexp.MustCompile(`web\.archive\.org/web/(\d{14})`)

// fetchOnce runs the single fetch procedure of §4.5 steps 1-5, including
// redirect following.
func (w *Worker) fetchOnce(ctx context.Context, s snapshot.Snapshot) (snapshot.Outcome, bool, error) {
	current := encodeArchiveURL(s.URLArchive)
	outcome := snapshot.Outcome{}

	for hop := 0; ; hop++ {
		status, location, contentEncoding, body, err := w.client.Get(ctx, current)
		if err != nil {
			return snapshot.Outcome{}, false, err
		}

		switch {
		case status == 200:
			defer body.Close()
			data, rerr := readBody(body, contentEncoding)
			if rerr != nil {
				return snapshot.Outcome{}, false, rerr
			}
			return w.writeSuccess(s, data, outcome)

		case status == 302 && w.cfg.FollowRedirect && hop < wbpace.MaxRedirectHops:
			body.Close()
			if location == "" {
				outcome.Response = "unknown"
				return outcome, true, nil
			}
			resolved := resolveRedirect(current, location)
			outcome.RedirectURL = current
			if m := timestampRe.FindStringSubmatch(resolved); len(m) == 2 {
				outcome.RedirectTimestamp = m[1]
			}
			current = encodeArchiveURL(resolved)
			continue

		case status == 301 || status == 404:
			body.Close()
			outcome.Response = strconv.Itoa(status)
			return outcome, true, nil

		default:
			body.Close()
			outcome.Response = "unknown"
			return outcome, true, nil
		}
	}
}

func (w *Worker) writeSuccess(s snapshot.Snapshot, data []byte, outcome snapshot.Outcome) (snapshot.Outcome, bool, error) {
	split := waylayout.SplitURL(s.URLOrigin)
	target := waylayout.OutputPath(w.cfg.OutputDir, w.cfg.Mode, s.Timestamp, split)

	final, err := w.writer.Write(target, data)
	switch {
	case err == waylayout.ErrExisting:
		outcome.Response = "200"
		outcome.File = final
		return outcome, true, nil
	case err == waylayout.ErrPathTooLong:
		outcome.Response = "failed"
		outcome.File = "NT PATH TOO LONG TO SAVE FILE"
		return outcome, true, nil
	case err != nil:
		return snapshot.Outcome{}, false, err
	}

	outcome.Response = "200"
	outcome.File = final
	return outcome, true, nil
}

func readBody(body io.ReadCloser, contentEncoding string) ([]byte, error) {
	var reader io.Reader = body
	if contentEncoding == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("wayfetch: gunzip body: %w", err)
		}
		defer gz.Close()
		reader = gz
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("wayfetch: read body: %w", err)
	}
	return data, nil
}

// encodeArchiveURL percent-encodes the request line while preserving ':'
// and '/' per §4.5 step 1.
func encodeArchiveURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.String()
}

// resolveRedirect resolves a Location header against the URL it came from.
func resolveRedirect(base, location string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return location
	}
	loc, err := url.Parse(location)
	if err != nil {
		return location
	}
	return baseURL.ResolveReference(loc).String()
}
