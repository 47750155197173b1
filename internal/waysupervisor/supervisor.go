// Package waysupervisor is the Supervisor (C8): the single place that
// sequences every other component into one run, grounded on the teacher's
// runDownload in cmd/downurl/main.go (open resources, run phases in order,
// tear down, report) generalized from a one-shot batch job into a
// resumable one backed by the Persistent Store.
package waysupervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lcalzada-xor/waybackup/internal/core"
	"github.com/lcalzada-xor/waybackup/internal/resultfile"
	"github.com/lcalzada-xor/waybackup/internal/waycdx"
	"github.com/lcalzada-xor/waybackup/internal/wayfetch"
	"github.com/lcalzada-xor/waybackup/internal/waylayout"
	"github.com/lcalzada-xor/waybackup/internal/waypipeline"
	"github.com/lcalzada-xor/waybackup/internal/wayqueue"
	"github.com/lcalzada-xor/waybackup/internal/waystore"
	"github.com/lcalzada-xor/waybackup/internal/wbarchive"
	"github.com/lcalzada-xor/waybackup/internal/wbconfig"
	"github.com/lcalzada-xor/waybackup/internal/wbmetrics"
	"github.com/lcalzada-xor/waybackup/internal/wbpace"
	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// resumeWait is how long the resume banner waits before proceeding, giving
// the operator a window to Ctrl+C if they meant --reset instead. A var, not
// a const, so tests can shrink it.
var resumeWait = 5 * time.Second

// storeFileName is the SQLite file living under a job's metadata directory.
const storeFileName = "waybackup.db"

// indexFileName is the raw CDX response cached alongside the store.
const indexFileName = "index.json"

// resultFileName is the exported CSV projection of terminal rows.
const resultFileName = "result.csv"

// openStore abstracts waystore.Open so tests can substitute an in-memory
// backend without touching disk.
type openStore func(ctx context.Context, path string) (*waystore.Store, error)

// Supervisor sequences the Persistent Store, Index Pipeline, Work Queue and
// Download Workers into one run per §4.6.
type Supervisor struct {
	cfg     wbconfig.Config
	sink    core.Sink
	open    openStore
	client  *waycdx.Client
	saver   wbarchive.SaveRequester
	metrics *wbmetrics.Counters
}

// New builds a Supervisor for cfg, reporting through sink. Download counters
// are registered against prometheus.DefaultRegisterer so --metrics-addr can
// scrape them regardless of how many Supervisors a process constructs.
func New(cfg wbconfig.Config, sink core.Sink) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		sink:    sink,
		open:    waystore.Open,
		client:  waycdx.NewClient(30 * time.Minute),
		saver:   wbarchive.NewUnsupportedSaveRequester(),
		metrics: wbmetrics.NewCounters(prometheus.DefaultRegisterer),
	}
}

// Run executes one end-to-end download per §4.6's ten steps. Cancelling ctx
// (SIGINT) stops workers after their in-flight snapshot, forces the
// metadata directory to be kept regardless of --keep, and still exports a
// Result File before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.MetadataDir, 0o755); err != nil {
		return fmt.Errorf("waysupervisor: create metadata directory: %w", err)
	}

	store, err := s.open(ctx, filepath.Join(s.cfg.MetadataDir, storeFileName))
	if err != nil {
		return fmt.Errorf("waysupervisor: open store: %w", err)
	}

	if s.cfg.Reset {
		if err := store.Reset(ctx, s.cfg.JobKey); err != nil {
			store.Close()
			return fmt.Errorf("waysupervisor: reset job: %w", err)
		}
		s.sink.Infof("reset: cleared prior state for job %s", s.cfg.JobKey)
	}

	if err := store.ResetLocks(ctx); err != nil {
		store.Close()
		return fmt.Errorf("waysupervisor: reset locks: %w", err)
	}

	job, existed, err := store.EnsureJob(ctx, s.cfg.JobKey)
	if err != nil {
		store.Close()
		return fmt.Errorf("waysupervisor: ensure job: %w", err)
	}

	if err := store.RecordRunStart(ctx, s.cfg.JobKey); err != nil {
		store.Close()
		return fmt.Errorf("waysupervisor: record run start: %w", err)
	}

	if existed {
		s.sink.Infof("resuming job %s (%d/%d done); starting in %s, Ctrl+C to abort",
			s.cfg.JobKey, job.ProgressDone, job.ProgressTotal, resumeWait)
		if err := wbpace.Sleep(ctx, resumeWait); err != nil {
			_ = store.RecordRunFinish(context.WithoutCancel(ctx), s.cfg.JobKey, "aborted during resume wait")
			store.Close()
			return nil
		}
	}

	keep, runErr := s.runJob(ctx, store, job)

	exitReason := "completed"
	if runErr != nil {
		exitReason = runErr.Error()
	} else if ctx.Err() != nil {
		exitReason = "interrupted"
	}
	if rerr := store.RecordRunFinish(context.WithoutCancel(ctx), s.cfg.JobKey, exitReason); rerr != nil {
		s.sink.Warnf("could not record run finish: %v", rerr)
	}

	if closeErr := store.Close(); closeErr != nil && runErr == nil {
		runErr = fmt.Errorf("waysupervisor: close store: %w", closeErr)
	}

	if !keep {
		s.cleanup()
	}

	return runErr
}

// runJob drives steps 4-9: index, pipeline phases, queue drain, export. It
// returns whether the metadata directory must be kept (either --keep was
// set or the run was interrupted) and any fatal error encountered.
func (s *Supervisor) runJob(ctx context.Context, store *waystore.Store, job snapshot.Job) (keep bool, err error) {
	if s.cfg.SaveRequested {
		if serr := s.saver.Save(ctx, s.cfg.URL); serr != nil {
			return forceKeep(ctx, s.cfg.Keep), fmt.Errorf("waysupervisor: save request: %w", serr)
		}
	}

	indexPath := filepath.Join(s.cfg.MetadataDir, indexFileName)
	if !waycdx.IndexExists(indexPath) {
		queryURL := waycdx.BuildURL(s.queryParams())
		s.sink.Infof("querying CDX index for %s", s.cfg.URL)
		progress := func(n int64) { s.sink.Infof("cdx: %d bytes streamed", n) }
		if ferr := s.client.FetchIndex(ctx, queryURL, indexPath, progress); ferr != nil {
			return forceKeep(ctx, s.cfg.Keep), fmt.Errorf("waysupervisor: fetch index: %w", ferr)
		}
	} else {
		s.sink.Infof("reusing existing index file")
	}

	resultPath := filepath.Join(s.cfg.MetadataDir, resultFileName)
	prior, err := resultfile.Read(resultPath)
	if err != nil {
		return forceKeep(ctx, s.cfg.Keep), fmt.Errorf("waysupervisor: read prior result file: %w", err)
	}

	report, err := waypipeline.Run(ctx, store, job, indexPath, s.cfg.Mode, prior)
	if err != nil {
		return forceKeep(ctx, s.cfg.Keep), fmt.Errorf("waysupervisor: pipeline: %w", err)
	}
	s.sink.Infof("indexed %d new, %d duplicate, filtered %d (%d by status 404/301), merged %d prior results",
		report.Insert.Inserted, report.Insert.Duplicates, report.FilterRemoved, report.FilteredByStatus, report.PriorMerged)

	pending, err := store.PendingCount(ctx)
	if err != nil {
		return forceKeep(ctx, s.cfg.Keep), fmt.Errorf("waysupervisor: pending count: %w", err)
	}

	if pending > 0 {
		if werr := s.drainQueue(ctx, store, pending); werr != nil {
			err = werr
		}
	} else {
		s.sink.Infof("nothing pending; exporting existing results")
	}

	rows, exportErr := store.ExportRows(context.WithoutCancel(ctx))
	if exportErr != nil {
		if err == nil {
			err = fmt.Errorf("waysupervisor: export rows: %w", exportErr)
		}
		return forceKeep(ctx, s.cfg.Keep), err
	}
	if werr := resultfile.Write(resultPath, rows); werr != nil {
		if err == nil {
			err = fmt.Errorf("waysupervisor: write result file: %w", werr)
		}
	}
	s.sink.Done(rows)

	return forceKeep(ctx, s.cfg.Keep), err
}

// forceKeep reports whether the metadata directory must survive cleanup:
// either the operator asked for it, or the run was interrupted mid-flight
// and deleting state out from under an aborted job would lose progress.
func forceKeep(ctx context.Context, cfgKeep bool) bool {
	return cfgKeep || ctx.Err() != nil
}

// drainQueue launches cfg.Workers Download Workers against a Work Queue
// wrapping store, and waits for all of them to finish or for ctx to be
// cancelled.
func (s *Supervisor) drainQueue(ctx context.Context, store core.Store, pending int64) error {
	s.metrics.SetPending(pending)
	queue := &metricsQueue{Queue: wayqueue.New(store), metrics: s.metrics}
	queue.left.Store(pending)
	writer := waylayout.NewWriter()
	handled := new(atomic.Int64)

	workerCfg := wayfetch.Config{
		Mode:           s.cfg.Mode,
		OutputDir:      s.cfg.OutputDir,
		MaxRetry:       s.cfg.Retry,
		Delay:          s.cfg.Delay,
		FollowRedirect: s.cfg.FollowRedirect,
		Total:          pending,
	}

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w := wayfetch.NewWorker(id, queue, s.sink, writer, workerCfg, handled)
			errs[id] = w.Run(ctx)
		}(i)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// metricsQueue wraps a core.Queue to observe each terminal outcome and
// decrement the pending gauge on commit, without Worker needing to know
// metrics exist at all.
type metricsQueue struct {
	core.Queue
	metrics *wbmetrics.Counters
	left    atomic.Int64
}

func (q *metricsQueue) Commit(ctx context.Context, snap snapshot.Snapshot, outcome snapshot.Outcome) error {
	if err := q.Queue.Commit(ctx, snap, outcome); err != nil {
		return err
	}
	q.metrics.Observe(outcome.Response)
	q.metrics.SetPending(q.left.Add(-1))
	return nil
}

// queryParams maps the immutable Config into the CDX query filter set.
func (s *Supervisor) queryParams() waycdx.QueryParams {
	return waycdx.QueryParams{
		Domain:     s.cfg.Split.Domain,
		Subdir:     s.cfg.Split.Subdir,
		Filename:   s.cfg.Split.Filename,
		Explicit:   s.cfg.Explicit,
		RangeYears: s.cfg.RangeYears,
		Start:      s.cfg.Start,
		End:        s.cfg.End,
		Limit:      s.cfg.Limit,
		FileTypes:  s.cfg.FileTypes,
		StatusCode: s.cfg.StatusCodes,
	}
}

// cleanup deletes the Index File and the Persistent Store once a run has
// finished without --keep and without interruption.
func (s *Supervisor) cleanup() {
	indexPath := filepath.Join(s.cfg.MetadataDir, indexFileName)
	if err := os.Remove(indexPath); err != nil && !os.IsNotExist(err) {
		s.sink.Warnf("could not remove index file: %v", err)
	}
	dbPath := filepath.Join(s.cfg.MetadataDir, storeFileName)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			s.sink.Warnf("could not remove store file: %v", err)
		}
	}
}
