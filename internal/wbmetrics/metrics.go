// Package wbmetrics exposes the run's download counters over Prometheus,
// grounded on vjache-cie's cmd/cie/index.go --metrics-addr flag: an
// optional HTTP server serving promhttp.Handler() against the default
// registry, started only when the operator asks for it.
package wbmetrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters tracks per-outcome download totals across the process.
type Counters struct {
	downloads *prometheus.CounterVec
	pending   prometheus.Gauge
}

var (
	registerOnce sync.Once
	counters     *Counters
)

// NewCounters returns the process-wide Counters, registering them against
// reg on first call. Later calls (one Supervisor per job_key can run in the
// same process, e.g. in tests) reuse the already-registered collectors
// instead of panicking on a duplicate registration.
func NewCounters(reg prometheus.Registerer) *Counters {
	registerOnce.Do(func() {
		counters = &Counters{
			downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "waybackup_downloads_total",
				Help: "Snapshot downloads completed, labeled by terminal response classification.",
			}, []string{"response"}),
			pending: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "waybackup_pending_snapshots",
				Help: "Snapshots pending when the work queue started, minus those committed since, across all workers.",
			}),
		}
		reg.MustRegister(counters.downloads, counters.pending)
	})
	return counters
}

// Observe records one terminal outcome.
func (c *Counters) Observe(response string) {
	if c == nil {
		return
	}
	c.downloads.WithLabelValues(response).Inc()
}

// SetPending updates the pending-snapshots gauge.
func (c *Counters) SetPending(n int64) {
	if c == nil {
		return
	}
	c.pending.Set(float64(n))
}

// ServeBackground starts a /metrics HTTP server on addr and returns a
// shutdown func; a no-op shutdown is returned if addr is empty, matching
// the teacher pack's "disabled unless an address was given" convention.
func ServeBackground(addr string) (shutdown func(context.Context) error, err error) {
	if addr == "" {
		return func(context.Context) error { return nil }, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()

	select {
	case serveErr := <-errCh:
		return nil, fmt.Errorf("wbmetrics: serve %s: %w", addr, serveErr)
	case <-time.After(50 * time.Millisecond):
	}

	return srv.Shutdown, nil
}
