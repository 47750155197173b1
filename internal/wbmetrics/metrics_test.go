package wbmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// value reads the current value of the waybackup_downloads_total counter
// for the given response label, 0 if the series has never been observed.
func value(t *testing.T, response string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "waybackup_downloads_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			if labelValue(m, "response") == response {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestCounters_ObserveIncrementsByLabel exercises the process-wide singleton
// against deltas rather than absolute values, since registerOnce means the
// collectors (and their accumulated counts) are shared across this
// package's tests.
func TestCounters_ObserveIncrementsByLabel(t *testing.T) {
	c := NewCounters(prometheus.DefaultRegisterer)

	before200 := value(t, "200")
	before404 := value(t, "404")

	c.Observe("200")
	c.Observe("200")
	c.Observe("404")

	require.Equal(t, before200+2, value(t, "200"))
	require.Equal(t, before404+1, value(t, "404"))
}

func TestNewCounters_IdempotentAcrossCalls(t *testing.T) {
	a := NewCounters(prometheus.DefaultRegisterer)
	b := NewCounters(prometheus.DefaultRegisterer)
	require.Same(t, a, b)
}

func TestServeBackground_DisabledWhenAddrEmpty(t *testing.T) {
	shutdown, err := ServeBackground("")
	require.NoError(t, err)
	require.NoError(t, shutdown(nil))
}
