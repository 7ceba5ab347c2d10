package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/thisisjab/logtable/engine"
)

var _ engine.Metrics = (*Prometheus)(nil)

func TestPrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSubmitted("AppLogs", 3)
	m.ObserveFiltered("AppLogs", 1)
	m.ObserveFlush("AppLogs", 2, 10*time.Millisecond)
	m.ObserveDropped("AppLogs", engine.DropReasonStore, 1, 1)
	m.ObserveDrainLoop("AppLogs")
	m.ObserveDrainLoop("AppLogs")

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"submitted", m.submitted.WithLabelValues("AppLogs"), 3},
		{"filtered", m.filtered.WithLabelValues("AppLogs"), 1},
		{"written", m.written.WithLabelValues("AppLogs"), 2},
		{"batches", m.batches.WithLabelValues("AppLogs"), 1},
		{"dropped batches", m.droppedBatches.WithLabelValues("AppLogs", engine.DropReasonStore), 1},
		{"dropped entities", m.droppedEntities.WithLabelValues("AppLogs", engine.DropReasonStore), 1},
		{"drain loops", m.drainLoops.WithLabelValues("AppLogs"), 2},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}

	if n := testutil.CollectAndCount(m.flushDuration); n != 1 {
		t.Errorf("flush duration series = %d, want 1", n)
	}
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Fatalf("registering twice on one registry should panic")
		}
	}()
	New(reg)
}
