// Package metrics exports target activity to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "logtable"

// Prometheus implements engine.Metrics. Every series is labelled by table.
type Prometheus struct {
	submitted       *prometheus.CounterVec
	filtered        *prometheus.CounterVec
	written         *prometheus.CounterVec
	batches         *prometheus.CounterVec
	droppedBatches  *prometheus.CounterVec
	droppedEntities *prometheus.CounterVec
	drainLoops      *prometheus.CounterVec
	flushDuration   *prometheus.HistogramVec
	batchSize       *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg means the default registry.
func New(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Prometheus{
		submitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_submitted_total",
			Help:      "Entities accepted into the write queue",
		}, []string{"table"}),
		filtered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_filtered_total",
			Help:      "Records rejected by the target filter",
		}, []string{"table"}),
		written: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_written_total",
			Help:      "Entities committed to the table store",
		}, []string{"table"}),
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_written_total",
			Help:      "Batches committed to the table store",
		}, []string{"table"}),
		droppedBatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_dropped_total",
			Help:      "Batches discarded without being written",
		}, []string{"table", "reason"}),
		droppedEntities: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_dropped_total",
			Help:      "Entities discarded without being written",
		}, []string{"table", "reason"}),
		drainLoops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drain_loops_total",
			Help:      "Passes of the drain task over the queue",
		}, []string{"table"}),
		flushDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time taken to commit one batch",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table"}),
		batchSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size_entities",
			Help:      "Entities per committed batch",
			Buckets:   []float64{1, 5, 10, 25, 50, 75, 100},
		}, []string{"table"}),
	}
}

func (p *Prometheus) ObserveSubmitted(table string, n int) {
	p.submitted.WithLabelValues(table).Add(float64(n))
}

func (p *Prometheus) ObserveFiltered(table string, n int) {
	p.filtered.WithLabelValues(table).Add(float64(n))
}

func (p *Prometheus) ObserveFlush(table string, entities int, elapsed time.Duration) {
	p.written.WithLabelValues(table).Add(float64(entities))
	p.batches.WithLabelValues(table).Inc()
	p.flushDuration.WithLabelValues(table).Observe(elapsed.Seconds())
	p.batchSize.WithLabelValues(table).Observe(float64(entities))
}

func (p *Prometheus) ObserveDropped(table, reason string, batches, entities int) {
	p.droppedBatches.WithLabelValues(table, reason).Add(float64(batches))
	p.droppedEntities.WithLabelValues(table, reason).Add(float64(entities))
}

func (p *Prometheus) ObserveDrainLoop(table string) {
	p.drainLoops.WithLabelValues(table).Inc()
}
