package engine

import (
	"sync/atomic"
	"time"
)

// Metrics is the observation surface of a Target. Implementations must be
// safe for concurrent use.
type Metrics interface {
	ObserveSubmitted(table string, n int)
	ObserveFiltered(table string, n int)
	ObserveFlush(table string, entities int, elapsed time.Duration)
	ObserveDropped(table, reason string, batches, entities int)
	ObserveDrainLoop(table string)
}

// NoopMetrics is used when no metrics are configured.
type NoopMetrics struct{}

func (NoopMetrics) ObserveSubmitted(string, int) {}
func (NoopMetrics) ObserveFiltered(string, int) {}
func (NoopMetrics) ObserveFlush(string, int, time.Duration) {}
func (NoopMetrics) ObserveDropped(string, string, int, int) {}
func (NoopMetrics) ObserveDrainLoop(string) {}

// Drop reasons reported to Metrics.
const (
	DropReasonStore    = "store_error"
	DropReasonShutdown = "shutdown"
	DropReasonClosed   = "closed"
)

// Stats is a point in time snapshot of a Target's counters.
type Stats struct {
	Submitted       uint64 `json:"submitted"`
	Filtered        uint64 `json:"filtered"`
	Written         uint64 `json:"written"`
	Batches         uint64 `json:"batches"`
	DroppedBatches  uint64 `json:"dropped_batches"`
	DroppedEntities uint64 `json:"dropped_entities"`
	DrainLoops      uint64 `json:"drain_loops"`
	Pending         int    `json:"pending"`
	Draining        bool   `json:"draining"`
}

type counters struct {
	submitted       atomic.Uint64
	filtered        atomic.Uint64
	written         atomic.Uint64
	batches         atomic.Uint64
	droppedBatches  atomic.Uint64
	droppedEntities atomic.Uint64
	drainLoops      atomic.Uint64
}
