package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thisisjab/logtable/entity"
)

// DefaultFlushTimeout bounds a single ExecuteBatch call.
const DefaultFlushTimeout = time.Minute

// drainer moves entities from the intake queue to the table store. Any
// number of goroutines may submit; at most one drain task runs at a time.
type drainer struct {
	table        string
	store        TableStore
	logger       *slog.Logger
	metrics      Metrics
	stats        *counters
	maxBatch     int
	flushTimeout time.Duration

	queue queue
	gate  drainGate
	tasks sync.WaitGroup

	// ctx is cancelled when shutdown gives up on a graceful drain.
	ctx    context.Context
	cancel context.CancelFunc
}

func newDrainer(table string, store TableStore, logger *slog.Logger, metrics Metrics, stats *counters, maxBatch int, flushTimeout time.Duration) *drainer {
	ctx, cancel := context.WithCancel(context.Background())
	return &drainer{
		table:        table,
		store:        store,
		logger:       logger,
		metrics:      metrics,
		stats:        stats,
		maxBatch:     maxBatch,
		flushTimeout: flushTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (d *drainer) submit(e entity.EncodedEntity) {
	d.queue.push(e)
	d.stats.submitted.Add(1)
	d.metrics.ObserveSubmitted(d.table, 1)
	d.schedule()
}

// schedule starts a drain task unless one is already running.
func (d *drainer) schedule() {
	if d.gate.tryAcquire() {
		d.tasks.Go(d.drain)
	}
}

// drain is the body of the single drain task. It keeps taking the queue until
// it looks empty, releases the gate, and then checks once more so an entity
// pushed between the last take and the release is not stranded.
func (d *drainer) drain() {
	for {
		for {
			d.stats.drainLoops.Add(1)
			d.metrics.ObserveDrainLoop(d.table)

			pending := d.queue.takeAll()
			if len(pending) == 0 {
				break
			}
			groupBatches(pending, d.maxBatch, d.flushBatch)
		}

		d.gate.release()

		if d.queue.len() == 0 || !d.gate.tryAcquire() {
			return
		}
	}
}

func (d *drainer) flushBatch(partitionKey string, batch []entity.EncodedEntity) {
	if d.ctx.Err() != nil {
		d.drop(DropReasonShutdown, partitionKey, batch, d.ctx.Err())
		return
	}

	start := time.Now()
	if err := d.execute(partitionKey, batch); err != nil {
		d.drop(DropReasonStore, partitionKey, batch, err)
		return
	}
	elapsed := time.Since(start)

	d.stats.batches.Add(1)
	d.stats.written.Add(uint64(len(batch)))
	d.metrics.ObserveFlush(d.table, len(batch), elapsed)

	d.logger.Debug("flushed batch", "table", d.table, "partition_key", partitionKey, "count", len(batch), "elapsed", elapsed)
}

// execute runs one store call with the flush timeout. A panic in the store is
// turned into an error so the drain task survives it.
func (d *drainer) execute(partitionKey string, batch []entity.EncodedEntity) (err error) {
	ctx, cancel := context.WithTimeout(d.ctx, d.flushTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("table store panicked: %v", r)
		}
	}()

	return d.store.ExecuteBatch(ctx, d.table, partitionKey, batch)
}

func (d *drainer) drop(reason, partitionKey string, batch []entity.EncodedEntity, err error) {
	d.stats.droppedBatches.Add(1)
	d.stats.droppedEntities.Add(uint64(len(batch)))
	d.metrics.ObserveDropped(d.table, reason, 1, len(batch))

	d.logger.Error("dropped batch",
		"table", d.table,
		"partition_key", partitionKey,
		"count", len(batch),
		"reason", reason,
		"error", err,
	)
}

// shutdownGrace is how long shutdown waits for an in-flight flush to notice
// cancellation once ctx has expired.
const shutdownGrace = 200 * time.Millisecond

// shutdown waits for the queue to drain. If ctx expires first, in-flight
// flushes are cancelled and everything still queued is dropped.
func (d *drainer) shutdown(ctx context.Context) error {
	d.schedule()

	done := make(chan struct{})
	go func() {
		d.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
	}

	d.cancel()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		// The store ignores cancellation. The abandoned flush counts its own
		// batch as dropped whenever it returns.
		d.logger.Warn("table store did not return after cancellation", "table", d.table, "grace", shutdownGrace)
	}

	remaining := d.queue.takeAll()
	if len(remaining) > 0 {
		groupBatches(remaining, d.maxBatch, func(pk string, batch []entity.EncodedEntity) {
			d.drop(DropReasonShutdown, pk, batch, ctx.Err())
		})
	}

	return fmt.Errorf("drain table %q: %w", d.table, ctx.Err())
}

func (d *drainer) pending() int {
	return d.queue.len()
}
