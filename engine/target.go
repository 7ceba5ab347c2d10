package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/thisisjab/logtable/encoder"
	"github.com/thisisjab/logtable/entity"
	"github.com/thisisjab/logtable/fault"
	"github.com/thisisjab/logtable/keys"
)

// TableStore is a partitioned, append-only key-value table.
type TableStore interface {
	// CreateIfAbsent makes sure the table exists. It is called once per Target.
	CreateIfAbsent(ctx context.Context, table string) error
	// ExecuteBatch inserts entities that all share partitionKey in one atomic
	// operation. Batches are never empty and never exceed MaxBatchSize.
	ExecuteBatch(ctx context.Context, table, partitionKey string, entities []entity.EncodedEntity) error
}

// Renderer turns a record into the text stored in the FullMessage field.
type Renderer interface {
	Render(record entity.LogRecord) string
}

// Condition decides whether a record is written at all.
type Condition interface {
	Match(record entity.LogRecord) bool
}

type TableNameValidator interface {
	IsValid(name string) bool
}

type TargetConfig struct {
	TableName     string
	PartitionKeys keys.Strategy
	RowKeys       keys.Strategy
	Encoder       *encoder.Encoder
	Renderer      Renderer
	Filter        Condition
	TableNames    TableNameValidator
	// MaxBatchSize caps entities per ExecuteBatch call. Zero means MaxBatchSize.
	MaxBatchSize int
	// FlushTimeout bounds each ExecuteBatch call. Zero means DefaultFlushTimeout.
	FlushTimeout time.Duration
	Metrics      Metrics
}

func (c *TargetConfig) validate() error {
	if c.TableName == "" {
		return fault.Configf("table name is required")
	}
	if c.TableNames == nil {
		return fault.Configf("table name validator is required")
	}
	if !c.TableNames.IsValid(c.TableName) {
		return fault.Configf("invalid table name: %q", c.TableName)
	}
	if c.MaxBatchSize < 0 || c.MaxBatchSize > MaxBatchSize {
		return fault.Configf("max batch size must be between 1 and %d, got %d", MaxBatchSize, c.MaxBatchSize)
	}
	if c.FlushTimeout < 0 {
		return fault.Configf("flush timeout cannot be negative")
	}

	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = MaxBatchSize
	}
	if c.FlushTimeout == 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
	if c.PartitionKeys == nil {
		c.PartitionKeys = keys.LoggerName{}
	}
	if c.RowKeys == nil {
		c.RowKeys = keys.ReverseTimeUnique{}
	}
	if c.Encoder == nil {
		c.Encoder = encoder.New(encoder.Options{})
	}
	if c.Metrics == nil {
		c.Metrics = NoopMetrics{}
	}
	return nil
}

// Target is the write entry point of one table. Write is safe for concurrent
// use and returns as soon as the record is queued.
type Target struct {
	cfg     TargetConfig
	logger  *slog.Logger
	stats   counters
	drainer *drainer

	// closeMu orders Write against Close. Writes hold it shared.
	closeMu sync.RWMutex
	closed  bool
}

// NewTarget validates cfg and makes sure the table exists. Every error it
// returns carries fault.InvalidConfigCode.
func NewTarget(ctx context.Context, cfg TargetConfig, store TableStore, logger *slog.Logger) (*Target, error) {
	if store == nil {
		return nil, fault.Configf("table store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := store.CreateIfAbsent(ctx, cfg.TableName); err != nil {
		return nil, fault.Configf("create table %q", cfg.TableName).WithOriginal(err)
	}

	t := &Target{
		cfg:    cfg,
		logger: logger.With("table", cfg.TableName),
	}
	t.drainer = newDrainer(cfg.TableName, store, logger, cfg.Metrics, &t.stats, cfg.MaxBatchSize, cfg.FlushTimeout)

	t.logger.Info("table target ready", "max_batch_size", cfg.MaxBatchSize, "flush_timeout", cfg.FlushTimeout)
	return t, nil
}

// Write filters, renders, encodes and queues record. It never blocks on the
// store and never fails; problems surface in Stats and the log.
func (t *Target) Write(record entity.LogRecord) {
	t.closeMu.RLock()
	defer t.closeMu.RUnlock()

	if t.closed {
		t.stats.droppedEntities.Add(1)
		t.cfg.Metrics.ObserveDropped(t.cfg.TableName, DropReasonClosed, 0, 1)
		return
	}

	if t.cfg.Filter != nil && !t.cfg.Filter.Match(record) {
		t.stats.filtered.Add(1)
		t.cfg.Metrics.ObserveFiltered(t.cfg.TableName, 1)
		return
	}

	e := t.cfg.Encoder.Encode(record, t.render(record))
	e.PartitionKey = t.cfg.PartitionKeys.Key(record)
	e.RowKey = t.cfg.RowKeys.Key(record)

	t.drainer.submit(e)
}

func (t *Target) render(record entity.LogRecord) (text string) {
	if t.cfg.Renderer == nil {
		return record.Text()
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("layout renderer panicked", "panic", r)
			text = record.Text()
		}
	}()

	return t.cfg.Renderer.Render(record)
}

// Close stops accepting records and waits for queued ones to be written. When
// ctx ends first, whatever is still queued is dropped and ctx's error returned.
func (t *Target) Close(ctx context.Context) error {
	t.closeMu.Lock()
	if t.closed {
		t.closeMu.Unlock()
		return nil
	}
	t.closed = true
	t.closeMu.Unlock()

	err := t.drainer.shutdown(ctx)
	s := t.Stats()
	t.logger.Info("table target closed", "written", s.Written, "dropped_batches", s.DroppedBatches, "dropped_entities", s.DroppedEntities)
	return err
}

func (t *Target) Stats() Stats {
	return Stats{
		Submitted:       t.stats.submitted.Load(),
		Filtered:        t.stats.filtered.Load(),
		Written:         t.stats.written.Load(),
		Batches:         t.stats.batches.Load(),
		DroppedBatches:  t.stats.droppedBatches.Load(),
		DroppedEntities: t.stats.droppedEntities.Load(),
		DrainLoops:      t.stats.drainLoops.Load(),
		Pending:         t.drainer.pending(),
		Draining:        t.drainer.gate.draining(),
	}
}

func (t *Target) TableName() string {
	return t.cfg.TableName
}
