package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/thisisjab/logtable/entity"
)

type Config struct {
	Sources               map[string]LogSource
	Processors            map[string]LogProcessor
	Writer                RecordWriter
	RawLogsBufferSize     uint
	ProcessorWorkersCount uint
}

// Engine wires log sources through processors into a RecordWriter.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Engine{cfg: cfg, logger: logger}, nil
}

func (c Config) validate() error {
	if len(c.Sources) == 0 {
		return errors.New("no log sources are configured")
	}

	for name, src := range c.Sources {
		for _, p := range src.ProcessorNames() {
			if _, ok := c.Processors[p]; !ok {
				return fmt.Errorf("source %q uses unknown processor %q", name, p)
			}
		}
	}

	if c.Writer == nil {
		return errors.New("no record writer is configured")
	}

	if c.ProcessorWorkersCount == 0 {
		return errors.New("processor workers cannot be zero")
	}

	return nil
}

// Run blocks until every source is exhausted or ctx is done. It does not
// close the writer.
func (e *Engine) Run(ctx context.Context) error {
	rawLogs := e.consumeLogs(ctx)

	pm := newProcessorManager(e.logger, e.cfg.Sources, e.cfg.Processors, int(e.cfg.ProcessorWorkersCount))
	pm.run(ctx, rawLogs, e.cfg.Writer)

	return ctx.Err()
}

func (e *Engine) consumeLogs(ctx context.Context) <-chan entity.RawLogRecord {
	rawLogs := make(chan entity.RawLogRecord, e.cfg.RawLogsBufferSize)
	e.logger.Info("created incoming logs channel", "size", e.cfg.RawLogsBufferSize)

	var sourceWg sync.WaitGroup

	for n, s := range e.cfg.Sources {
		sourceWg.Go(func() {
			if err := s.Provide(ctx, rawLogs); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("log source stopped", "name", n, "error", err)
			}
		})
	}

	go func() {
		sourceWg.Wait()
		close(rawLogs)
	}()

	return rawLogs
}
