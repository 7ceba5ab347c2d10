package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/thisisjab/logtable/entity"
)

// LogProcessor decodes one raw line into a record.
type LogProcessor interface {
	Process(raw entity.RawLogRecord) (entity.LogRecord, error)
}

// processorManager fans raw records out to a fixed set of workers. Each
// source lists the processors to try; the first that succeeds wins.
type processorManager struct {
	sources      map[string]LogSource
	processors   map[string]LogProcessor
	logger       *slog.Logger
	workersCount int
	sequence     atomic.Uint64
	wg           sync.WaitGroup
}

func newProcessorManager(logger *slog.Logger, sources map[string]LogSource, processors map[string]LogProcessor, workersCount int) *processorManager {
	return &processorManager{
		sources:      sources,
		processors:   processors,
		logger:       logger,
		workersCount: workersCount,
	}
}

// run consumes rawLogs until it is closed or ctx is done and hands every
// decoded record to w.
func (pm *processorManager) run(ctx context.Context, rawLogs <-chan entity.RawLogRecord, w RecordWriter) {
	worker := func(workerID int) {
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-rawLogs:
				if !ok {
					return
				}

				record := pm.processLog(raw)
				if record.SequenceID == 0 {
					record.SequenceID = pm.sequence.Add(1)
				}

				pm.logger.Debug("processed log", "worker_id", workerID, "source", raw.Source, "sequence", record.SequenceID)
				w.Write(record)
			}
		}
	}

	for i := 0; i < pm.workersCount; i++ {
		pm.wg.Go(func() { worker(i) })
	}

	pm.wg.Wait()
}

func (pm *processorManager) processLog(raw entity.RawLogRecord) entity.LogRecord {
	src, ok := pm.sources[raw.Source]
	if !ok {
		pm.logger.Error("source not found", "source", raw.Source)
		return fallbackRecord(raw)
	}

	for _, name := range src.ProcessorNames() {
		p := pm.processors[name]
		if p == nil {
			pm.logger.Warn("processor not found", "processor", name)
			continue
		}

		record, err := p.Process(raw)
		if err != nil {
			pm.logger.Debug("processor rejected line", "processor", name, "error", err)
			continue
		}

		if record.LoggerName == "" {
			record.LoggerName = raw.Source
		}
		if record.Timestamp.IsZero() {
			record.Timestamp = raw.Timestamp
		}
		return record
	}

	return fallbackRecord(raw)
}

// fallbackRecord keeps lines no processor understood.
func fallbackRecord(raw entity.RawLogRecord) entity.LogRecord {
	msg := strings.TrimRight(string(raw.Data), "\r\n")
	return entity.LogRecord{
		LoggerName:       raw.Source,
		Level:            entity.LogLevelUnknown,
		Message:          msg,
		FormattedMessage: msg,
		Timestamp:        raw.Timestamp,
	}
}
