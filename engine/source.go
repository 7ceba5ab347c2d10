package engine

import (
	"context"

	"github.com/thisisjab/logtable/entity"
)

// LogSource produces raw lines for the pipeline.
type LogSource interface {
	Name() string
	// Provide sends raw records into logChan until ctx is done or the source is
	// exhausted. It must not close logChan.
	Provide(ctx context.Context, logChan chan<- entity.RawLogRecord) error
	ProcessorNames() []string
}

// RecordWriter accepts decoded records. *Target implements it.
type RecordWriter interface {
	Write(record entity.LogRecord)
}
