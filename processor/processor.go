// Package processor decodes raw log lines into structured records.
package processor

import "github.com/thisisjab/logtable/entity"

// LogProcessor is an interface that defines the contract for log processors.
type LogProcessor interface {
	Process(raw entity.RawLogRecord) (entity.LogRecord, error)
}
