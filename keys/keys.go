// Package keys derives partition and row keys from log records.
//
// Time based keys use reverse ticks: MaxTicks minus the number of 100ns
// intervals since 0001-01-01 UTC, zero padded to 19 digits. Plain string
// comparison of such keys orders them newest first.
package keys

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thisisjab/logtable/entity"
)

const (
	// MaxTicks is the tick count of 9999-12-31T23:59:59.9999999Z.
	MaxTicks int64 = 3155378975999999999

	// tickWidth is the number of decimal digits of MaxTicks.
	tickWidth = 19

	// unixEpochTicks is the tick count of 1970-01-01T00:00:00Z.
	unixEpochTicks int64 = 621355968000000000

	// PrefixSeparator joins a configured prefix and the logger name.
	PrefixSeparator = "."

	// RowSeparator joins the reverse ticks and the unique suffix of a row key.
	// It appears neither in decimal digits nor in a UUID string.
	RowSeparator = "_"
)

// Strategy derives one key from a record.
type Strategy interface {
	Key(record entity.LogRecord) string
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(record entity.LogRecord) string

func (f StrategyFunc) Key(record entity.LogRecord) string {
	return f(record)
}

// Ticks converts t to 100ns intervals since 0001-01-01 UTC.
func Ticks(t time.Time) int64 {
	return unixEpochTicks + t.Unix()*10_000_000 + int64(t.Nanosecond()/100)
}

// ReverseTicks returns the fixed width reverse tick string of t.
func ReverseTicks(t time.Time) string {
	s := strconv.FormatInt(MaxTicks-Ticks(t), 10)
	if len(s) >= tickWidth {
		return s
	}
	return strings.Repeat("0", tickWidth-len(s)) + s
}

// LoggerName partitions records by logger name.
type LoggerName struct {
	// Prefix, when non-empty, is joined in front of the logger name.
	Prefix string
}

func (s LoggerName) Key(record entity.LogRecord) string {
	if s.Prefix == "" {
		return record.LoggerName
	}
	return s.Prefix + PrefixSeparator + record.LoggerName
}

// ReverseTime keys records by reverse ticks of their timestamp.
type ReverseTime struct {
	// Now is used for records without a timestamp. Defaults to time.Now.
	Now func() time.Time
}

func (s ReverseTime) Key(record entity.LogRecord) string {
	return ReverseTicks(recordTime(record, s.Now))
}

// ReverseTimeUnique appends a random UUID to the reverse ticks so that rows
// written within the same tick stay distinct.
type ReverseTimeUnique struct {
	Now func() time.Time
	// NewID defaults to uuid.New.
	NewID func() uuid.UUID
}

func (s ReverseTimeUnique) Key(record entity.LogRecord) string {
	newID := s.NewID
	if newID == nil {
		newID = uuid.New
	}
	return ReverseTicks(recordTime(record, s.Now)) + RowSeparator + newID().String()
}

func recordTime(record entity.LogRecord, now func() time.Time) time.Time {
	if !record.Timestamp.IsZero() {
		return record.Timestamp
	}
	if now == nil {
		return time.Now()
	}
	return now()
}

// ParsePartitionStrategy selects a partition key strategy by name.
func ParsePartitionStrategy(name, prefix string) (Strategy, error) {
	switch name {
	case "", "logger":
		return LoggerName{Prefix: prefix}, nil
	case "reverse-time":
		return ReverseTime{}, nil
	default:
		return nil, fmt.Errorf("invalid partition key strategy: %s", name)
	}
}

// ParseRowStrategy selects a row key strategy by name.
func ParseRowStrategy(name string) (Strategy, error) {
	switch name {
	case "", "reverse-time-unique":
		return ReverseTimeUnique{}, nil
	default:
		return nil, fmt.Errorf("invalid row key strategy: %s", name)
	}
}
