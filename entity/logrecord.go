package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type LogLevel uint8

const (
	LogLevelUnknown LogLevel = iota
	LogLevelTrace
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

func (l LogLevel) String() string {
	names := [...]string{"UNKNOWN", "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if int(l) >= len(names) {
		return names[0]
	}
	return names[l]
}

// ParseLogLevel maps a level name (any case, common aliases allowed) to a LogLevel.
// Unknown names yield LogLevelUnknown and false.
func ParseLogLevel(s string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE", "TRC":
		return LogLevelTrace, true
	case "DEBUG", "DBG":
		return LogLevelDebug, true
	case "INFO", "INFORMATION", "INF":
		return LogLevelInfo, true
	case "WARN", "WARNING", "WRN":
		return LogLevelWarn, true
	case "ERROR", "ERR":
		return LogLevelError, true
	case "FATAL", "CRITICAL", "FTL":
		return LogLevelFatal, true
	default:
		return LogLevelUnknown, false
	}
}

// RawLogRecord represents a log record that is not processed and received from a log source.
type RawLogRecord struct {
	Source    string    `json:"source"`
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Property is a single named value attached to a log record.
type Property struct {
	Name  string
	Value any
}

// StackFrame is one captured call site.
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// ExceptionInfo describes an error and the chain of errors that caused it.
type ExceptionInfo struct {
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	StackTrace string         `json:"stack_trace,omitempty"`
	Cause      *ExceptionInfo `json:"cause,omitempty"`
}

// ExceptionFromError walks the Unwrap chain of err. Joined errors contribute
// their first branch only.
func ExceptionFromError(err error) *ExceptionInfo {
	if err == nil {
		return nil
	}

	root := &ExceptionInfo{Type: fmt.Sprintf("%T", err), Message: err.Error()}
	cur := root
	for depth := 0; depth < 32; depth++ {
		var next error
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			if errs := u.Unwrap(); len(errs) > 0 {
				next = errs[0]
			}
		default:
			next = errors.Unwrap(err)
		}
		if next == nil {
			break
		}
		cur.Cause = &ExceptionInfo{Type: fmt.Sprintf("%T", next), Message: next.Error()}
		cur = cur.Cause
		err = next
	}

	return root
}

// LogRecord is a structured log event as produced by a logging framework.
// Records are treated as read-only once created.
type LogRecord struct {
	LoggerName       string
	Level            LogLevel
	Message          string
	FormattedMessage string
	SequenceID       uint64
	Properties       []Property
	Exception        *ExceptionInfo
	StackTrace       []StackFrame
	Timestamp        time.Time
}

// Text returns the formatted message, falling back to the raw one.
func (r LogRecord) Text() string {
	if r.FormattedMessage != "" {
		return r.FormattedMessage
	}
	return r.Message
}

// Property returns the first property with the given name.
func (r LogRecord) Property(name string) (any, bool) {
	for _, p := range r.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}
