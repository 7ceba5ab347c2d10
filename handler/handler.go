// Package handler lets Go programs log straight into a table through log/slog.
package handler

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"

	"github.com/thisisjab/logtable/engine"
	"github.com/thisisjab/logtable/entity"
)

// DefaultLoggerKey is the attribute that, at the top level, names the logger.
const DefaultLoggerKey = "logger"

type Options struct {
	// Logger is the logger name used when no logger attribute is present.
	Logger string
	// LoggerKey overrides DefaultLoggerKey.
	LoggerKey string
	// Level is the minimum level handled. Defaults to slog.LevelInfo.
	Level     slog.Leveler
	AddSource bool
}

// Handler is a slog.Handler writing every record into an engine.RecordWriter,
// usually a *engine.Target. Grouped attributes become properties named by
// their dotted path. The first error valued attribute also fills the record's
// exception.
type Handler struct {
	w      engine.RecordWriter
	opts   Options
	seq    *atomic.Uint64
	attrs  []entity.Property
	logger string
	prefix string
}

func New(w engine.RecordWriter, opts Options) *Handler {
	if opts.LoggerKey == "" {
		opts.LoggerKey = DefaultLoggerKey
	}
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	return &Handler{w: w, opts: opts, seq: new(atomic.Uint64), logger: opts.Logger}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	rec := entity.LogRecord{
		LoggerName: h.logger,
		Level:      Level(r.Level),
		Message:    r.Message,
		SequenceID: h.seq.Add(1),
		Timestamp:  r.Time,
	}

	props := slices.Clone(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" && a.Key == h.opts.LoggerKey {
			rec.LoggerName = a.Value.Resolve().String()
			return true
		}
		props = appendAttr(props, h.prefix, a)
		return true
	})

	for i, p := range props {
		if err, ok := p.Value.(error); ok {
			if rec.Exception == nil {
				rec.Exception = entity.ExceptionFromError(err)
			}
			props[i].Value = err.Error()
		}
	}
	rec.Properties = props

	if h.opts.AddSource && r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		rec.StackTrace = []entity.StackFrame{{Function: f.Function, File: f.File, Line: f.Line}}
	}

	h.w.Write(rec)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		if h.prefix == "" && a.Key == h.opts.LoggerKey {
			h2.logger = a.Value.Resolve().String()
			continue
		}
		h2.attrs = appendAttr(h2.attrs, h.prefix, a)
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

func appendAttr(props []entity.Property, prefix string, a slog.Attr) []entity.Property {
	v := a.Value.Resolve()
	if a.Key == "" && v.Equal(slog.Value{}) {
		return props
	}

	if v.Kind() == slog.KindGroup {
		group := v.Group()
		if len(group) == 0 {
			return props
		}
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range group {
			props = appendAttr(props, prefix, ga)
		}
		return props
	}

	return append(props, entity.Property{Name: prefix + a.Key, Value: valueOf(v)})
}

func valueOf(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time()
	default:
		return v.Any()
	}
}

// Level maps a slog level onto a record level. Levels below debug are trace;
// levels four or more steps above error are fatal.
func Level(l slog.Level) entity.LogLevel {
	switch {
	case l < slog.LevelDebug:
		return entity.LogLevelTrace
	case l < slog.LevelInfo:
		return entity.LogLevelDebug
	case l < slog.LevelWarn:
		return entity.LogLevelInfo
	case l < slog.LevelError:
		return entity.LogLevelWarn
	case l < slog.LevelError+4:
		return entity.LogLevelError
	default:
		return entity.LogLevelFatal
	}
}

var _ slog.Handler = (*Handler)(nil)
