package filter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/thisisjab/logtable/entity"
	"github.com/thisisjab/logtable/fault"
)

// CEL is a filter written in the Common Expression Language, for conditions
// the native language cannot express. Records expose these variables:
//
//	level (string), level_value (int), logger, message, exception (string),
//	sequence, ts_ms, now_ms (int), properties (map of dyn)
//
// A record whose evaluation fails does not match.
type CEL struct {
	expr string
	prog cel.Program
}

func CompileCEL(expr string) (*CEL, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fault.New(fault.BadInputCode, "filter: empty CEL expression")
	}

	env, err := cel.NewEnv(
		cel.Variable("level", cel.StringType),
		cel.Variable("level_value", cel.IntType),
		cel.Variable("logger", cel.StringType),
		cel.Variable("message", cel.StringType),
		cel.Variable("exception", cel.StringType),
		cel.Variable("sequence", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
		cel.Variable("properties", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, err
	}

	parsed, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, celError(iss.Err())
	}
	checked, iss := env.Check(parsed)
	if iss != nil && iss.Err() != nil {
		return nil, celError(iss.Err())
	}
	if !checked.OutputType().IsExactType(cel.BoolType) {
		return nil, fault.New(fault.BadInputCode, fmt.Sprintf("filter: CEL expression must be boolean, got %s", checked.OutputType()))
	}

	prog, err := env.Program(checked)
	if err != nil {
		return nil, celError(err)
	}

	return &CEL{expr: expr, prog: prog}, nil
}

func celError(err error) error {
	return fault.New(fault.BadInputCode, "filter: invalid CEL expression").WithOriginal(err)
}

func (c *CEL) Match(r entity.LogRecord) bool {
	var exception string
	if r.Exception != nil {
		exception = r.Exception.Message
	}

	props := make(map[string]any, len(r.Properties))
	for _, p := range r.Properties {
		if _, seen := props[p.Name]; !seen {
			props[p.Name] = celValue(p.Value)
		}
	}

	var ts int64
	if !r.Timestamp.IsZero() {
		ts = r.Timestamp.UnixMilli()
	}

	out, _, err := c.prog.Eval(map[string]any{
		"level":       r.Level.String(),
		"level_value": int64(r.Level),
		"logger":      r.LoggerName,
		"message":     r.Text(),
		"exception":   exception,
		"sequence":    int64(r.SequenceID),
		"ts_ms":       ts,
		"now_ms":      time.Now().UnixMilli(),
		"properties":  props,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

func (c *CEL) String() string {
	return c.expr
}

// celValue converts a property into something the CEL type adapter accepts.
// JSON documents are decoded so their fields can be selected.
func celValue(v any) any {
	switch v := v.(type) {
	case json.RawMessage:
		var doc any
		if err := json.Unmarshal(v, &doc); err != nil {
			return string(v)
		}
		return doc
	case time.Time, time.Duration:
		return v
	default:
		return normalize(v)
	}
}
