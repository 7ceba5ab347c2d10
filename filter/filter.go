// Package filter decides which log records reach a table.
//
// Conditions are written in a small language:
//
//	level>=warn & !(logger=health,metrics) | property.status>=500
//
// Fields are level, logger, message, exception, sequence, timestamp and
// property.<name>. Operators are = != < <= > >= and ~ (case-insensitive
// substring). A comma separated list after = or != tests membership.
package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/thisisjab/logtable/entity"
	"github.com/thisisjab/logtable/fault"
	"github.com/thisisjab/logtable/filter/ast"
	"github.com/thisisjab/logtable/filter/parser"
)

const propertyPrefix = "property."

type predicate func(entity.LogRecord) bool

// Condition is a compiled filter expression. It is safe for concurrent use.
type Condition struct {
	expr  string
	match predicate
}

// Compile parses expr and resolves its fields.
func Compile(expr string) (*Condition, error) {
	n, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}

	match, err := compileNode(n)
	if err != nil {
		return nil, err
	}

	return &Condition{expr: expr, match: match}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Condition {
	c, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Condition) Match(r entity.LogRecord) bool {
	return c.match(r)
}

func (c *Condition) String() string {
	return c.expr
}

func compileNode(n ast.Node) (predicate, error) {
	switch n := n.(type) {
	case ast.AndNode:
		children, err := compileChildren(n.Children)
		if err != nil {
			return nil, err
		}
		return func(r entity.LogRecord) bool {
			for _, c := range children {
				if !c(r) {
					return false
				}
			}
			return true
		}, nil

	case ast.OrNode:
		children, err := compileChildren(n.Children)
		if err != nil {
			return nil, err
		}
		return func(r entity.LogRecord) bool {
			for _, c := range children {
				if c(r) {
					return true
				}
			}
			return false
		}, nil

	case ast.NotNode:
		child, err := compileNode(n.Child)
		if err != nil {
			return nil, err
		}
		return func(r entity.LogRecord) bool { return !child(r) }, nil

	case ast.ComparisonNode:
		return compileComparison(n)

	default:
		return nil, fmt.Errorf("unsupported node %T", n)
	}
}

func compileChildren(nodes []ast.Node) ([]predicate, error) {
	out := make([]predicate, len(nodes))
	for i, c := range nodes {
		p, err := compileNode(c)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func fieldError(field, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fault.New(fault.BadInputCode, fmt.Sprintf("filter: %s: %s", field, msg)).
		WithMetadata(fault.FieldErrorsMetadata{field: []string{msg}})
}

func compileComparison(n ast.ComparisonNode) (predicate, error) {
	switch {
	case n.FieldName == "level":
		return compileLevel(n)
	case n.FieldName == "logger":
		return compileString(n, func(r entity.LogRecord) string { return r.LoggerName })
	case n.FieldName == "message":
		return compileString(n, entity.LogRecord.Text)
	case n.FieldName == "exception":
		return compileString(n, func(r entity.LogRecord) string {
			if r.Exception == nil {
				return ""
			}
			return r.Exception.Message
		})
	case n.FieldName == "sequence":
		return compileSequence(n)
	case n.FieldName == "timestamp":
		return compileTimestamp(n)
	case strings.HasPrefix(n.FieldName, propertyPrefix) && len(n.FieldName) > len(propertyPrefix):
		return compileProperty(n, strings.TrimPrefix(n.FieldName, propertyPrefix))
	default:
		return nil, fieldError(n.FieldName, "unknown field")
	}
}

// ordered turns a three-way comparison result into the outcome of op.
func ordered(op ast.ComparisonOperator, c int) bool {
	switch op {
	case ast.OperatorEq, ast.OperatorIn:
		return c == 0
	case ast.OperatorNe, ast.OperatorNotIn:
		return c != 0
	case ast.OperatorGt:
		return c > 0
	case ast.OperatorLt:
		return c < 0
	case ast.OperatorGte:
		return c >= 0
	case ast.OperatorLte:
		return c <= 0
	default:
		return false
	}
}

// membership builds the predicate for a node from a per-value comparison.
// In holds when any value matches, NotIn when none does.
func membership[T any](op ast.ComparisonOperator, values []T, get func(entity.LogRecord) T, compare func(a, b T) int) predicate {
	switch op {
	case ast.OperatorIn:
		return func(r entity.LogRecord) bool {
			v := get(r)
			for _, want := range values {
				if compare(v, want) == 0 {
					return true
				}
			}
			return false
		}
	case ast.OperatorNotIn:
		return func(r entity.LogRecord) bool {
			v := get(r)
			for _, want := range values {
				if compare(v, want) == 0 {
					return false
				}
			}
			return true
		}
	default:
		want := values[0]
		return func(r entity.LogRecord) bool {
			return ordered(op, compare(get(r), want))
		}
	}
}

func compileLevel(n ast.ComparisonNode) (predicate, error) {
	if n.Operator == ast.OperatorLike {
		return nil, fieldError(n.FieldName, "'~' is not supported for levels")
	}

	levels := make([]entity.LogLevel, len(n.Values))
	for i, v := range n.Values {
		switch v := v.(type) {
		case string:
			lvl, ok := entity.ParseLogLevel(v)
			if !ok && !strings.EqualFold(v, entity.LogLevelUnknown.String()) {
				return nil, fieldError(n.FieldName, "unknown level %q", v)
			}
			levels[i] = lvl
		case int64:
			if v < int64(entity.LogLevelUnknown) || v > int64(entity.LogLevelFatal) {
				return nil, fieldError(n.FieldName, "level %d out of range", v)
			}
			levels[i] = entity.LogLevel(v)
		default:
			return nil, fieldError(n.FieldName, "invalid level %v", v)
		}
	}

	get := func(r entity.LogRecord) entity.LogLevel { return r.Level }
	return membership(n.Operator, levels, get, func(a, b entity.LogLevel) int { return int(a) - int(b) }), nil
}

func compileString(n ast.ComparisonNode, get func(entity.LogRecord) string) (predicate, error) {
	values := make([]string, len(n.Values))
	for i, v := range n.Values {
		if v == nil {
			continue
		}
		values[i] = fmt.Sprint(v)
	}

	if n.Operator == ast.OperatorLike {
		needle := strings.ToLower(values[0])
		return func(r entity.LogRecord) bool {
			return strings.Contains(strings.ToLower(get(r)), needle)
		}, nil
	}

	return membership(n.Operator, values, get, strings.Compare), nil
}

func compileSequence(n ast.ComparisonNode) (predicate, error) {
	if n.Operator == ast.OperatorLike {
		return nil, fieldError(n.FieldName, "'~' is not supported for sequence")
	}

	values := make([]int64, len(n.Values))
	for i, v := range n.Values {
		iv, ok := v.(int64)
		if !ok {
			return nil, fieldError(n.FieldName, "expected an integer, got %v", v)
		}
		values[i] = iv
	}

	get := func(r entity.LogRecord) int64 {
		// Sequences past MaxInt64 compare above every literal.
		if r.SequenceID > 1<<63-1 {
			return 1<<63 - 1
		}
		return int64(r.SequenceID)
	}
	return membership(n.Operator, values, get, compareOrdered[int64]), nil
}

func compileTimestamp(n ast.ComparisonNode) (predicate, error) {
	if n.Operator == ast.OperatorLike {
		return nil, fieldError(n.FieldName, "'~' is not supported for timestamp")
	}

	values := make([]time.Time, len(n.Values))
	for i, v := range n.Values {
		s, ok := v.(string)
		if !ok {
			return nil, fieldError(n.FieldName, "expected a date, got %v", v)
		}
		t, err := parseDatetime(s)
		if err != nil {
			return nil, fieldError(n.FieldName, "%v", err)
		}
		values[i] = t
	}

	get := func(r entity.LogRecord) time.Time { return r.Timestamp }
	return membership(n.Operator, values, get, time.Time.Compare), nil
}

func parseDatetime(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,      // 2000-10-10T12:20:23.5Z or with offsets
		"2006-01-02T15:04:05", // 2000-10-10T12:20:23
		"2006-01-02T15:04",    // 2000-10-10T12:20
		"2006-01-02",          // 2000-10-10
	}

	var t time.Time
	var err error

	for _, layout := range layouts {
		t, err = time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("failed to parse datetime '%s': %w", v, err)
}

func compileProperty(n ast.ComparisonNode, name string) (predicate, error) {
	get := func(r entity.LogRecord) any {
		v, _ := r.Property(name)
		return normalize(v)
	}

	if n.Operator == ast.OperatorLike {
		needle := strings.ToLower(fmt.Sprint(n.Values[0]))
		return func(r entity.LogRecord) bool {
			v := get(r)
			return v != nil && strings.Contains(strings.ToLower(fmt.Sprint(v)), needle)
		}, nil
	}

	op := n.Operator
	values := n.Values
	return func(r entity.LogRecord) bool {
		v := get(r)
		switch op {
		case ast.OperatorIn:
			for _, want := range values {
				if c, ok := compareValues(v, want); ok && c == 0 {
					return true
				}
			}
			return false
		case ast.OperatorNotIn:
			for _, want := range values {
				if c, ok := compareValues(v, want); ok && c == 0 {
					return false
				}
			}
			return true
		default:
			c, ok := compareValues(v, values[0])
			if !ok {
				return op == ast.OperatorNe
			}
			return ordered(op, c)
		}
	}, nil
}

// normalize folds property values into the literal types of the language:
// string, int64, float64, bool or nil.
func normalize(v any) any {
	switch v := v.(type) {
	case nil, string, int64, float64, bool:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return float64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		if v <= 1<<63-1 {
			return int64(v)
		}
		return float64(v)
	case float32:
		return float64(v)
	case json.RawMessage:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

// compareValues orders a property value against a literal. The second
// result is false when the two cannot be compared; null only equals null.
func compareValues(v, lit any) (int, bool) {
	if v == nil || lit == nil {
		if v == nil && lit == nil {
			return 0, true
		}
		return 0, false
	}

	switch lit := lit.(type) {
	case int64:
		switch v := v.(type) {
		case int64:
			return compareOrdered(v, lit), true
		case float64:
			return compareOrdered(v, float64(lit)), true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return compareOrdered(f, float64(lit)), true
			}
		}
	case float64:
		switch v := v.(type) {
		case int64:
			return compareOrdered(float64(v), lit), true
		case float64:
			return compareOrdered(v, lit), true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return compareOrdered(f, lit), true
			}
		}
	case bool:
		if b, ok := v.(bool); ok {
			return compareBool(b, lit), true
		}
	case string:
		return strings.Compare(fmt.Sprint(v), lit), true
	}

	return 0, false
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
