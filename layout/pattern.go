// Package layout renders log records into the text stored next to them.
package layout

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/thisisjab/logtable/entity"
	"github.com/thisisjab/logtable/fault"
)

// DefaultPattern renders the formatted message alone.
const DefaultPattern = "${message}"

type segment func(sb *strings.Builder, r entity.LogRecord)

// Pattern renders records through a template of literal text and tokens:
//
//	${time}  ${time:<go layout>}  ${level}  ${logger}  ${message}
//	${sequence}  ${exception}  ${property:<name>}  ${newline}
//
// "$$" writes a literal dollar sign.
type Pattern struct {
	source   string
	segments []segment
}

func ParsePattern(pattern string) (*Pattern, error) {
	p := &Pattern{source: pattern}

	rest := pattern
	var lit strings.Builder
	flush := func() {
		if lit.Len() == 0 {
			return
		}
		s := lit.String()
		lit.Reset()
		p.segments = append(p.segments, func(sb *strings.Builder, _ entity.LogRecord) { sb.WriteString(s) })
	}

	for rest != "" {
		i := strings.IndexByte(rest, '$')
		if i < 0 {
			lit.WriteString(rest)
			break
		}
		lit.WriteString(rest[:i])
		rest = rest[i:]

		switch {
		case strings.HasPrefix(rest, "$$"):
			lit.WriteByte('$')
			rest = rest[2:]
		case strings.HasPrefix(rest, "${"):
			end := strings.IndexByte(rest, '}')
			if end < 0 {
				return nil, patternError(pattern, "unterminated token %q", rest)
			}
			seg, err := tokenSegment(rest[2:end])
			if err != nil {
				return nil, patternError(pattern, "%v", err)
			}
			flush()
			p.segments = append(p.segments, seg)
			rest = rest[end+1:]
		default:
			lit.WriteByte('$')
			rest = rest[1:]
		}
	}
	flush()

	return p, nil
}

// MustParsePattern is like ParsePattern but panics on error.
func MustParsePattern(pattern string) *Pattern {
	p, err := ParsePattern(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func patternError(pattern, format string, args ...any) error {
	return fault.Configf("layout %q: %s", pattern, fmt.Sprintf(format, args...))
}

func tokenSegment(tok string) (segment, error) {
	name, arg, hasArg := strings.Cut(tok, ":")

	switch name {
	case "time":
		layout := time.RFC3339Nano
		if hasArg && arg != "" {
			layout = arg
		}
		return func(sb *strings.Builder, r entity.LogRecord) {
			sb.WriteString(r.Timestamp.Format(layout))
		}, nil
	case "level":
		return func(sb *strings.Builder, r entity.LogRecord) { sb.WriteString(r.Level.String()) }, nil
	case "logger":
		return func(sb *strings.Builder, r entity.LogRecord) { sb.WriteString(r.LoggerName) }, nil
	case "message":
		return func(sb *strings.Builder, r entity.LogRecord) { sb.WriteString(r.Text()) }, nil
	case "sequence":
		return func(sb *strings.Builder, r entity.LogRecord) {
			sb.WriteString(strconv.FormatUint(r.SequenceID, 10))
		}, nil
	case "exception":
		return func(sb *strings.Builder, r entity.LogRecord) {
			for e := r.Exception; e != nil; e = e.Cause {
				if e != r.Exception {
					sb.WriteString(": ")
				}
				sb.WriteString(e.Message)
				if e.Cause != nil && strings.HasSuffix(e.Message, e.Cause.Message) {
					break
				}
			}
		}, nil
	case "property":
		if arg == "" {
			return nil, fmt.Errorf("token %q needs a property name", tok)
		}
		return func(sb *strings.Builder, r entity.LogRecord) {
			switch v, _ := r.Property(arg); v := v.(type) {
			case nil:
			case json.RawMessage:
				sb.Write(v)
			default:
				fmt.Fprint(sb, v)
			}
		}, nil
	case "newline":
		return func(sb *strings.Builder, _ entity.LogRecord) { sb.WriteByte('\n') }, nil
	default:
		return nil, fmt.Errorf("unknown token %q", tok)
	}
}

func (p *Pattern) Render(r entity.LogRecord) string {
	var sb strings.Builder
	for _, seg := range p.segments {
		seg(&sb, r)
	}
	return sb.String()
}

func (p *Pattern) String() string {
	return p.source
}
