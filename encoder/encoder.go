// Package encoder turns log records into flat, typed entities a table store accepts.
package encoder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/thisisjab/logtable/entity"
)

// Field names emitted for every record. None of them begins with PropertyPrefix.
const (
	FieldLoggerName  = "LoggerName"
	FieldTimestamp   = "LogTimeStamp"
	FieldLevel       = "Level"
	FieldMessage     = "Message"
	FieldFullMessage = "FullMessage"
	FieldSequenceID  = "SequenceId"
	FieldMachineName = "MachineName"
	FieldException   = "Exception"
	FieldStackTrace  = "StackTrace"
	FieldProperties  = "Properties"

	// PropertyPrefix is prepended to property names in PropertiesAsColumns mode.
	PropertyPrefix = "Prop_"
)

// Store limits. They are exposed through Options but the encoder does not cut
// values at them; an oversized entity is rejected by the store instead.
const (
	MaxStringLength = 32 * 1024
	MaxItemCount    = 255
)

// PropertyMode selects how record properties are laid out.
type PropertyMode uint8

const (
	// PropertiesAsJSON stores all properties as one JSON object field.
	PropertiesAsJSON PropertyMode = iota
	// PropertiesAsColumns stores each property as its own typed column.
	// Values that cannot be narrowed to a store type are dropped.
	PropertiesAsColumns
)

// ParsePropertyMode maps a configuration name to a PropertyMode.
func ParsePropertyMode(s string) (PropertyMode, error) {
	switch s {
	case "", "json":
		return PropertiesAsJSON, nil
	case "columns":
		return PropertiesAsColumns, nil
	default:
		return 0, fmt.Errorf("invalid property mode: %s", s)
	}
}

type Options struct {
	// HostName is stored in FieldMachineName. Defaults to os.Hostname().
	HostName     string
	PropertyMode PropertyMode
	// MaxStringLength and MaxItemCount are reserved limits, see the constants above.
	MaxStringLength int
	MaxItemCount    int
}

type Encoder struct {
	opts Options
}

func New(opts Options) *Encoder {
	if opts.HostName == "" {
		opts.HostName, _ = os.Hostname()
	}
	if opts.MaxStringLength == 0 {
		opts.MaxStringLength = MaxStringLength
	}
	if opts.MaxItemCount == 0 {
		opts.MaxItemCount = MaxItemCount
	}
	return &Encoder{opts: opts}
}

func (e *Encoder) Options() Options {
	return e.opts
}

// Encode builds the entity properties for record. Keys are left empty; they
// are assigned by the caller's key strategies. Encode never fails: values that
// cannot be represented are serialized to text or dropped.
func (e *Encoder) Encode(record entity.LogRecord, renderedText string) entity.EncodedEntity {
	var ent entity.EncodedEntity
	p := &ent.Properties

	p.Set(FieldLoggerName, entity.StringValue(record.LoggerName))
	p.Set(FieldTimestamp, entity.StringValue(record.Timestamp.UTC().Format(time.RFC3339Nano)))
	p.Set(FieldLevel, entity.StringValue(record.Level.String()))
	p.Set(FieldMessage, entity.StringValue(record.Text()))
	p.Set(FieldFullMessage, entity.StringValue(renderedText))
	p.Set(FieldSequenceID, entity.Int64Value(int64(record.SequenceID)))
	p.Set(FieldMachineName, entity.StringValue(e.opts.HostName))

	if record.Exception != nil {
		p.Set(FieldException, entity.JSONValue(marshalOrString(record.Exception)))
	}

	if len(record.StackTrace) > 0 {
		p.Set(FieldStackTrace, entity.JSONValue(marshalOrString(record.StackTrace)))
	}

	if len(record.Properties) > 0 {
		switch e.opts.PropertyMode {
		case PropertiesAsColumns:
			for _, prop := range record.Properties {
				if v, ok := Narrow(prop.Value); ok {
					p.Set(PropertyPrefix+prop.Name, v)
				}
			}
		default:
			p.Set(FieldProperties, entity.JSONValue(PropertiesJSON(record.Properties)))
		}
	}

	return ent
}

// PropertiesJSON serializes properties as one JSON object, preserving their order.
// Later duplicates of a name win, matching how the object would decode.
func PropertiesJSON(props []entity.Property) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	seen := make(map[string]int, len(props))
	order := make([]string, 0, len(props))
	values := make(map[string]string, len(props))
	for _, prop := range props {
		if _, ok := seen[prop.Name]; !ok {
			seen[prop.Name] = len(order)
			order = append(order, prop.Name)
		}
		values[prop.Name] = marshalOrString(prop.Value)
	}
	for i, name := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(values[name])
	}
	buf.WriteByte('}')
	return buf.String()
}

// marshalOrString returns the JSON form of v, or the JSON string of its fmt
// rendering when v cannot be marshaled (channels, funcs, cyclic values).
func marshalOrString(v any) string {
	if err, ok := v.(error); ok {
		v = err.Error()
	}
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprint(v))
	}
	return string(data)
}
