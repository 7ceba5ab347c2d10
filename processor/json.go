package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/thisisjab/logtable/entity"
	"github.com/valyala/fastjson"
)

type JsonLogProcessorConfig struct {
	Name                  string `yaml:"-"`
	LogLevelFieldName     string `yaml:"level_field"`
	LogMessageFieldName   string `yaml:"message_field"`
	LogTimestampFieldName string `yaml:"timestamp_field"`
	LoggerFieldName       string `yaml:"logger_field"`
	ExceptionFieldName    string `yaml:"exception_field"`
	// TimestampFormat is a time layout, or one of unix, unix_ms and unix_ns.
	TimestampFormat string `yaml:"timestamp_format"`
}

func (c *JsonLogProcessorConfig) setDefaults() {
	if c.LogLevelFieldName == "" {
		c.LogLevelFieldName = "level"
	}
	if c.LogMessageFieldName == "" {
		c.LogMessageFieldName = "message"
	}
	if c.LogTimestampFieldName == "" {
		c.LogTimestampFieldName = "timestamp"
	}
	if c.LoggerFieldName == "" {
		c.LoggerFieldName = "logger"
	}
	if c.ExceptionFieldName == "" {
		c.ExceptionFieldName = "exception"
	}
	if c.TimestampFormat == "" {
		c.TimestampFormat = time.RFC3339Nano
	}
}

// JsonLogProcessor parses one JSON object per line. The configured fields map
// onto the record; every other field becomes a property, in document order.
type JsonLogProcessor struct {
	cfg    JsonLogProcessorConfig
	parser fastjson.ParserPool
}

func NewJsonLogProcessor(cfg JsonLogProcessorConfig) (*JsonLogProcessor, error) {
	cfg.setDefaults()
	return &JsonLogProcessor{cfg: cfg}, nil
}

func (p *JsonLogProcessor) Name() string {
	return p.cfg.Name
}

func (p *JsonLogProcessor) Process(raw entity.RawLogRecord) (entity.LogRecord, error) {
	parser := p.parser.Get()
	defer p.parser.Put(parser)

	v, err := parser.ParseBytes(raw.Data)
	if err != nil {
		return entity.LogRecord{}, err
	}
	obj, err := v.Object()
	if err != nil {
		return entity.LogRecord{}, errors.New("log line is not a json object")
	}

	var record entity.LogRecord
	var visitErr error

	obj.Visit(func(key []byte, val *fastjson.Value) {
		if visitErr != nil {
			return
		}

		switch string(key) {
		case p.cfg.LogTimestampFieldName:
			record.Timestamp, visitErr = p.timestamp(val)
		case p.cfg.LogLevelFieldName:
			record.Level = parseLevel(stringOf(val))
		case p.cfg.LogMessageFieldName:
			record.Message = stringOf(val)
		case p.cfg.LoggerFieldName:
			record.LoggerName = stringOf(val)
		case p.cfg.ExceptionFieldName:
			record.Exception = exceptionOf(val)
		default:
			record.Properties = append(record.Properties, entity.Property{Name: string(key), Value: valueOf(val)})
		}
	})
	if visitErr != nil {
		return entity.LogRecord{}, visitErr
	}

	return record, nil
}

func (p *JsonLogProcessor) timestamp(v *fastjson.Value) (time.Time, error) {
	if v.Type() == fastjson.TypeNumber {
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot parse timestamp: %w", err)
		}
		return epochTime(p.cfg.TimestampFormat, n), nil
	}
	return parseTimestamp(p.cfg.TimestampFormat, stringOf(v))
}

func stringOf(v *fastjson.Value) string {
	if v.Type() == fastjson.TypeString {
		return string(v.GetStringBytes())
	}
	return v.String()
}

// valueOf converts a JSON value into the Go value the encoder narrows.
// Objects and arrays stay raw JSON.
func valueOf(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		if n, err := v.Int64(); err == nil {
			return n
		}
		return v.GetFloat64()
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeNull:
		return nil
	default:
		return json.RawMessage(v.MarshalTo(nil))
	}
}

// exceptionOf accepts either a message string or an object with type,
// message and stack_trace fields.
func exceptionOf(v *fastjson.Value) *entity.ExceptionInfo {
	switch v.Type() {
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeObject:
		return &entity.ExceptionInfo{
			Type:       string(v.GetStringBytes("type")),
			Message:    string(v.GetStringBytes("message")),
			StackTrace: string(v.GetStringBytes("stack_trace")),
		}
	default:
		return &entity.ExceptionInfo{Message: stringOf(v)}
	}
}
