package processor

import (
	"fmt"
	"time"

	"github.com/thisisjab/logtable/entity"
	"github.com/thisisjab/logtable/luavm"
	lua "github.com/yuin/gopher-lua"
)

type LuaLogProcessorConfig struct {
	Name            string `yaml:"-"`
	ScriptPath      string `yaml:"script-path"`
	TimestampFormat string `yaml:"timestamp_format"`
}

// LuaLogProcessor parses logs with a user script. The script MUST define
// `parse_log(line)` returning, in order:
//  1. level as a string (trace, debug, info, warn, error, fatal)
//  2. message as a string
//  3. timestamp as a string in timestamp_format (RFC3339 by default), or empty
//  4. properties as a table, or nil
//  5. optionally, the logger name
type LuaLogProcessor struct {
	cfg  LuaLogProcessorConfig
	pool *luavm.Pool
}

func NewLuaLogProcessor(cfg LuaLogProcessorConfig) (*LuaLogProcessor, error) {
	if cfg.TimestampFormat == "" {
		cfg.TimestampFormat = time.RFC3339
	}

	pool, err := luavm.NewPool(cfg.ScriptPath, "parse_log")
	if err != nil {
		return nil, err
	}

	return &LuaLogProcessor{cfg: cfg, pool: pool}, nil
}

func (lp *LuaLogProcessor) Name() string {
	return lp.cfg.Name
}

func (lp *LuaLogProcessor) Process(raw entity.RawLogRecord) (entity.LogRecord, error) {
	var record entity.LogRecord

	err := lp.pool.Call("parse_log", 5, func(res []lua.LValue) error {
		record.Level = parseLevel(lua.LVAsString(res[0]))
		record.Message = lua.LVAsString(res[1])

		if ts := lua.LVAsString(res[2]); ts != "" {
			t, err := parseTimestamp(lp.cfg.TimestampFormat, ts)
			if err != nil {
				return err
			}
			record.Timestamp = t
		}

		if props, ok := res[3].(*lua.LTable); ok {
			for _, f := range luavm.SortedFields(props) {
				record.Properties = append(record.Properties, entity.Property{Name: f.Name, Value: luavm.ToGo(f.Value)})
			}
		}

		record.LoggerName = lua.LVAsString(res[4])
		return nil
	}, lua.LString(string(raw.Data)))
	if err != nil {
		return entity.LogRecord{}, fmt.Errorf("parse_log: %w", err)
	}

	return record, nil
}
