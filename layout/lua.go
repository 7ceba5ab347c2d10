package layout

import (
	"log/slog"

	"github.com/thisisjab/logtable/entity"
	"github.com/thisisjab/logtable/luavm"
	lua "github.com/yuin/gopher-lua"
)

// Lua renders records with a user script defining `render(record)`, which
// receives a table with the fields time, ts_ms, level, logger, message,
// sequence, exception and properties, and returns a string. When the script
// fails the formatted message is used instead.
type Lua struct {
	pool   *luavm.Pool
	logger *slog.Logger
}

func NewLua(logger *slog.Logger, scriptPath string) (*Lua, error) {
	pool, err := luavm.NewPool(scriptPath, "render")
	if err != nil {
		return nil, err
	}
	return &Lua{pool: pool, logger: logger}, nil
}

func (l *Lua) Render(r entity.LogRecord) string {
	var out string

	err := l.pool.Call("render", 1, func(res []lua.LValue) error {
		out = lua.LVAsString(res[0])
		return nil
	}, recordTable(r))
	if err != nil {
		l.logger.Warn("lua layout failed, using message", "logger", r.LoggerName, "error", err)
		return r.Text()
	}

	return out
}

func recordTable(r entity.LogRecord) *lua.LTable {
	t := &lua.LTable{Metatable: lua.LNil}
	if !r.Timestamp.IsZero() {
		t.RawSetString("time", luavm.FromGo(r.Timestamp))
		t.RawSetString("ts_ms", lua.LNumber(r.Timestamp.UnixMilli()))
	}
	t.RawSetString("level", lua.LString(r.Level.String()))
	t.RawSetString("logger", lua.LString(r.LoggerName))
	t.RawSetString("message", lua.LString(r.Text()))
	t.RawSetString("sequence", lua.LNumber(r.SequenceID))
	if r.Exception != nil {
		t.RawSetString("exception", lua.LString(r.Exception.Message))
	}

	props := &lua.LTable{Metatable: lua.LNil}
	for _, p := range r.Properties {
		if props.RawGetString(p.Name) == lua.LNil {
			props.RawSetString(p.Name, luavm.FromGo(p.Value))
		}
	}
	t.RawSetString("properties", props)

	return t
}
