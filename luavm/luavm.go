// Package luavm runs user scripts in pooled, sandboxed Lua states.
package luavm

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	luajson "layeh.com/gopher-json"
)

// Pool hands out Lua states that have already loaded one script. Only the
// package, base, table and string libraries are opened, so scripts cannot
// reach the OS or the filesystem. `local json = require("json")` is available.
type Pool struct {
	script string
	pool   sync.Pool
}

// NewPool loads scriptPath once to surface syntax errors early and fails if
// any of the required global functions is missing.
func NewPool(scriptPath string, required ...string) (*Pool, error) {
	p := &Pool{script: scriptPath}

	L, err := p.newState()
	if err != nil {
		return nil, err
	}
	for _, fn := range required {
		if L.GetGlobal(fn).Type() != lua.LTFunction {
			L.Close()
			return nil, fmt.Errorf("lua script %s does not define function %q", scriptPath, fn)
		}
	}
	p.pool.Put(L)

	return p, nil
}

func (p *Pool) newState() (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	luajson.Preload(L)

	if err := L.DoFile(p.script); err != nil {
		L.Close()
		return nil, fmt.Errorf("cannot load lua script %s: %w", p.script, err)
	}
	return L, nil
}

// Call runs the global function fn with args and hands its nret results to
// read before the state goes back to the pool.
func (p *Pool) Call(fn string, nret int, read func(results []lua.LValue) error, args ...lua.LValue) error {
	L, ok := p.pool.Get().(*lua.LState)
	if !ok {
		var err error
		if L, err = p.newState(); err != nil {
			return err
		}
	}
	defer p.pool.Put(L)

	err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal(fn),
		NRet:    nret,
		Protect: true,
	}, args...)
	if err != nil {
		return fmt.Errorf("lua script error: %w", err)
	}

	results := make([]lua.LValue, nret)
	for i := range results {
		results[i] = L.Get(i - nret)
	}
	L.Pop(nret)

	return read(results)
}

// ToGo converts a Lua value to plain Go values. Tables become maps.
func ToGo(value lua.LValue) any {
	switch v := value.(type) {
	case *lua.LTable:
		return TableToMap(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case lua.LBool:
		return bool(v)
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}

// FromGo converts plain Go values to Lua. Unknown types become their string
// form; JSON documents stay encoded.
func FromGo(value any) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(v)
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int32:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case uint32:
		return lua.LNumber(v)
	case uint64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case json.RawMessage:
		return lua.LString(v)
	case time.Time:
		return lua.LString(v.Format(time.RFC3339Nano))
	case map[string]any:
		t := &lua.LTable{Metatable: lua.LNil}
		for k, item := range v {
			t.RawSetString(k, FromGo(item))
		}
		return t
	case []any:
		t := &lua.LTable{Metatable: lua.LNil}
		for _, item := range v {
			t.Append(FromGo(item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

func TableToMap(table *lua.LTable) map[string]any {
	res := make(map[string]any)
	table.ForEach(func(key, value lua.LValue) {
		res[key.String()] = ToGo(value)
	})
	return res
}

// Field is one key/value pair of a Lua table.
type Field struct {
	Name  string
	Value lua.LValue
}

// SortedFields returns the entries of table ordered by key. Lua tables have
// no stable iteration order.
func SortedFields(table *lua.LTable) []Field {
	var fields []Field
	table.ForEach(func(key, value lua.LValue) {
		fields = append(fields, Field{Name: key.String(), Value: value})
	})
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}
