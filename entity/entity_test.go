package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestLogLevelString(t *testing.T) {
	tests := map[LogLevel]string{
		LogLevelUnknown: "UNKNOWN",
		LogLevelDebug:   "DEBUG",
		LogLevelFatal:   "FATAL",
		LogLevel(200):   "UNKNOWN",
	}

	for level, want := range tests {
		if got := level.String(); got != want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"warning": LogLevelWarn,
		" INFO ":  LogLevelInfo,
		"err":     LogLevelError,
		"trace":   LogLevelTrace,
	}

	for input, want := range tests {
		got, ok := ParseLogLevel(input)
		if !ok || got != want {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v", input, got, ok, want)
		}
	}

	if _, ok := ParseLogLevel("loud"); ok {
		t.Fatalf("ParseLogLevel(loud) should not be ok")
	}
}

func TestPropertiesKeepInsertionOrder(t *testing.T) {
	var p Properties
	p.Set("b", Int32Value(1))
	p.Set("a", StringValue("x"))
	p.Set("b", Int32Value(2))

	names := p.Names()
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Fatalf("Names() = %v, want [b a]", names)
	}

	v, _ := p.Get("b")
	if v.Int() != 2 {
		t.Fatalf("b = %d, want 2", v.Int())
	}
}

func TestPropertiesJSONRoundTrip(t *testing.T) {
	id := uuid.New()

	var p Properties
	p.Set("s", StringValue("text"))
	p.Set("i32", Int32Value(-5))
	p.Set("i64", Int64Value(1<<40))
	p.Set("f", Float64Value(1.5))
	p.Set("b", BoolValue(true))
	p.Set("g", GUIDValue(id))
	p.Set("bin", BinaryValue([]byte{0, 1, 2}))
	p.Set("doc", JSONValue(`{"k":1}`))

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Properties
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if fmt.Sprint(got.Names()) != fmt.Sprint(p.Names()) {
		t.Fatalf("names = %v, want %v", got.Names(), p.Names())
	}

	p.Range(func(name string, want TypedValue) bool {
		v, _ := got.Get(name)
		if v.Kind() != want.Kind() || v.String() != want.String() {
			t.Errorf("%s = %v (%s), want %v (%s)", name, v, v.Kind(), want, want.Kind())
		}
		return true
	})
}

type wrapped struct{ inner error }

func (w wrapped) Error() string { return "wrapped: " + w.inner.Error() }
func (w wrapped) Unwrap() error { return w.inner }

func TestExceptionFromError(t *testing.T) {
	root := errors.New("disk full")
	err := fmt.Errorf("flush: %w", wrapped{inner: root})

	info := ExceptionFromError(err)
	if info == nil || info.Cause == nil || info.Cause.Cause == nil {
		t.Fatalf("expected a three level chain, got %+v", info)
	}
	if info.Cause.Type != "entity.wrapped" {
		t.Errorf("cause type = %q", info.Cause.Type)
	}
	if info.Cause.Cause.Message != "disk full" {
		t.Errorf("root message = %q", info.Cause.Cause.Message)
	}
	if ExceptionFromError(nil) != nil {
		t.Errorf("nil error should yield nil info")
	}
}
