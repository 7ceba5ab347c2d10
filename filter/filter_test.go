package filter

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/thisisjab/logtable/entity"
	"github.com/thisisjab/logtable/fault"
)

func sample() entity.LogRecord {
	return entity.LogRecord{
		LoggerName: "api.users",
		Level:      entity.LogLevelWarn,
		Message:    "Request Timed Out after 30s",
		SequenceID: 42,
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Exception:  entity.ExceptionFromError(errors.New("context deadline exceeded")),
		Properties: []entity.Property{
			{Name: "status", Value: int64(504)},
			{Name: "ratio", Value: 0.75},
			{Name: "retry", Value: true},
			{Name: "region", Value: "eu-west-1"},
			{Name: "port", Value: 8080},
			{Name: "code", Value: "200"},
			{Name: "user", Value: nil},
			{Name: "tags", Value: json.RawMessage(`{"team":"core"}`)},
		},
	}
}

func TestConditionMatch(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"level=warn", true},
		{"level=WARNING", true},
		{"level>=error", false},
		{"level>info", true},
		{"level<=4", true},
		{"level=debug,warn", true},
		{"level!=debug,warn", false},
		{"logger=api.users", true},
		{"logger=api,worker", false},
		{"logger!=api", true},
		{`message~"timed out"`, true},
		{"message~refused", false},
		{`exception~deadline`, true},
		{"sequence>41", true},
		{"sequence<=-1", false},
		{"sequence=1,2,42", true},
		{"timestamp>=2024-05-01", true},
		{"timestamp<2024-05-01T12:00:00Z", false},
		{"property.status>=500", true},
		{"property.status=504.0", true},
		{"property.ratio<1", true},
		{"property.retry=true", true},
		{"property.retry>false", true},
		{"property.region=eu-west-1", true},
		{"property.region~WEST", true},
		{"property.port=8080", true},
		{"property.code>100", true},
		{"property.code=\"200\"", true},
		{"property.user=null", true},
		{"property.user!=null", false},
		{"property.missing=null", true},
		{"property.missing>1", false},
		{"property.missing!=1", true},
		{"property.missing~x", false},
		{"property.region>5", false},
		{`property.tags~core`, true},
		{"level=warn & property.status>=500 & !logger=health", true},
		{"level=debug | property.retry=true", true},
		{"!(level=warn | level=error)", false},
	}

	rec := sample()
	for _, tt := range tests {
		c, err := Compile(tt.expr)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tt.expr, err)
		}
		if got := c.Match(rec); got != tt.want {
			t.Errorf("%q matched %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	inputs := []string{
		"host=web1",
		"property.=1",
		"level=verbose",
		"level=9",
		"level~warn",
		"sequence=abc",
		"sequence~1",
		"timestamp>yesterday",
		"timestamp=5",
		"level>warn,error",
		"level=",
	}

	for _, input := range inputs {
		if _, err := Compile(input); err == nil {
			t.Fatalf("Compile(%q) should fail", input)
		} else if !fault.Is(err, fault.BadInputCode) {
			t.Fatalf("Compile(%q) error %v is not a bad input fault", input, err)
		}
	}
}

func TestMustCompilePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustCompile("(")
}

func TestCELMatch(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{`level == "WARN"`, true},
		{`level_value >= 5`, false},
		{`logger.startsWith("api.") && sequence > 10`, true},
		{`message.contains("Timed Out")`, true},
		{`exception.contains("deadline")`, true},
		{`properties.status >= 500`, true},
		{`properties.region == "eu-west-1" && properties.retry`, true},
		{`properties.tags.team == "core"`, true},
		{`"missing" in properties`, false},
		{`ts_ms < now_ms`, true},
		// Evaluation errors do not match.
		{`properties.missing == 1`, false},
	}

	rec := sample()
	for _, tt := range tests {
		c, err := CompileCEL(tt.expr)
		if err != nil {
			t.Fatalf("CompileCEL(%q): %v", tt.expr, err)
		}
		if got := c.Match(rec); got != tt.want {
			t.Errorf("%q matched %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestCompileCELErrors(t *testing.T) {
	for _, expr := range []string{"", "level ==", `logger + "x"`, "unknown_var > 1"} {
		if _, err := CompileCEL(expr); err == nil {
			t.Fatalf("CompileCEL(%q) should fail", expr)
		} else if !fault.Is(err, fault.BadInputCode) {
			t.Fatalf("CompileCEL(%q) error %v is not a bad input fault", expr, err)
		}
	}
}
