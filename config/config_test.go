package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/thisisjab/logtable/entity"
	"github.com/thisisjab/logtable/fault"
	"github.com/thisisjab/logtable/storage"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const sampleConfig = `
logger:
  level: debug
  type: json
  output: stderr
target:
  table_name: AppLogs
  connection_string: logs
  partition_key_prefix: prod
  layout:
    pattern: "${level} ${message}"
  filter:
    expression: level>=info
  max_batch_size: 50
  flush_timeout: 5s
  shutdown_timeout: 2s
connection_strings:
  logs: memory://
processors:
  - name: json
    type: json
    config:
      level_field: lvl
sources:
  - name: app
    type: file
    processors: [json]
    config:
      path: /var/log/app.log
processor_workers_count: 2
api:
  addr: localhost:8000
`

func TestLoadAndParse(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Target.FlushTimeout != 5*time.Second || cfg.Target.MaxBatchSize != 50 || cfg.API == nil {
		t.Fatalf("unexpected config %+v", cfg)
	}

	c, logger, err := cfg.Parse(context.Background())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if logger == nil || c.Logger != logger {
		t.Fatalf("logger not returned")
	}
	if c.Engine == nil || len(c.Engine.Sources) != 1 || len(c.Engine.Processors) != 1 || c.Engine.ProcessorWorkersCount != 2 {
		t.Fatalf("unexpected engine config %+v", c.Engine)
	}
	if c.Target.TableName() != "AppLogs" || c.shutdownTimeout != 2*time.Second {
		t.Fatalf("unexpected target")
	}

	c.Target.Write(entity.LogRecord{LoggerName: "api", Level: entity.LogLevelDebug, Message: "filtered"})
	c.Target.Write(entity.LogRecord{LoggerName: "api", Level: entity.LogLevelWarn, Message: "kept", Timestamp: time.Now()})

	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s := c.Target.Stats()
	if s.Filtered != 1 || s.Written != 1 {
		t.Fatalf("stats = %+v", s)
	}

	rows := c.Store.(*storage.MemoryStore).Entities("AppLogs")
	if len(rows) != 1 || rows[0].PartitionKey != "prod.api" {
		t.Fatalf("rows = %+v", rows)
	}
	if msg, _ := rows[0].Properties.Get("FullMessage"); msg.Str() != "WARN kept" {
		t.Fatalf("rendered message = %q", msg.Str())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	if _, err := Load(writeFile(t, "bad.yaml", "target:\n  tablename: x\n")); err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if cfg, err := Load(""); err != nil || cfg.Target.TableName != "" {
		t.Fatalf("Load(\"\") = %+v, %v", cfg, err)
	}
}

func TestResolveConnectionString(t *testing.T) {
	t.Setenv("LOGS_FROM_ENV", "bolt:///tmp/env.db")

	cfg := Config{
		ConnectionStrings: map[string]string{"primary": "pebble:///data/logs", "broken": "nope://x"},
		Settings:          map[string]string{"secondary": "postgres://app:secret@db:5432/logs", "primary": "memory://"},
	}

	tests := []struct {
		value  string
		scheme string
	}{
		{"primary", storage.SchemePebble},
		{"secondary", storage.SchemePostgres},
		{"LOGS_FROM_ENV", storage.SchemeBolt},
		{"memory://", storage.SchemeMemory},
		{"kafka://broker1:9092,broker2:9092", storage.SchemeKafka},
	}
	for _, tt := range tests {
		cs, err := cfg.ResolveConnectionString(tt.value)
		if err != nil {
			t.Fatalf("ResolveConnectionString(%q): %v", tt.value, err)
		}
		if cs.Scheme != tt.scheme {
			t.Fatalf("ResolveConnectionString(%q) scheme = %q, want %q", tt.value, cs.Scheme, tt.scheme)
		}
	}

	for _, value := range []string{"", "broken", "unknown-name", "pebble://"} {
		if _, err := cfg.ResolveConnectionString(value); !fault.Is(err, fault.InvalidConfigCode) {
			t.Fatalf("ResolveConnectionString(%q) = %v, want config fault", value, err)
		}
	}
}

func TestParseConfigErrors(t *testing.T) {
	base := func() Config {
		return Config{
			Logger: LoggerConfig{Output: "stderr"},
			Target: TargetConfig{TableName: "AppLogs", ConnectionString: "memory://"},
		}
	}

	tests := map[string]func(*Config){
		"invalid table name":  func(c *Config) { c.Target.TableName = "1nvalid" },
		"reserved table name": func(c *Config) { c.Target.TableName = "Tables" },
		"no connection":       func(c *Config) { c.Target.ConnectionString = "" },
		"bad partition key":   func(c *Config) { c.Target.PartitionKey = "random" },
		"bad property mode":   func(c *Config) { c.Target.PropertyMode = "xml" },
		"bad layout":          func(c *Config) { c.Target.Layout.Pattern = "${host}" },
		"bad layout type":     func(c *Config) { c.Target.Layout.Type = "mustache" },
		"two filters":         func(c *Config) { c.Target.Filter = FilterConfig{Expression: "level=warn", CEL: "true"} },
		"bad filter":          func(c *Config) { c.Target.Filter.Expression = "level=" },
		"bad cel":             func(c *Config) { c.Target.Filter.CEL = "level +" },
		"batch too large":     func(c *Config) { c.Target.MaxBatchSize = 101 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(&cfg)
			_, logger, err := cfg.Parse(context.Background())
			if err == nil {
				t.Fatalf("expected error")
			}
			if !fault.Is(err, fault.InvalidConfigCode) {
				t.Fatalf("error %v is not a config fault", err)
			}
			if logger == nil {
				t.Fatalf("logger should be returned with target errors")
			}
		})
	}
}

func TestParseSourceErrors(t *testing.T) {
	cfg := Config{
		Logger: LoggerConfig{Output: "stderr"},
		Target: TargetConfig{TableName: "AppLogs", ConnectionString: "memory://"},
		Sources: []SourceConfig{
			{Name: "a", Type: "stdin"},
			{Name: "a", Type: "stdin"},
		},
	}
	if _, _, err := cfg.Parse(context.Background()); err == nil {
		t.Fatalf("expected duplicate source error")
	}

	cfg.Sources = []SourceConfig{{Name: "a", Type: "socket"}}
	if _, _, err := cfg.Parse(context.Background()); err == nil {
		t.Fatalf("expected unknown source type error")
	}
}

func TestParseLoggerConfig(t *testing.T) {
	for _, c := range []LoggerConfig{{}, {Level: "warn", Type: "colored-text"}, {Output: filepath.Join(t.TempDir(), "out.log")}} {
		if _, err := parseLoggerConfig(c); err != nil {
			t.Fatalf("parseLoggerConfig(%+v): %v", c, err)
		}
	}
	for _, c := range []LoggerConfig{{Level: "loud"}, {Type: "xml"}} {
		if _, err := parseLoggerConfig(c); err == nil {
			t.Fatalf("parseLoggerConfig(%+v) should fail", c)
		}
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOGTABLE_TABLE_NAME", "EnvLogs")
	t.Setenv("LOGTABLE_CONNECTION_STRING", "memory://")
	t.Setenv("LOGTABLE_PARTITION_KEY_PREFIX", "")
	t.Setenv("LOGTABLE_MAX_BATCH_SIZE", "25")
	t.Setenv("LOGTABLE_SHUTDOWN_TIMEOUT", "1m")
	t.Setenv("LOGTABLE_LOG_LEVEL", "error")

	cfg := Config{Target: TargetConfig{TableName: "FileLogs", PartitionKeyPrefix: "prod", MaxBatchSize: 100}}
	FromEnv(&cfg)

	if cfg.Target.TableName != "EnvLogs" || cfg.Target.ConnectionString != "memory://" {
		t.Fatalf("target = %+v", cfg.Target)
	}
	if cfg.Target.PartitionKeyPrefix != "" {
		t.Fatalf("empty prefix variable should clear the prefix")
	}
	if cfg.Target.MaxBatchSize != 25 || cfg.Target.ShutdownTimeout != time.Minute || cfg.Logger.Level != "error" {
		t.Fatalf("cfg = %+v", cfg)
	}
}
