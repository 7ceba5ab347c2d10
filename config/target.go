package config

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/thisisjab/logtable/encoder"
	"github.com/thisisjab/logtable/engine"
	"github.com/thisisjab/logtable/fault"
	"github.com/thisisjab/logtable/filter"
	"github.com/thisisjab/logtable/keys"
	"github.com/thisisjab/logtable/layout"
	"github.com/thisisjab/logtable/storage"
)

const DefaultShutdownTimeout = 30 * time.Second

type TargetConfig struct {
	TableName string `yaml:"table_name"`
	// ConnectionString is a connection string, or the name of an entry in
	// connection_strings, settings or the environment holding one.
	ConnectionString   string        `yaml:"connection_string"`
	PartitionKey       string        `yaml:"partition_key"`
	PartitionKeyPrefix string        `yaml:"partition_key_prefix"`
	RowKey             string        `yaml:"row_key"`
	PropertyMode       string        `yaml:"property_mode"`
	HostName           string        `yaml:"host_name"`
	Layout             LayoutConfig  `yaml:"layout"`
	Filter             FilterConfig  `yaml:"filter"`
	MaxBatchSize       int           `yaml:"max_batch_size"`
	FlushTimeout       time.Duration `yaml:"flush_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

type LayoutConfig struct {
	// Type is "pattern" (default) or "lua".
	Type       string `yaml:"type"`
	Pattern    string `yaml:"pattern"`
	ScriptPath string `yaml:"script-path"`
}

// FilterConfig holds at most one of a native condition and a CEL expression.
type FilterConfig struct {
	Expression string `yaml:"expression"`
	CEL        string `yaml:"cel"`
}

func (tc TargetConfig) shutdownTimeout() time.Duration {
	if tc.ShutdownTimeout > 0 {
		return tc.ShutdownTimeout
	}
	return DefaultShutdownTimeout
}

// OpenTarget resolves the store, opens it and builds a Target on it. Every
// error is a fault with InvalidConfigCode.
func (cfg Config) OpenTarget(ctx context.Context, logger *slog.Logger, m engine.Metrics) (*engine.Target, storage.Store, error) {
	tc, err := cfg.Target.engineConfig(logger)
	if err != nil {
		return nil, nil, err
	}
	tc.Metrics = m

	cs, err := cfg.ResolveConnectionString(cfg.Target.ConnectionString)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.Open(ctx, cs)
	if err != nil {
		return nil, nil, fault.Configf("cannot open store %s", cs).WithOriginal(err)
	}
	logger.Info("table store opened", "scheme", cs.Scheme, "connection", cs.String())

	target, err := engine.NewTarget(ctx, tc, store, logger)
	if err != nil {
		store.Close() //nolint:errcheck
		return nil, nil, err
	}

	return target, store, nil
}

func (tc TargetConfig) engineConfig(logger *slog.Logger) (engine.TargetConfig, error) {
	partitions, err := keys.ParsePartitionStrategy(tc.PartitionKey, tc.PartitionKeyPrefix)
	if err != nil {
		return engine.TargetConfig{}, fault.Configf("%v", err)
	}
	rows, err := keys.ParseRowStrategy(tc.RowKey)
	if err != nil {
		return engine.TargetConfig{}, fault.Configf("%v", err)
	}
	mode, err := encoder.ParsePropertyMode(tc.PropertyMode)
	if err != nil {
		return engine.TargetConfig{}, fault.Configf("%v", err)
	}

	renderer, err := tc.Layout.renderer(logger)
	if err != nil {
		return engine.TargetConfig{}, err
	}
	cond, err := tc.Filter.condition()
	if err != nil {
		return engine.TargetConfig{}, err
	}

	return engine.TargetConfig{
		TableName:     tc.TableName,
		PartitionKeys: partitions,
		RowKeys:       rows,
		Encoder:       encoder.New(encoder.Options{HostName: tc.HostName, PropertyMode: mode}),
		Renderer:      renderer,
		Filter:        cond,
		TableNames:    storage.TableNames{},
		MaxBatchSize:  tc.MaxBatchSize,
		FlushTimeout:  tc.FlushTimeout,
	}, nil
}

func (lc LayoutConfig) renderer(logger *slog.Logger) (engine.Renderer, error) {
	switch lc.Type {
	case "", "pattern":
		if lc.Pattern == "" {
			return nil, nil
		}
		p, err := layout.ParsePattern(lc.Pattern)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "lua":
		l, err := layout.NewLua(logger, lc.ScriptPath)
		if err != nil {
			return nil, fault.Configf("cannot create lua layout").WithOriginal(err)
		}
		return l, nil
	default:
		return nil, fault.Configf("invalid layout type: %s", lc.Type)
	}
}

func (fc FilterConfig) condition() (engine.Condition, error) {
	switch {
	case fc.Expression != "" && fc.CEL != "":
		return nil, fault.Configf("filter takes either expression or cel, not both")
	case fc.Expression != "":
		c, err := filter.Compile(fc.Expression)
		if err != nil {
			return nil, fault.Configf("invalid filter expression").WithOriginal(err)
		}
		return c, nil
	case fc.CEL != "":
		c, err := filter.CompileCEL(fc.CEL)
		if err != nil {
			return nil, fault.Configf("invalid cel filter").WithOriginal(err)
		}
		return c, nil
	default:
		return nil, nil
	}
}

// ResolveConnectionString looks value up, in order, as a named connection
// string, as a named setting, as an environment variable, and finally parses
// it as a connection string itself.
func (cfg Config) ResolveConnectionString(value string) (storage.ConnectionString, error) {
	if value == "" {
		return storage.ConnectionString{}, fault.Configf("connection string is required")
	}

	named := func(kind, raw string) (storage.ConnectionString, error) {
		cs, err := storage.ParseConnectionString(raw)
		if err != nil {
			return storage.ConnectionString{}, fault.Configf("%s %q does not hold a valid connection string", kind, value).WithOriginal(err)
		}
		return cs, nil
	}

	if raw, ok := cfg.ConnectionStrings[value]; ok {
		return named("connection string", raw)
	}
	if raw, ok := cfg.Settings[value]; ok {
		return named("setting", raw)
	}
	if raw, ok := os.LookupEnv(value); ok && raw != "" {
		return named("environment variable", raw)
	}

	cs, err := storage.ParseConnectionString(value)
	if err != nil {
		return storage.ConnectionString{}, fault.Configf("cannot resolve connection string %q", value).WithOriginal(err)
	}
	return cs, nil
}
