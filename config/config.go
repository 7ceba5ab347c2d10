package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/thisisjab/logtable/api"
	"github.com/thisisjab/logtable/engine"
	"github.com/thisisjab/logtable/fault"
	"github.com/thisisjab/logtable/metrics"
	"github.com/thisisjab/logtable/processor"
	"github.com/thisisjab/logtable/source"
	"github.com/thisisjab/logtable/storage"
	"go.yaml.in/yaml/v3"
)

type Config struct {
	Logger LoggerConfig `yaml:"logger"`
	Target TargetConfig `yaml:"target"`
	// Settings are named application settings a connection string may refer to.
	Settings map[string]string `yaml:"settings"`
	// ConnectionStrings are named connection strings.
	ConnectionStrings     map[string]string `yaml:"connection_strings"`
	Processors            []ProcessorConfig `yaml:"processors"`
	Sources               []SourceConfig    `yaml:"sources"`
	RawLogsBufferSize     uint              `yaml:"raw_logs_buffer_size"`
	ProcessorWorkersCount uint              `yaml:"processor_workers_count"`
	API                   *api.Config       `yaml:"api"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Type   string `yaml:"type"`
	Output string `yaml:"output"`
}

type ProcessorConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Config any    `yaml:"config"`
}

type SourceConfig struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Processors []string `yaml:"processors"`
	Config     any      `yaml:"config"`
}

// Components is everything a configuration builds. Close releases it.
type Components struct {
	Logger   *slog.Logger
	Store    storage.Store
	Target   *engine.Target
	Registry *prometheus.Registry
	// Engine is nil when no sources are configured.
	Engine *engine.Config
	API    *api.Config

	shutdownTimeout time.Duration
}

// Close drains the target within the configured shutdown timeout, then closes
// the store.
func (c *Components) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.shutdownTimeout)
	defer cancel()

	return errors.Join(c.Target.Close(ctx), c.Store.Close())
}

// Parse builds all components. The logger is returned whenever it could be
// built, so callers can report later failures through it.
func (cfg Config) Parse(ctx context.Context) (*Components, *slog.Logger, error) {
	logger, err := parseLoggerConfig(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	target, store, err := cfg.OpenTarget(ctx, logger, metrics.New(reg))
	if err != nil {
		return nil, logger, err
	}

	c := &Components{
		Logger:          logger,
		Store:           store,
		Target:          target,
		Registry:        reg,
		API:             cfg.API,
		shutdownTimeout: cfg.Target.shutdownTimeout(),
	}

	if len(cfg.Sources) > 0 {
		ec, err := cfg.parseEngineConfig(logger, target)
		if err != nil {
			c.Close(ctx) //nolint:errcheck
			return nil, logger, err
		}
		c.Engine = ec
	}

	return c, logger, nil
}

func (cfg Config) parseEngineConfig(logger *slog.Logger, w engine.RecordWriter) (*engine.Config, error) {
	processors := make(map[string]engine.LogProcessor, len(cfg.Processors))
	for _, pc := range cfg.Processors {
		if _, dup := processors[pc.Name]; dup {
			return nil, fault.Configf("duplicate processor name %q", pc.Name)
		}
		p, err := parseProcessorConfig(pc)
		if err != nil {
			return nil, fmt.Errorf("cannot create processor `%s`: %w", pc.Name, err)
		}
		processors[pc.Name] = p
	}

	sources := make(map[string]engine.LogSource, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		if _, dup := sources[sc.Name]; dup {
			return nil, fault.Configf("duplicate source name %q", sc.Name)
		}
		s, err := parseSourceConfig(logger, sc)
		if err != nil {
			return nil, fmt.Errorf("cannot create source `%s`: %w", sc.Name, err)
		}
		sources[sc.Name] = s
	}

	workers := cfg.ProcessorWorkersCount
	if workers == 0 {
		workers = 1
	}

	return &engine.Config{
		Sources:               sources,
		Processors:            processors,
		Writer:                w,
		RawLogsBufferSize:     cfg.RawLogsBufferSize,
		ProcessorWorkersCount: workers,
	}, nil
}

func parseLoggerConfig(cfg LoggerConfig) (*slog.Logger, error) {
	var logger *slog.Logger
	var handler slog.Handler

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var w io.Writer
	switch cfg.Output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("cannot open log output: %w", err)
		}
		w = f
	}

	switch cfg.Type {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "", "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "colored-text":
		handler = tint.NewHandler(w, &tint.Options{Level: level, AddSource: true})
	default:
		return nil, fmt.Errorf("invalid log type: %s", cfg.Type)
	}

	logger = slog.New(handler)

	return logger, nil
}

func parseSourceConfig(logger *slog.Logger, cfg SourceConfig) (engine.LogSource, error) {
	switch cfg.Type {
	case "file":
		var fileConfig source.FileLogSourceConfig
		err := remarshal(cfg.Config, &fileConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create file source: %w", err)
		}

		fileConfig.Name = cfg.Name
		fileConfig.ProcessorNames = cfg.Processors

		s, err := source.NewFileLogSource(logger, fileConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create file source: %w", err)
		}

		return s, nil
	case "stdin":
		return source.NewReaderLogSource(cfg.Name, os.Stdin, cfg.Processors), nil
	default:
		return nil, fmt.Errorf("invalid log source type: %s", cfg.Type)
	}
}

func parseProcessorConfig(cfg ProcessorConfig) (engine.LogProcessor, error) {
	switch cfg.Type {
	case "json":
		var jsonConfig processor.JsonLogProcessorConfig
		err := remarshal(cfg.Config, &jsonConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create json processor: %w", err)
		}

		jsonConfig.Name = cfg.Name

		p, err := processor.NewJsonLogProcessor(jsonConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create json processor: %w", err)
		}

		return p, nil
	case "lua":
		var luaConfig processor.LuaLogProcessorConfig
		err := remarshal(cfg.Config, &luaConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create lua processor: %w", err)
		}

		luaConfig.Name = cfg.Name

		p, err := processor.NewLuaLogProcessor(luaConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create lua processor: %w", err)
		}

		return p, nil
	default:
		return nil, fmt.Errorf("invalid log processor type: %s", cfg.Type)
	}
}

// remarshal takes an input value, marshals it to YAML, and then unmarshals it into a new value of the same type.
// This is useful for converting generic interfaces (like map[string]any) into concrete struct types.
// The output parameter must be a pointer to the target type.
func remarshal(input any, output any) error {
	if input == nil {
		return nil
	}

	yamlBytes, err := yaml.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal to YAML: %w", err)
	}

	if err := yaml.Unmarshal(yamlBytes, output); err != nil {
		return fmt.Errorf("failed to unmarshal from YAML: %w", err)
	}

	return nil
}
