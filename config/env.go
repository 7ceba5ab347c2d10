package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays LOGTABLE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("LOGTABLE_TABLE_NAME"); v != "" {
		cfg.Target.TableName = v
	}
	if v := os.Getenv("LOGTABLE_CONNECTION_STRING"); v != "" {
		cfg.Target.ConnectionString = v
	}
	if v, ok := os.LookupEnv("LOGTABLE_PARTITION_KEY_PREFIX"); ok {
		cfg.Target.PartitionKeyPrefix = v
	}
	if v := os.Getenv("LOGTABLE_FILTER"); v != "" {
		cfg.Target.Filter = FilterConfig{Expression: v}
	}
	if v := os.Getenv("LOGTABLE_MAX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Target.MaxBatchSize = n
		}
	}
	if v := os.Getenv("LOGTABLE_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Target.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("LOGTABLE_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("LOGTABLE_LOG_TYPE"); v != "" {
		cfg.Logger.Type = v
	}
}
