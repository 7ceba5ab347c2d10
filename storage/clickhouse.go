package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/thisisjab/logtable/entity"
)

type ClickHouseStoreConfig struct {
	Addr     []string `yaml:"addr"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	// DSN, when set, takes precedence over the fields above.
	DSN string `yaml:"dsn"`
}

// ClickHouseStore maps every table onto a ReplacingMergeTree ordered by
// (partition_key, row_key). Properties are stored as their typed JSON.
type ClickHouseStore struct {
	conn driver.Conn
	cfg  ClickHouseStoreConfig
}

func NewClickHouseStore(cfg ClickHouseStoreConfig) *ClickHouseStore {
	return &ClickHouseStore{cfg: cfg}
}

func (s *ClickHouseStore) options() (*clickhouse.Options, error) {
	if s.cfg.DSN != "" {
		opts, err := clickhouse.ParseDSN(s.cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("invalid clickhouse dsn: %w", err)
		}
		return opts, nil
	}

	return &clickhouse.Options{
		Addr: s.cfg.Addr,
		Auth: clickhouse.Auth{
			Database: s.cfg.Database,
			Username: s.cfg.Username,
			Password: s.cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	}, nil
}

func (s *ClickHouseStore) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts, err := s.options()
	if err != nil {
		return err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping the database: %w", err)
	}

	s.conn = conn
	return nil
}

func (s *ClickHouseStore) CreateIfAbsent(ctx context.Context, table string) error {
	err := s.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			partition_key String,
			row_key String,
			properties String,
			inserted_at DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = ReplacingMergeTree
		ORDER BY (partition_key, row_key)
	`, table))
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// ExecuteBatch sends the batch as one insert block, which ClickHouse applies
// atomically.
func (s *ClickHouseStore) ExecuteBatch(ctx context.Context, table, partitionKey string, entities []entity.EncodedEntity) error {
	if err := validateBatch(partitionKey, entities); err != nil {
		return err
	}

	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (partition_key, row_key, properties)", table))
	if err != nil {
		return fmt.Errorf("couldn't prepare batch: %w", err)
	}
	defer batch.Abort()

	for _, e := range entities {
		props, err := json.Marshal(e.Properties)
		if err != nil {
			return fmt.Errorf("couldn't encode entity %s/%s: %w", e.PartitionKey, e.RowKey, err)
		}
		if err := batch.Append(e.PartitionKey, e.RowKey, string(props)); err != nil {
			return fmt.Errorf("couldn't append entity to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("couldn't send batch: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
