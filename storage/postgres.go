package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/thisisjab/logtable/entity"
)

// PostgresStore keeps one table per log table with a (partition_key, row_key)
// primary key. A batch is one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping the database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, table string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			partition_key TEXT NOT NULL,
			row_key TEXT NOT NULL,
			properties JSONB NOT NULL,
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (partition_key, row_key)
		)`, pgx.Identifier{table}.Sanitize()))
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) ExecuteBatch(ctx context.Context, table, partitionKey string, entities []entity.EncodedEntity) (err error) {
	if err := validateBatch(partitionKey, entities); err != nil {
		return err
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (partition_key, row_key, properties) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		pgx.Identifier{table}.Sanitize(),
	)

	b := &pgx.Batch{}
	for _, e := range entities {
		props, err := json.Marshal(e.Properties)
		if err != nil {
			return fmt.Errorf("couldn't encode entity %s/%s: %w", e.PartitionKey, e.RowKey, err)
		}
		b.Queue(query, e.PartitionKey, e.RowKey, string(props))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("couldn't begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	br := tx.SendBatch(ctx, b)
	for _, e := range entities {
		tag, execErr := br.Exec()
		if execErr != nil {
			_ = br.Close()
			return fmt.Errorf("couldn't insert %s/%s: %w", e.PartitionKey, e.RowKey, execErr)
		}
		if tag.RowsAffected() == 0 {
			_ = br.Close()
			return fmt.Errorf("%w: %s/%s", ErrConflict, e.PartitionKey, e.RowKey)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
