// Package storage holds the table stores a Target writes into, the
// connection-string parser that selects one, and the table-name rules they share.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/thisisjab/logtable/entity"
)

// MaxBatchSize mirrors the engine's batch cap; stores reject anything larger.
const MaxBatchSize = 100

var (
	// ErrConflict is returned when a batch would overwrite an existing row.
	ErrConflict = errors.New("entity already exists")
	// ErrInvalidBatch is returned for batches the engine never produces.
	ErrInvalidBatch = errors.New("invalid batch")
	// ErrTableNotFound is returned when writing to a table that was never created.
	ErrTableNotFound = errors.New("table not found")
)

// Store is a partitioned, append-only table store.
type Store interface {
	CreateIfAbsent(ctx context.Context, table string) error
	ExecuteBatch(ctx context.Context, table, partitionKey string, entities []entity.EncodedEntity) error
	Close() error
}

// validateBatch enforces the contract every store relies on: one partition,
// at least one entity, at most MaxBatchSize, unique row keys.
func validateBatch(partitionKey string, entities []entity.EncodedEntity) error {
	if len(entities) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidBatch)
	}
	if len(entities) > MaxBatchSize {
		return fmt.Errorf("%w: %d entities exceeds %d", ErrInvalidBatch, len(entities), MaxBatchSize)
	}

	rows := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		if e.PartitionKey != partitionKey {
			return fmt.Errorf("%w: partition key %q in batch for %q", ErrInvalidBatch, e.PartitionKey, partitionKey)
		}
		if _, dup := rows[e.RowKey]; dup {
			return fmt.Errorf("%w: duplicate row key %q", ErrInvalidBatch, e.RowKey)
		}
		rows[e.RowKey] = struct{}{}
	}
	return nil
}
