package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/thisisjab/logtable/entity"
)

// MemoryStore keeps tables in process memory. It follows the same insert-only
// and batch rules as the durable stores.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]entity.EncodedEntity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string]map[string]entity.EncodedEntity)}
}

func (s *MemoryStore) CreateIfAbsent(ctx context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table]; !ok {
		s.tables[table] = make(map[string]map[string]entity.EncodedEntity)
	}
	return nil
}

func (s *MemoryStore) ExecuteBatch(ctx context.Context, table, partitionKey string, entities []entity.EncodedEntity) error {
	if err := validateBatch(partitionKey, entities); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	rows := t[partitionKey]
	for _, e := range entities {
		if _, exists := rows[e.RowKey]; exists {
			return fmt.Errorf("%w: %s/%s", ErrConflict, partitionKey, e.RowKey)
		}
	}

	if rows == nil {
		rows = make(map[string]entity.EncodedEntity, len(entities))
		t[partitionKey] = rows
	}
	for _, e := range entities {
		rows[e.RowKey] = e
	}
	return nil
}

// Entities returns every entity of table ordered by partition key, then row key.
func (s *MemoryStore) Entities(table string) []entity.EncodedEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.EncodedEntity
	for _, rows := range s.tables[table] {
		for _, e := range rows {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PartitionKey != out[j].PartitionKey {
			return out[i].PartitionKey < out[j].PartitionKey
		}
		return out[i].RowKey < out[j].RowKey
	})
	return out
}

func (s *MemoryStore) Close() error {
	return nil
}
