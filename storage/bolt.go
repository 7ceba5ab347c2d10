package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thisisjab/logtable/entity"
	bolt "go.etcd.io/bbolt"
)

type BoltStoreConfig struct {
	Path    string
	Timeout time.Duration
	// NoSync skips fsync after each transaction.
	NoSync   bool
	Compress bool
}

// BoltStore keeps each table in a top-level bucket with one nested bucket
// per partition key. A batch is a single Update transaction.
type BoltStore struct {
	db    *bolt.DB
	codec *codec
}

func NewBoltStore(cfg BoltStoreConfig) (*BoltStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("bolt: path is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: timeout, NoSync: cfg.NoSync})
	if err != nil {
		return nil, fmt.Errorf("open bolt at %s: %w", cfg.Path, err)
	}
	return &BoltStore{db: db, codec: &codec{compress: cfg.Compress}}, nil
}

func (s *BoltStore) CreateIfAbsent(ctx context.Context, table string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(table))
		return err
	})
}

func (s *BoltStore) ExecuteBatch(ctx context.Context, table, partitionKey string, entities []entity.EncodedEntity) error {
	if err := validateBatch(partitionKey, entities); err != nil {
		return err
	}

	values := make([][]byte, len(entities))
	for i, e := range entities {
		v, err := s.codec.encode(e)
		if err != nil {
			return err
		}
		values[i] = v
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		tb := tx.Bucket([]byte(table))
		if tb == nil {
			return fmt.Errorf("%w: %s", ErrTableNotFound, table)
		}
		pb, err := tb.CreateBucketIfNotExists(partitionBucket(partitionKey))
		if err != nil {
			return fmt.Errorf("partition %q: %w", partitionKey, err)
		}

		for i, e := range entities {
			key := []byte(e.RowKey)
			if pb.Get(key) != nil {
				return fmt.Errorf("%w: %s/%s", ErrConflict, partitionKey, e.RowKey)
			}
			if err := pb.Put(key, values[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Partition reads up to limit entities of one partition in row key order.
func (s *BoltStore) Partition(table, partitionKey string, limit int) ([]entity.EncodedEntity, error) {
	var out []entity.EncodedEntity
	err := s.db.View(func(tx *bolt.Tx) error {
		tb := tx.Bucket([]byte(table))
		if tb == nil {
			return fmt.Errorf("%w: %s", ErrTableNotFound, table)
		}
		pb := tb.Bucket(partitionBucket(partitionKey))
		if pb == nil {
			return nil
		}

		c := pb.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			e, err := s.codec.decode(partitionKey, string(k), v)
			if err != nil {
				return err
			}
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// partitionBucket names the nested bucket of a partition. Bolt refuses empty
// bucket names, and an empty partition key is valid.
func partitionBucket(partitionKey string) []byte {
	return []byte("p/" + partitionKey)
}

func (s *BoltStore) Close() error {
	s.codec.close()
	return s.db.Close()
}
