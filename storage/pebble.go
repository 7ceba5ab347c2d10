package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/thisisjab/logtable/entity"
)

// FsyncMode controls when PebbleStore syncs its WAL.
type FsyncMode int

const (
	// FsyncInterval lets Pebble group WAL syncs within FsyncInterval.
	FsyncInterval FsyncMode = iota
	// FsyncAlways syncs every committed batch.
	FsyncAlways
	// FsyncNever leaves syncing entirely to Pebble.
	FsyncNever
)

func ParseFsyncMode(s string) (FsyncMode, error) {
	switch s {
	case "", "interval":
		return FsyncInterval, nil
	case "always":
		return FsyncAlways, nil
	case "never":
		return FsyncNever, nil
	default:
		return 0, fmt.Errorf("invalid fsync mode: %s", s)
	}
}

type PebbleStoreConfig struct {
	DataDir       string
	Fsync         FsyncMode
	FsyncInterval time.Duration
	// Compress stores values zstd compressed.
	Compress bool
}

// PebbleStore keeps tables in a local Pebble database. Keys are laid out as
// t/{table}/p/{len(partition)}:{partition}/r/{row} so one partition is a
// contiguous range ordered by row key.
type PebbleStore struct {
	db    *pebble.DB
	sync  *pebble.WriteOptions
	codec *codec
}

func NewPebbleStore(cfg PebbleStoreConfig) (*PebbleStore, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("pebble: data dir is required")
	}

	opts := &pebble.Options{}
	switch cfg.Fsync {
	case FsyncInterval:
		interval := cfg.FsyncInterval
		if interval <= 0 {
			interval = 5 * time.Millisecond
		}
		opts.WALMinSyncInterval = func() time.Duration { return interval }
	case FsyncNever, FsyncAlways:
	}

	db, err := pebble.Open(cfg.DataDir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", cfg.DataDir, err)
	}

	wo := pebble.NoSync
	if cfg.Fsync == FsyncAlways {
		wo = pebble.Sync
	}

	return &PebbleStore{db: db, sync: wo, codec: &codec{compress: cfg.Compress}}, nil
}

func tableMarkerKey(table string) []byte {
	return []byte("m/" + table)
}

// partitionPrefix length-prefixes the partition key so that no partition key
// is a prefix of another partition's rows.
func partitionPrefix(table, partitionKey string) string {
	return "t/" + table + "/p/" + strconv.Itoa(len(partitionKey)) + ":" + partitionKey + "/r/"
}

func (s *PebbleStore) CreateIfAbsent(ctx context.Context, table string) error {
	exists, err := s.has(tableMarkerKey(table))
	if err != nil || exists {
		return err
	}
	return s.db.Set(tableMarkerKey(table), []byte(time.Now().UTC().Format(time.RFC3339)), pebble.Sync)
}

func (s *PebbleStore) has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, closer.Close()
}

// ExecuteBatch commits all entities in one pebble.Batch. The whole batch is
// refused if any row already exists.
func (s *PebbleStore) ExecuteBatch(ctx context.Context, table, partitionKey string, entities []entity.EncodedEntity) error {
	if err := validateBatch(partitionKey, entities); err != nil {
		return err
	}

	ok, err := s.has(tableMarkerKey(table))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	b := s.db.NewBatch()
	defer b.Close()

	prefix := partitionPrefix(table, partitionKey)
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := []byte(prefix + e.RowKey)
		exists, err := s.has(key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s/%s", ErrConflict, partitionKey, e.RowKey)
		}

		value, err := s.codec.encode(e)
		if err != nil {
			return err
		}
		if err := b.Set(key, value, nil); err != nil {
			return err
		}
	}

	return b.Commit(s.sync)
}

// Partition reads up to limit entities of one partition in row key order.
// A limit of zero reads the whole partition.
func (s *PebbleStore) Partition(table, partitionKey string, limit int) ([]entity.EncodedEntity, error) {
	prefix := partitionPrefix(table, partitionKey)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound([]byte(prefix)),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []entity.EncodedEntity
	for iter.First(); iter.Valid(); iter.Next() {
		rowKey := strings.TrimPrefix(string(iter.Key()), prefix)
		e, err := s.codec.decode(partitionKey, rowKey, iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *PebbleStore) Close() error {
	s.codec.close()
	return s.db.Close()
}
