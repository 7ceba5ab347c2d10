package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/thisisjab/logtable/entity"
)

// codec serializes entity properties for key-value stores. Values are the
// ordered typed-properties JSON, optionally zstd compressed.
type codec struct {
	compress bool

	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	err  error
}

func (c *codec) init() error {
	c.once.Do(func() {
		if !c.compress {
			return
		}
		if c.enc, c.err = zstd.NewWriter(nil); c.err != nil {
			return
		}
		c.dec, c.err = zstd.NewReader(nil)
	})
	return c.err
}

func (c *codec) encode(e entity.EncodedEntity) ([]byte, error) {
	raw, err := json.Marshal(e.Properties)
	if err != nil {
		return nil, fmt.Errorf("encode entity %s/%s: %w", e.PartitionKey, e.RowKey, err)
	}
	if !c.compress {
		return raw, nil
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func (c *codec) decode(partitionKey, rowKey string, value []byte) (entity.EncodedEntity, error) {
	e := entity.EncodedEntity{PartitionKey: partitionKey, RowKey: rowKey}
	if c.compress {
		if err := c.init(); err != nil {
			return e, err
		}
		raw, err := c.dec.DecodeAll(value, nil)
		if err != nil {
			return e, fmt.Errorf("decompress entity %s/%s: %w", partitionKey, rowKey, err)
		}
		value = raw
	}
	if err := json.Unmarshal(value, &e.Properties); err != nil {
		return e, fmt.Errorf("decode entity %s/%s: %w", partitionKey, rowKey, err)
	}
	return e, nil
}

func (c *codec) close() {
	if c.enc != nil {
		c.enc.Close()
	}
	if c.dec != nil {
		c.dec.Close()
	}
}
