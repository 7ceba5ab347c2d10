package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/thisisjab/logtable/entity"
)

type KafkaStoreConfig struct {
	Brokers           []string
	NumPartitions     int
	ReplicationFactor int
	WriteTimeout      time.Duration
}

// KafkaStore publishes each table to a topic of the same name. The message
// key is the partition key, so one table partition always lands on one Kafka
// partition and keeps its order.
type KafkaStore struct {
	cfg    KafkaStoreConfig
	writer *kafka.Writer
}

func NewKafkaStore(cfg KafkaStoreConfig) (*KafkaStore, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if cfg.NumPartitions <= 0 {
		cfg.NumPartitions = 1
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    MaxBatchSize,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &KafkaStore{cfg: cfg, writer: w}, nil
}

// CreateIfAbsent creates the table topic through the cluster controller.
func (s *KafkaStore) CreateIfAbsent(ctx context.Context, table string) error {
	var d kafka.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find kafka controller: %w", err)
	}

	cc, err := d.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer cc.Close()

	err = cc.CreateTopics(kafka.TopicConfig{
		Topic:             table,
		NumPartitions:     s.cfg.NumPartitions,
		ReplicationFactor: s.cfg.ReplicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("failed to create topic %s: %w", table, err)
	}
	return nil
}

func (s *KafkaStore) ExecuteBatch(ctx context.Context, table, partitionKey string, entities []entity.EncodedEntity) error {
	if err := validateBatch(partitionKey, entities); err != nil {
		return err
	}

	msgs := make([]kafka.Message, len(entities))
	now := time.Now()
	for i, e := range entities {
		value, err := json.Marshal(e.Document())
		if err != nil {
			return fmt.Errorf("couldn't encode entity %s/%s: %w", e.PartitionKey, e.RowKey, err)
		}
		msgs[i] = kafka.Message{
			Topic:   table,
			Key:     []byte(partitionKey),
			Value:   value,
			Headers: []kafka.Header{{Key: "row_key", Value: []byte(e.RowKey)}},
			Time:    now,
		}
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("couldn't write to topic %s: %w", table, err)
	}
	return nil
}

func (s *KafkaStore) Close() error {
	return s.writer.Close()
}
