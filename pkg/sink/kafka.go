package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/fred-series-harvester/pkg/output"
	"github.com/segmentio/kafka-go"
)

// Kafka message header names.
const (
	HeaderEventKind = "event-kind"
	HeaderRunID     = "run-id"
	HeaderRecord    = "record"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes one message per item, keyed by series id.
type KafkaSink struct {
	writer messageWriter
	runID  string
}

// KafkaOptions configures a KafkaSink.
type KafkaOptions struct {
	Brokers      []string
	Topic        string
	RunID        string
	WriteTimeout time.Duration
}

// NewKafkaSink creates a synchronous writer for opts.Topic.
func NewKafkaSink(opts KafkaOptions) (*KafkaSink, error) {
	if len(opts.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Topic:        opts.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: opts.WriteTimeout,
		BatchSize:    100,
		BatchTimeout: time.Second,
	}

	return &KafkaSink{writer: writer, runID: opts.RunID}, nil
}

// PushItems implements Sink.
func (s *KafkaSink) PushItems(ctx context.Context, items []output.Item, eventKind string) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now()
	msgs := make([]kafka.Message, 0, len(items))
	for i := range items {
		value, err := json.Marshal(&items[i])
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", items[i].SeriesID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(items[i].SeriesID),
			Value:   value,
			Headers: s.headers("item", eventKind),
			Time:    now,
		})
	}

	err := s.writer.WriteMessages(ctx, msgs...)
	observePush("kafka", err)
	if err != nil {
		return fmt.Errorf("kafka write %d messages: %w", len(msgs), err)
	}
	return nil
}

// PushError implements Sink.
func (s *KafkaSink) PushError(ctx context.Context, record output.ErrorRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal error record: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte("error"),
		Value:   value,
		Headers: s.headers("error", ""),
		Time:    time.Now(),
	})
	observePush("kafka", err)
	if err != nil {
		return fmt.Errorf("kafka write error record: %w", err)
	}
	return nil
}

func (s *KafkaSink) headers(record, eventKind string) []kafka.Header {
	headers := []kafka.Header{{Key: HeaderRecord, Value: []byte(record)}}
	if s.runID != "" {
		headers = append(headers, kafka.Header{Key: HeaderRunID, Value: []byte(s.runID)})
	}
	if eventKind != "" {
		headers = append(headers, kafka.Header{Key: HeaderEventKind, Value: []byte(eventKind)})
	}
	return headers
}

// Close implements Sink.
func (s *KafkaSink) Close() error {
	if s.writer != nil {
		return s.writer.Close()
	}
	return nil
}
