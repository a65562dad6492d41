package sink

import (
	"context"
	"fmt"
	"strings"
)

// Sink kinds accepted by Open.
const (
	KindJSONL      = "jsonl"
	KindMemory     = "memory"
	KindRedis      = "redis"
	KindKafka      = "kafka"
	KindClickHouse = "clickhouse"
)

// Config selects and configures a sink.
type Config struct {
	Kind string

	// Path of the JSONL file; empty or "-" for stdout.
	Path string

	RedisURL string
	RedisKey string

	KafkaBrokers []string
	KafkaTopic   string

	ClickHouseDSN   string
	ClickHouseTable string

	// RunID is recorded with every record by the shared destinations.
	RunID string
}

// Open creates the sink named by cfg.Kind.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", KindJSONL:
		return OpenJSONLFile(cfg.Path)
	case KindMemory:
		return NewMemorySink(), nil
	case KindRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis sink: redis url is required")
		}
		return OpenRedis(ctx, cfg.RedisURL, RedisOptions{ItemsKey: cfg.RedisKey, RunID: cfg.RunID})
	case KindKafka:
		return NewKafkaSink(KafkaOptions{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, RunID: cfg.RunID})
	case KindClickHouse:
		if cfg.ClickHouseDSN == "" {
			return nil, fmt.Errorf("clickhouse sink: dsn is required")
		}
		return OpenClickHouse(ctx, cfg.ClickHouseDSN, ClickHouseOptions{Table: cfg.ClickHouseTable, RunID: cfg.RunID})
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
	}
}
