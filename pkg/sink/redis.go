package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/fred-series-harvester/pkg/output"
	"github.com/redis/go-redis/v9"
)

// Default Redis list keys.
const (
	DefaultRedisItemsKey  = "fred:items"
	DefaultRedisErrorsKey = "fred:errors"
)

// RedisSink appends JSON envelopes to Redis lists with RPUSH.
type RedisSink struct {
	client    *redis.Client
	itemsKey  string
	errorsKey string
	runID     string
	owned     bool
}

// RedisOptions configures a RedisSink.
type RedisOptions struct {
	ItemsKey  string
	ErrorsKey string
	RunID     string
}

// NewRedisSink writes through an existing client. The client is not closed by Close.
func NewRedisSink(client *redis.Client, opts RedisOptions) *RedisSink {
	if opts.ItemsKey == "" {
		opts.ItemsKey = DefaultRedisItemsKey
	}
	if opts.ErrorsKey == "" {
		opts.ErrorsKey = DefaultRedisErrorsKey
	}
	return &RedisSink{
		client:    client,
		itemsKey:  opts.ItemsKey,
		errorsKey: opts.ErrorsKey,
		runID:     opts.RunID,
	}
}

// OpenRedis connects to url (redis://...) and verifies the connection.
func OpenRedis(ctx context.Context, url string, opts RedisOptions) (*RedisSink, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	s := NewRedisSink(client, opts)
	s.owned = true
	return s, nil
}

// PushItems implements Sink. The batch is written with a single RPUSH.
func (s *RedisSink) PushItems(ctx context.Context, items []output.Item, eventKind string) error {
	if len(items) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(items))
	for i := range items {
		data, err := json.Marshal(Envelope{RunID: s.runID, EventKind: eventKind, Item: &items[i]})
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", items[i].SeriesID, err)
		}
		values = append(values, data)
	}

	err := s.client.RPush(ctx, s.itemsKey, values...).Err()
	observePush("redis", err)
	if err != nil {
		return fmt.Errorf("redis rpush %s: %w", s.itemsKey, err)
	}
	return nil
}

// PushError implements Sink.
func (s *RedisSink) PushError(ctx context.Context, record output.ErrorRecord) error {
	data, err := json.Marshal(Envelope{RunID: s.runID, Error: &record})
	if err != nil {
		return fmt.Errorf("marshal error record: %w", err)
	}

	err = s.client.RPush(ctx, s.errorsKey, data).Err()
	observePush("redis", err)
	if err != nil {
		return fmt.Errorf("redis rpush %s: %w", s.errorsKey, err)
	}
	return nil
}

// Close implements Sink.
func (s *RedisSink) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
