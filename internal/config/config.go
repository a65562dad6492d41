// Package config loads the harvester configuration from an optional .env
// file, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/fred-series-harvester/pkg/client"
	"github.com/Sternrassler/fred-series-harvester/pkg/harvest"
	"github.com/Sternrassler/fred-series-harvester/pkg/logging"
	"github.com/Sternrassler/fred-series-harvester/pkg/pagination"
	"github.com/Sternrassler/fred-series-harvester/pkg/ratelimit"
	"github.com/Sternrassler/fred-series-harvester/pkg/sink"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete harvester configuration.
type Config struct {
	FRED struct {
		APIKey    string        `yaml:"api_key" validate:"required"`
		BaseURL   string        `yaml:"base_url" default:"https://api.stlouisfed.org/fred" validate:"url"`
		UserAgent string        `yaml:"user_agent" default:"fred-series-harvester/0.1.0"`
		Timeout   time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
	} `yaml:"fred"`

	RateLimit struct {
		RequestsPerMinute int           `yaml:"requests_per_minute" default:"120" validate:"gte=1"`
		Buffer            time.Duration `yaml:"buffer" default:"100ms" validate:"gte=0"`
	} `yaml:"rate_limit"`

	Retry struct {
		MaxAttempts       int           `yaml:"max_attempts" default:"4" validate:"gte=1"`
		InitialBackoff    time.Duration `yaml:"initial_backoff" default:"1s" validate:"gte=0"`
		MaxBackoff        time.Duration `yaml:"max_backoff" default:"5s" validate:"gte=0"`
		BackoffMultiplier float64       `yaml:"backoff_multiplier" default:"2" validate:"gte=1"`
	} `yaml:"retry"`

	Harvest struct {
		BatchSize              int  `yaml:"batch_size" default:"10" validate:"gte=1"`
		ObservationConcurrency int  `yaml:"observation_concurrency" default:"5" validate:"gte=1"`
		IsPaying               bool `yaml:"is_paying"`
		PayPerEvent            bool `yaml:"pay_per_event"`
	} `yaml:"harvest"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn warning error"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Metrics struct {
		Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
	} `yaml:"metrics"`

	Sink struct {
		Kind string `yaml:"kind" default:"jsonl" validate:"oneof=jsonl memory redis kafka clickhouse"`
		Path string `yaml:"path"`

		Redis struct {
			URL string `yaml:"url"`
			Key string `yaml:"key" default:"fred:items"`
		} `yaml:"redis"`

		Kafka struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic" default:"fred-series"`
		} `yaml:"kafka"`

		ClickHouse struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port" default:"9000"`
			Database string `yaml:"database" default:"default"`
			User     string `yaml:"user" default:"default"`
			Password string `yaml:"password"`
			Table    string `yaml:"table" default:"fred_series"`
		} `yaml:"clickhouse"`
	} `yaml:"sink"`
}

var validate = validator.New()

// Load reads and validates the configuration.
func Load(path string, envFiles ...string) (*Config, error) {
	c, err := Read(path, envFiles...)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Read builds the configuration without validating it. Values are applied
// in this order, later ones winning: YAML file at path (skipped when empty),
// environment (including variables from envFiles, default ".env"), struct
// defaults for anything still unset. Missing env files are ignored.
func Read(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	return &c, nil
}

// applyEnv overrides fields from the environment.
func (c *Config) applyEnv() error {
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		c.FRED.APIKey = v
	}
	if v := os.Getenv("FRED_BASE_URL"); v != "" {
		c.FRED.BaseURL = v
	}
	if v := os.Getenv("FRED_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("FRED_SINK"); v != "" {
		c.Sink.Kind = v
	}
	if v := os.Getenv("FRED_SINK_PATH"); v != "" {
		c.Sink.Path = v
	}
	if v := os.Getenv("FRED_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Sink.Redis.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Sink.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Sink.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.Sink.ClickHouse.Host = v
	}

	for name, dst := range map[string]*bool{
		"FRED_IS_PAYING":     &c.Harvest.IsPaying,
		"FRED_PAY_PER_EVENT": &c.Harvest.PayPerEvent,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
	}
	return nil
}

// Validate checks field constraints and the settings the selected sink needs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	switch c.Sink.Kind {
	case sink.KindRedis:
		if c.Sink.Redis.URL == "" {
			return fmt.Errorf("sink.redis.url is required for the redis sink")
		}
	case sink.KindKafka:
		if len(c.Sink.Kafka.Brokers) == 0 {
			return fmt.Errorf("sink.kafka.brokers cannot be empty for the kafka sink")
		}
	case sink.KindClickHouse:
		if c.Sink.ClickHouse.Host == "" {
			return fmt.Errorf("sink.clickhouse.host is required for the clickhouse sink")
		}
	}
	return nil
}

// ClickHouseDSN returns the clickhouse:// DSN for the configured server.
func (c *Config) ClickHouseDSN() string {
	ch := c.Sink.ClickHouse
	u := url.URL{
		Scheme: "clickhouse",
		User:   url.UserPassword(ch.User, ch.Password),
		Host:   net.JoinHostPort(ch.Host, strconv.Itoa(ch.Port)),
		Path:   "/" + ch.Database,
	}
	return u.String()
}

// ClientConfig returns the FRED client configuration. The limiter is
// created by the caller so it can be shared.
func (c *Config) ClientConfig(limiter *ratelimit.Limiter) client.Config {
	return client.Config{
		APIKey:    c.FRED.APIKey,
		BaseURL:   c.FRED.BaseURL,
		UserAgent: c.FRED.UserAgent,
		Timeout:   c.FRED.Timeout,
		Limiter:   limiter,
		Retry: client.RetryConfig{
			MaxAttempts:       c.Retry.MaxAttempts,
			InitialBackoff:    c.Retry.InitialBackoff,
			MaxBackoff:        c.Retry.MaxBackoff,
			BackoffMultiplier: c.Retry.BackoffMultiplier,
		},
	}
}

// RateLimitConfig returns the limiter configuration: RequestsPerMinute per
// minute, spaced evenly.
func (c *Config) RateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Limit:       c.RateLimit.RequestsPerMinute,
		Window:      ratelimit.DefaultWindow,
		Buffer:      c.RateLimit.Buffer,
		MinInterval: ratelimit.DefaultWindow / time.Duration(c.RateLimit.RequestsPerMinute),
	}
}

// SinkConfig returns the sink selection for one run.
func (c *Config) SinkConfig(runID string) sink.Config {
	cfg := sink.Config{
		Kind:         c.Sink.Kind,
		Path:         c.Sink.Path,
		RedisURL:     c.Sink.Redis.URL,
		RedisKey:     c.Sink.Redis.Key,
		KafkaBrokers: c.Sink.Kafka.Brokers,
		KafkaTopic:   c.Sink.Kafka.Topic,
		RunID:        runID,
	}
	if c.Sink.Kind == sink.KindClickHouse {
		cfg.ClickHouseDSN = c.ClickHouseDSN()
		cfg.ClickHouseTable = c.Sink.ClickHouse.Table
	}
	return cfg
}

// LoggingConfig returns the logger configuration, writing to stderr.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// HarvestOptions returns the orchestrator options for one run.
func (c *Config) HarvestOptions(runID string) harvest.Options {
	obs := pagination.DefaultConfig()
	obs.MaxConcurrency = c.Harvest.ObservationConcurrency
	return harvest.Options{
		BatchSize:    c.Harvest.BatchSize,
		Observations: obs,
		RunID:        runID,
	}
}

// Entitlement returns the billing flags.
func (c *Config) Entitlement() harvest.Entitlement {
	return harvest.Entitlement{
		IsPaying:    c.Harvest.IsPaying,
		PayPerEvent: c.Harvest.PayPerEvent,
	}
}
