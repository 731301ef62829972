package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout" validate:"required"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		TickRPS         float64       `yaml:"tick_rps" default:"20" validate:"gt=0"`
		TickBurst       int           `yaml:"tick_burst" default:"40" validate:"gt=0"`
	} `yaml:"server"`
	Kafka struct {
		Enabled        bool     `yaml:"enabled"`
		Brokers        []string `yaml:"brokers"`
		SignalsTopic   string   `yaml:"signals_topic" default:"chloe.signals"`
		DecisionsTopic string   `yaml:"decisions_topic" default:"chloe.decisions"`
		RequiredAcks   int      `yaml:"required_acks" default:"-1"`
		Compression    string   `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"chloe-decision"`
			Workers    int           `yaml:"workers" default:"4" validate:"gt=0"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"chloe.signals.dlq"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"chloe"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		TradesTable  string        `yaml:"trades_table" default:"closed_trades"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecution time.Duration `yaml:"max_execution_time" default:"5s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"chloe"`
		TTL      time.Duration `yaml:"ttl" default:"24h"`
	} `yaml:"redis"`
	History  HistoryConfig  `yaml:"history"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Risk     RiskConfig     `yaml:"risk"`
	Replay   ReplayConfig   `yaml:"replay"`
}

// HistoryConfig selects the trade-ledger backend the drift detector reads.
type HistoryConfig struct {
	Backend  string `yaml:"backend" default:"memory" validate:"oneof=memory clickhouse"`
	Lookback int    `yaml:"lookback" default:"300" validate:"gt=0"`
	Breaker  struct {
		MaxFailures uint32        `yaml:"max_failures" default:"3" validate:"gt=0"`
		OpenTimeout time.Duration `yaml:"open_timeout" default:"30s"`
	} `yaml:"breaker"`
}

// RiskConfig feeds the default pretrade risk gate.
type RiskConfig struct {
	MaxOpenPositions int     `yaml:"max_open_positions" default:"5" validate:"gte=0"`
	MaxSpreadBps     float64 `yaml:"max_spread_bps" default:"25" validate:"gte=0"`
	MaxLatencyMs     float64 `yaml:"max_latency_ms" default:"1500" validate:"gte=0"`
	AllowLong        bool    `yaml:"allow_long" default:"true"`
	AllowShort       bool    `yaml:"allow_short" default:"true"`
}

// ReplayConfig controls paper fills during deterministic replays.
type ReplayConfig struct {
	ScratchBand float64 `yaml:"scratch_band" default:"0.0005" validate:"gte=0"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	// yaml.v3 merges into existing maps, so collections are decoded from
	// empty and defaulted only when the file leaves them out
	c.Pipeline.Signals.Registry = nil
	c.Pipeline.Sizing.Bands = nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.Pipeline.Signals.SetDefaults()
	c.Pipeline.Sizing.SetDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("CHLOE_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("SIGNALS_TOPIC"); v != "" {
		c.Kafka.SignalsTopic = v
	}
	if v := os.Getenv("DECISIONS_TOPIC"); v != "" {
		c.Kafka.DecisionsTopic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("HISTORY_BACKEND"); v != "" {
		c.History.Backend = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &models.ConfigError{Key: fe.Namespace(), Reason: fmt.Sprintf("failed %q (%s)", fe.Tag(), fe.Param())}
		}
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return &models.ConfigError{Key: "kafka.brokers", Reason: "required when kafka is enabled"}
	}
	return c.Pipeline.Validate()
}
