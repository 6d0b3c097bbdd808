// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	BrokerRabbitMQ = "rabbitmq"
	BrokerKafka    = "kafka"
)

type Config struct {
	DB     DBConfig
	Events EventsConfig
	Redis  RedisConfig
	HTTP   HTTPConfig
}

type DBConfig struct {
	URL         string        `envconfig:"MARKET_DB_URL" required:"true"`
	LockTimeout time.Duration `envconfig:"DB_LOCK_TIMEOUT" default:"3s"`
}

type EventsConfig struct {
	Broker       string        `envconfig:"EVENT_BROKER" default:"rabbitmq"`
	RabbitMQURL  string        `envconfig:"RABBITMQ_URL"`
	KafkaBrokers []string      `envconfig:"KAFKA_BROKERS"`
	Exchange     string        `envconfig:"EVENTS_EXCHANGE" default:"market.events"`
	BatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"10"`
	Interval     time.Duration `envconfig:"OUTBOX_INTERVAL" default:"1s"`
}

type RedisConfig struct {
	// Addr is optional; without it carts live in memory and receipts are not cached
	Addr       string        `envconfig:"REDIS_URL"`
	ReceiptTTL time.Duration `envconfig:"RECEIPT_CACHE_TTL" default:"24h"`
}

type HTTPConfig struct {
	Addr string `envconfig:"HTTP_ADDR" default:":8080"`
}

// Load reads .env.local and .env when present (local overrides .env), then
// processes the environment
func Load() (Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that depend on each other
func (c Config) Validate() error {
	var errList []error
	if c.DB.URL == "" {
		errList = append(errList, errors.New("MARKET_DB_URL must not be empty"))
	}
	switch c.Events.Broker {
	case BrokerRabbitMQ:
		if c.Events.RabbitMQURL == "" {
			errList = append(errList, errors.New("RABBITMQ_URL is required when EVENT_BROKER=rabbitmq"))
		}
	case BrokerKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			errList = append(errList, errors.New("KAFKA_BROKERS is required when EVENT_BROKER=kafka"))
		}
	default:
		errList = append(errList, fmt.Errorf("unknown EVENT_BROKER %q", c.Events.Broker))
	}
	if c.Events.BatchSize <= 0 {
		errList = append(errList, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.Events.Interval <= 0 {
		errList = append(errList, errors.New("OUTBOX_INTERVAL must be positive"))
	}
	if c.Events.Exchange == "" {
		errList = append(errList, errors.New("EVENTS_EXCHANGE must not be empty"))
	}
	return errors.Join(errList...)
}
