package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/floroz/bazaar/internal/adapters/database"
	"github.com/floroz/bazaar/internal/config"
	pkgdb "github.com/floroz/bazaar/pkg/database"
	pkgevents "github.com/floroz/bazaar/pkg/events"
)

// publisher is an EventPublisher that owns a broker resource
type publisher interface {
	pkgevents.EventPublisher
	Close() error
}

// MarketEventsProducer relays market events from the outbox to the configured broker
type MarketEventsProducer struct {
	relay     *pkgevents.OutboxRelay
	publisher publisher
	conn      *amqp.Connection
}

// NewMarketEventsProducer connects to the broker named in cfg and builds the relay
func NewMarketEventsProducer(pool *pgxpool.Pool, dbCfg config.DBConfig, cfg config.EventsConfig, logger *slog.Logger) (*MarketEventsProducer, error) {
	p := &MarketEventsProducer{}

	switch cfg.Broker {
	case config.BrokerKafka:
		p.publisher = pkgevents.NewKafkaPublisher(cfg.KafkaBrokers)
		logger.Info("Kafka publisher ready", "brokers", cfg.KafkaBrokers)
	case config.BrokerRabbitMQ:
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		pub, err := pkgevents.NewRabbitMQPublisher(conn, cfg.Exchange)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
		p.conn = conn
		p.publisher = pub
		logger.Info("RabbitMQ Connected")
	default:
		return nil, fmt.Errorf("unknown event broker %q", cfg.Broker)
	}

	txManager := pkgdb.NewPostgresTransactionManager(pool, dbCfg.LockTimeout)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	p.relay = pkgevents.NewOutboxRelay(
		outboxRepo,
		p.publisher,
		txManager,
		cfg.BatchSize,
		cfg.Interval,
		cfg.Exchange,
		logger,
	)
	return p, nil
}

// Run starts the relay loop
func (p *MarketEventsProducer) Run(ctx context.Context) error {
	return p.relay.Run(ctx)
}

// Close releases the publisher and its connection
func (p *MarketEventsProducer) Close() error {
	err := p.publisher.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}
