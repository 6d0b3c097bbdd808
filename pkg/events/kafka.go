package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher implements EventPublisher on Kafka.
// The exchange becomes the topic and the routing key becomes the message key.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher writing to the given brokers
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish writes one message and waits for the acks
func (p *KafkaPublisher) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: exchange,
		Key:   []byte(routingKey),
		Value: body,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/x-protobuf")},
		},
	})
}

// Close flushes pending writes
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
