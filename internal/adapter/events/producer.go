// Package events publishes lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
)

// Publisher sends events keyed for per-entity ordering.
type Publisher interface {
	Publish(ctx context.Context, key string, event domain.Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer sends events to a Kafka topic.
type Producer struct {
	writer messageWriter
	log    *logger.Logger
}

// NewPublisher returns a Kafka producer, or a no-op publisher when no brokers
// are configured.
func NewPublisher(brokers []string, topic string, log *logger.Logger) Publisher {
	if len(brokers) == 0 || topic == "" {
		return Nop{}
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		log: log,
	}
}

// Publish sends one event. Events with the same key land on the same partition.
func (p *Producer) Publish(ctx context.Context, key string, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return domain.NewExternalCallError("events", "publish", err)
	}

	p.log.Debug("published event", "type", event.Type, "key", key)
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, string, domain.Event) error { return nil }

func (Nop) Close() error { return nil }
