package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"furniture-order-service/internal/infra"

	"github.com/segmentio/kafka-go"
)

const batchTimeout = 10 * time.Millisecond

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes order events to a single topic with the event type in a header.
type Publisher struct {
	w writer
}

var _ infra.EventPublisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	return &Publisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		// Events are written one at a time on the request path.
		BatchTimeout: batchTimeout,
		WriteTimeout: 5 * time.Second,
	}}, nil
}

func (p *Publisher) Publish(ctx context.Context, eventType string, data any) error {
	value, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s: %w", eventType, err)
	}
	msg := kafka.Message{
		Value:   value,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(eventType)}},
	}
	if k, ok := data.(interface{ PartitionKey() string }); ok {
		msg.Key = []byte(k.PartitionKey())
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", eventType, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}
