package events

import (
	"context"
	"fmt"

	"ecovolt/pkg/kafka"
	"ecovolt/pkg/model"
)

const (
	schemaVersion = "1"
	source        = "ecovolt"
)

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher emits reservation lifecycle events keyed by reservation id,
// so every event of one reservation lands on the same partition in order.
type KafkaPublisher struct {
	producer MessagePublisher
}

func NewKafkaPublisher(producer MessagePublisher) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event model.ReservationEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.ReservationID).
		WithValue(event).
		WithEventType(event.Type).
		WithSchemaVersion(schemaVersion).
		WithSource(source).
		WithCorrelationID(correlationID(ctx)).
		Build()
	if err != nil {
		return fmt.Errorf("build %s event: %w", event.Type, err)
	}
	return p.producer.Publish(ctx, msg)
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, model.ReservationEvent) error {
	return nil
}
