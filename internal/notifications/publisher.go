package notifications

import (
	"context"

	"villabook/pkg/kafka"
	"villabook/pkg/logger"
	"villabook/pkg/model"
)

// Publisher emits booking lifecycle events. Implementations must never
// return delivery failures to the caller.
type Publisher interface {
	BookingCreated(ctx context.Context, b *model.Booking)
	BookingStatusChanged(ctx context.Context, b *model.Booking, previousStatus, warning string)
}

type kafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
	source   string
}

func NewKafkaPublisher(producer *kafka.Producer, log *logger.Logger, source string) Publisher {
	return &kafkaPublisher{
		producer: producer,
		log:      log,
		source:   source,
	}
}

func (p *kafkaPublisher) BookingCreated(ctx context.Context, b *model.Booking) {
	p.publish(ctx, createdEvent(b))
}

func (p *kafkaPublisher) BookingStatusChanged(ctx context.Context, b *model.Booking, previousStatus, warning string) {
	p.publish(ctx, statusChangedEvent(b, previousStatus, warning))
}

func (p *kafkaPublisher) publish(ctx context.Context, event BookingEvent) {
	msg := kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventID("").
		WithEventType(event.EventType).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Warn("Failed to publish booking event",
			"event_type", event.EventType,
			"booking_id", event.BookingID,
			"error", err,
		)
	}
}

// NoopPublisher discards all events. Used when Kafka is not configured and
// in tests.
type NoopPublisher struct{}

func (NoopPublisher) BookingCreated(context.Context, *model.Booking)                  {}
func (NoopPublisher) BookingStatusChanged(context.Context, *model.Booking, string, string) {}
