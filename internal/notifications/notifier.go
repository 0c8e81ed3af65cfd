package notifications

import (
	"context"
	"fmt"

	"villabook/pkg/kafka"
	"villabook/pkg/logger"
)

// Notifier delivers a booking event to the booking's creator. Actual
// channels (email, SMS) live behind this interface; the engine only knows
// how to hand the event over.
type Notifier interface {
	Notify(ctx context.Context, event BookingEvent) error
}

// ConsoleNotifier writes notifications to the log. It stands in for a real
// delivery channel in development and keeps the consumer loop exercised.
type ConsoleNotifier struct {
	log *logger.Logger
}

func NewConsoleNotifier(log *logger.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{log: log}
}

func (n *ConsoleNotifier) Notify(_ context.Context, event BookingEvent) error {
	switch event.EventType {
	case EventBookingCreated:
		n.log.Info("Notify agent: booking created",
			"agent_id", event.AgentID,
			"booking_id", event.BookingID,
			"rental_type", event.RentalType,
			"start_date", event.StartDate.Format("2006-01-02"),
			"status", event.Status,
		)
	case EventBookingStatusChanged:
		n.log.Info("Notify agent: booking status changed",
			"agent_id", event.AgentID,
			"booking_id", event.BookingID,
			"previous_status", event.PreviousStatus,
			"status", event.Status,
			"rejection_reason", event.RejectionReason,
			"warning", event.Warning,
		)
	default:
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
	return nil
}

// Handler adapts a Notifier into a Kafka message handler. Undecodable
// payloads are permanent failures and go straight to the DLQ.
func Handler(notifier Notifier) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event BookingEvent
		if err := msg.DecodeValue(&event); err != nil {
			return kafka.Permanent(fmt.Errorf("decode booking event: %w", err))
		}
		return notifier.Notify(ctx, event)
	}
}
