// Package notifications publishes booking lifecycle events to Kafka and
// consumes them on the notifier side. Delivery is best effort: a failed
// publish is logged and swallowed, never surfaced to the caller, so a broker
// outage cannot fail a booking write.
package notifications

import (
	"time"

	"villabook/pkg/model"
)

const (
	// Topic carries every booking lifecycle event; the event type rides in
	// the message headers and payload.
	Topic    = "booking-events"
	DLQTopic = "booking-events.dlq"

	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"

	SchemaVersion = "1"
)

// BookingEvent is the wire payload for both event types. PreviousStatus and
// Warning are only set on status changes.
type BookingEvent struct {
	EventType       string    `json:"event_type"`
	BookingID       string    `json:"booking_id"`
	AgentID         string    `json:"agent_id"`
	GuestName       string    `json:"guest_name"`
	RentalType      string    `json:"rental_type"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Status          string    `json:"status"`
	PreviousStatus  string    `json:"previous_status,omitempty"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	Warning         string    `json:"warning,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func createdEvent(b *model.Booking) BookingEvent {
	return BookingEvent{
		EventType:  EventBookingCreated,
		BookingID:  b.ID,
		AgentID:    b.AgentID,
		GuestName:  b.GuestName,
		RentalType: b.RentalType,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		Status:     b.Status,
		OccurredAt: time.Now().UTC(),
	}
}

func statusChangedEvent(b *model.Booking, previousStatus, warning string) BookingEvent {
	return BookingEvent{
		EventType:       EventBookingStatusChanged,
		BookingID:       b.ID,
		AgentID:         b.AgentID,
		GuestName:       b.GuestName,
		RentalType:      b.RentalType,
		StartDate:       b.StartDate,
		EndDate:         b.EndDate,
		Status:          b.Status,
		PreviousStatus:  previousStatus,
		RejectionReason: b.RejectionReason,
		Warning:         warning,
		OccurredAt:      time.Now().UTC(),
	}
}
