package model

import (
	"time"

	"villabook/pkg/daterange"
)

// Rental types for the two bookable units of the property. A villa_pool
// booking occupies the whole property; a pool booking occupies only the pool
// for a single day.
const (
	RentalPool      = "pool"
	RentalVillaPool = "villa_pool"
)

// Booking lifecycle statuses. None of them is terminal: an admin may move a
// booking freely between all three. A rejected booking stops counting toward
// availability until it is moved back.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

type Booking struct {
	ID              string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	AgentID         string    `json:"agent_id" bson:"agent_id" validate:"required"`
	GuestName       string    `json:"guest_name" bson:"guest_name" validate:"required,min=2,max=100"`
	PhoneNumber     string    `json:"phone_number" bson:"phone_number" validate:"required,e164"`
	Adults          int       `json:"adults" bson:"adults" validate:"required,min=1,max=50"`
	Children        int       `json:"children" bson:"children" validate:"min=0,max=50"`
	GuestCount      int       `json:"guest_count" bson:"guest_count" validate:"required,min=1,max=100"`
	RentalType      string    `json:"rental_type" bson:"rental_type" validate:"required,oneof=pool villa_pool"`
	StartDate       time.Time `json:"start_date" bson:"start_date" validate:"required"`
	EndDate         time.Time `json:"end_date" bson:"end_date" validate:"required"`
	Duration        int       `json:"duration" bson:"duration" validate:"min=0"`
	Amount          float64   `json:"amount" bson:"amount" validate:"required,gt=0"`
	Details         string    `json:"details,omitempty" bson:"details" validate:"max=1000"`
	Status          string    `json:"status" bson:"status" validate:"required,oneof=pending approved rejected"`
	RejectionReason string    `json:"rejection_reason,omitempty" bson:"rejection_reason"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// BookingUpdate carries partial edits to a booking's guest and date fields.
// Status is not editable here; status changes go through their own operation.
type BookingUpdate struct {
	GuestName   string     `json:"guest_name,omitempty" validate:"omitempty,min=2,max=100"`
	PhoneNumber string     `json:"phone_number,omitempty" validate:"omitempty,e164"`
	Adults      *int       `json:"adults,omitempty" validate:"omitempty,min=1,max=50"`
	Children    *int       `json:"children,omitempty" validate:"omitempty,min=0,max=50"`
	GuestCount  *int       `json:"guest_count,omitempty" validate:"omitempty,min=1,max=100"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Amount      *float64   `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Details     *string    `json:"details,omitempty" validate:"omitempty,max=1000"`
}

// StatusChange is the payload for a status transition request.
type StatusChange struct {
	Status          string `json:"status" validate:"required,oneof=pending approved rejected"`
	RejectionReason string `json:"rejection_reason,omitempty" validate:"max=500"`
}

// IsLive reports whether the booking counts toward availability and conflict
// checks. Rejected bookings are invisible to both.
func (b *Booking) IsLive() bool {
	return b.Status != StatusRejected
}

// Interval returns the booking's occupied range as a half-open day interval.
func (b *Booking) Interval() daterange.Interval {
	return daterange.New(b.StartDate, b.EndDate)
}
