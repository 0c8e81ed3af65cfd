package model

import "time"

// BookingLock is an advisory lock document guarding booking creation for a
// single start day. Inserting it fails with a duplicate key error while
// another request holds the same day, which closes the window between reading
// the live booking set and persisting a new booking. The TTL index on
// expires_at reaps locks whose holders died.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
