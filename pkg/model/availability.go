package model

import "time"

// DateStatus classifies an unavailable date by the status of the booking
// that blocks it. When both a pending and an approved booking cover the same
// day, approved wins.
type DateStatus struct {
	Date   time.Time `json:"date"`
	Status string    `json:"status"`
}

// AvailabilitySnapshot is the derived view the calendar renders from. It is
// recomputed from the live booking set on every read and carries no lifecycle
// of its own.
type AvailabilitySnapshot struct {
	// PoolUnavailable holds every day a new pool booking may not start on:
	// days inside live pool bookings plus days inside live villa bookings,
	// excluding each villa booking's own checkout day.
	PoolUnavailable []DateStatus `json:"pool_unavailable_dates"`

	// VillaUnavailable holds every day a new villa booking may not start on:
	// days inside live villa bookings, excluding each booking's own checkout
	// day.
	VillaUnavailable []DateStatus `json:"villa_unavailable_dates"`

	// VillaStartDates and VillaEndDates are the raw start/end days of live
	// villa bookings; the conflict rules use them to treat checkout days
	// specially.
	VillaStartDates []time.Time `json:"villa_start_dates"`
	VillaEndDates   []time.Time `json:"villa_end_dates"`
}
