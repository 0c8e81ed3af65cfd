// Package availability is the decision core of the booking engine: it derives
// the unavailable-date sets the calendar renders, evaluates whether a proposed
// booking may be created, and validates status transitions. Everything works
// over a snapshot of live bookings fetched fresh for the request; nothing here
// touches storage.
package availability

import (
	"sort"
	"time"

	"villabook/pkg/daterange"
	"villabook/pkg/model"
)

// Compute derives the availability snapshot from the given bookings. Rejected
// bookings are filtered out here, so callers may pass the full set.
//
// A day is unavailable for a new pool booking if it lies inside a live pool
// booking's interval or inside a live villa booking's interval, except each
// villa booking's own checkout day. A day is unavailable for a new villa
// booking if it lies inside a live villa booking's interval, again excluding
// that booking's own checkout day. When a pending and an approved booking
// cover the same day, the day is reported as approved.
func Compute(bookings []*model.Booking) *model.AvailabilitySnapshot {
	poolDays := map[time.Time]string{}
	villaDays := map[time.Time]string{}
	var villaStarts, villaEnds []time.Time

	for _, b := range bookings {
		if !b.IsLive() {
			continue
		}

		iv := b.Interval()
		switch b.RentalType {
		case model.RentalPool:
			iv.Each(func(d time.Time) {
				markDay(poolDays, d, b.Status)
			})

		case model.RentalVillaPool:
			villaStarts = append(villaStarts, iv.Start)
			villaEnds = append(villaEnds, iv.End)

			// Each stops before the end date, so the checkout day stays
			// free for both a new pool booking and a new villa check-in.
			iv.Each(func(d time.Time) {
				markDay(poolDays, d, b.Status)
				markDay(villaDays, d, b.Status)
			})
		}
	}

	return &model.AvailabilitySnapshot{
		PoolUnavailable:  sortedDateStatuses(poolDays),
		VillaUnavailable: sortedDateStatuses(villaDays),
		VillaStartDates:  sortedDates(villaStarts),
		VillaEndDates:    sortedDates(villaEnds),
	}
}

// markDay records d as unavailable; approved takes precedence over pending.
func markDay(days map[time.Time]string, d time.Time, status string) {
	if existing, ok := days[d]; ok && existing == model.StatusApproved {
		return
	}
	days[d] = status
}

func sortedDateStatuses(days map[time.Time]string) []model.DateStatus {
	out := make([]model.DateStatus, 0, len(days))
	for d, status := range days {
		out = append(out, model.DateStatus{Date: d, Status: status})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func sortedDates(dates []time.Time) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		out = append(out, daterange.Normalize(d))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}
