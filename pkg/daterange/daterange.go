// Package daterange provides half-open day intervals [start, end) at UTC
// day granularity. Every date that enters the package is truncated to its
// UTC calendar day, so comparisons never drift across timezones.
package daterange

import "time"

const Day = 24 * time.Hour

// Normalize truncates t to midnight UTC of its calendar day.
func Normalize(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays returns t shifted by n calendar days, normalized.
func AddDays(t time.Time, n int) time.Time {
	return Normalize(t).AddDate(0, 0, n)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return Normalize(a).Equal(Normalize(b))
}

// Interval is a half-open day range [Start, End). The End day itself is not
// occupied, which is what allows a checkout and a new check-in to share a
// calendar day.
type Interval struct {
	Start time.Time
	End   time.Time
}

// New builds a normalized interval from two instants.
func New(start, end time.Time) Interval {
	return Interval{Start: Normalize(start), End: Normalize(end)}
}

// Valid reports whether the interval holds at least one day (End > Start).
func (iv Interval) Valid() bool {
	return iv.End.After(iv.Start)
}

// Days returns the number of occupied days, i.e. End minus Start in days.
func (iv Interval) Days() int {
	return int(iv.End.Sub(iv.Start) / Day)
}

// Contains reports whether d is inside the interval: Start <= d < End.
func (iv Interval) Contains(d time.Time) bool {
	d = Normalize(d)
	return !d.Before(iv.Start) && d.Before(iv.End)
}

// Interior reports whether d is strictly between the endpoints:
// Start < d < End. Neither the check-in day nor the checkout day is interior.
func (iv Interval) Interior(d time.Time) bool {
	d = Normalize(d)
	return d.After(iv.Start) && d.Before(iv.End)
}

// Each calls fn for every day in [Start, End). The end day is excluded.
func (iv Interval) Each(fn func(d time.Time)) {
	for d := iv.Start; d.Before(iv.End); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}

// Dates returns every day in [Start, End) as a slice.
func (iv Interval) Dates() []time.Time {
	if !iv.Valid() {
		return nil
	}
	out := make([]time.Time, 0, iv.Days())
	iv.Each(func(d time.Time) {
		out = append(out, d)
	})
	return out
}
