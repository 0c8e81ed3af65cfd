package availability

import (
	"fmt"
	"net/http"
	"time"

	"villabook/pkg/daterange"
	apperrors "villabook/pkg/errors"
	"villabook/pkg/model"
)

// Candidate is a proposed booking range to evaluate against the live set.
// ExcludeID, when set, skips that booking during evaluation so an update can
// be re-checked without colliding with itself.
type Candidate struct {
	RentalType string
	StartDate  time.Time
	EndDate    time.Time
	ExcludeID  string
}

// EvaluateCreate decides whether the candidate range may be booked. It
// returns the normalized interval on accept, or a coded AppError on reject.
//
// Rules, in order:
//  1. Normalize both dates to UTC midnight. A pool booking occupies exactly
//     one day, so its end date is derived as start+1 regardless of input.
//     A villa candidate with end <= start is INVALID_RANGE.
//  2. No two live bookings may start on the same day, regardless of rental
//     type: START_DATE_TAKEN.
//  3. Every day the candidate would occupy must be free. A day is occupied by
//     another live booking when it falls in [otherStart, otherEnd) — the
//     checkout day itself is never occupied, which is what allows a new
//     check-in on another booking's checkout day. Any hit: DATE_RANGE_BLOCKED
//     with the number of colliding bookings.
//
// Rule 3 covers both resource pairings in one pass: a pool day blocks a villa
// range the same way a villa's interior days block a pool start.
func EvaluateCreate(c Candidate, bookings []*model.Booking) (daterange.Interval, error) {
	start := daterange.Normalize(c.StartDate)

	var iv daterange.Interval
	if c.RentalType == model.RentalPool {
		iv = daterange.Interval{Start: start, End: daterange.AddDays(start, 1)}
	} else {
		iv = daterange.New(c.StartDate, c.EndDate)
		if !iv.Valid() {
			return daterange.Interval{}, apperrors.New(
				apperrors.CodeInvalidRange,
				"End date must be after start date",
				http.StatusBadRequest,
			)
		}
	}

	live := make([]*model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.IsLive() && b.ID != c.ExcludeID {
			live = append(live, b)
		}
	}

	for _, b := range live {
		if daterange.SameDay(iv.Start, b.StartDate) {
			return daterange.Interval{}, apperrors.Conflict(
				apperrors.CodeStartDateTaken,
				fmt.Sprintf("Another booking already starts on %s", iv.Start.Format("2006-01-02")),
			)
		}
	}

	colliding := map[string]bool{}
	iv.Each(func(d time.Time) {
		for _, b := range live {
			if b.Interval().Contains(d) {
				colliding[b.ID] = true
			}
		}
	})
	if len(colliding) > 0 {
		return daterange.Interval{}, apperrors.Conflict(
			apperrors.CodeDateRangeBlocked,
			fmt.Sprintf("Requested dates collide with %d existing booking(s)", len(colliding)),
		)
	}

	return iv, nil
}
