package availability

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "villabook/pkg/errors"
	"villabook/pkg/model"
)

// TransitionResult describes what a validated status change should persist.
type TransitionResult struct {
	// Status is the status to store.
	Status string

	// RejectionReason is the reason to store: the trimmed caller-supplied
	// reason when rejecting, empty otherwise.
	RejectionReason string

	// NoOp is set when the booking already has the requested status; the
	// caller should succeed without writing anything.
	NoOp bool

	// Collisions lists live bookings that now share occupied days with this
	// one, populated when a rejected booking re-enters the live set. The
	// transition still succeeds; the caller surfaces these as a warning.
	Collisions []*model.Booking
}

// Warning renders the re-entry collision list as a human-readable message,
// or returns "" when there is nothing to warn about.
func (r *TransitionResult) Warning() string {
	if len(r.Collisions) == 0 {
		return ""
	}
	ids := make([]string, 0, len(r.Collisions))
	for _, b := range r.Collisions {
		ids = append(ids, b.ID)
	}
	return fmt.Sprintf("Booking now overlaps %d existing booking(s): %s",
		len(r.Collisions), strings.Join(ids, ", "))
}

// EvaluateTransition validates a status change for the booking. All six
// transitions between pending, approved and rejected are legal; rejecting
// requires a non-empty reason, and moving away from rejected clears it.
//
// Moving a rejected booking back into the live set does not re-run conflict
// resolution — bookings created in the meantime may now collide. Those are
// reported in Collisions as a non-blocking warning, never as a rejection.
func EvaluateTransition(b *model.Booking, newStatus, reason string, bookings []*model.Booking) (*TransitionResult, error) {
	if newStatus == b.Status {
		return &TransitionResult{
			Status:          b.Status,
			RejectionReason: b.RejectionReason,
			NoOp:            true,
		}, nil
	}

	if newStatus == model.StatusRejected {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return nil, apperrors.New(
				apperrors.CodeMissingRejectionReason,
				"A rejection reason is required when rejecting a booking",
				http.StatusBadRequest,
			)
		}
		return &TransitionResult{
			Status:          model.StatusRejected,
			RejectionReason: reason,
		}, nil
	}

	result := &TransitionResult{Status: newStatus}

	if b.Status == model.StatusRejected {
		result.Collisions = collidingBookings(b, bookings)
	}

	return result, nil
}

// collidingBookings returns live bookings that share at least one occupied
// day with b. Sharing only a checkout boundary does not count.
func collidingBookings(b *model.Booking, bookings []*model.Booking) []*model.Booking {
	iv := b.Interval()

	var out []*model.Booking
	for _, other := range bookings {
		if !other.IsLive() || other.ID == b.ID {
			continue
		}
		otherIv := other.Interval()
		if iv.Start.Before(otherIv.End) && otherIv.Start.Before(iv.End) {
			out = append(out, other)
		}
	}
	return out
}
