package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"villabook/internal/bookings/availability"
	bookingserrors "villabook/internal/bookings/errors"
	"villabook/internal/bookings/repository"
	"villabook/internal/bookings/validator"
	"villabook/internal/notifications"
	"villabook/pkg/config"
	"villabook/pkg/daterange"
	apperrors "villabook/pkg/errors"
	"villabook/pkg/middleware"
	"villabook/pkg/model"
	"villabook/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// ListOptions narrows GetAll. ForCalendar lifts the agent ownership filter
// so any authenticated caller can render the shared calendar.
type ListOptions struct {
	Status      string
	ForCalendar bool
	Limit       int
	Offset      int64
}

type BookingService interface {
	Create(ctx context.Context, caller middleware.Caller, booking *model.Booking) error
	GetByID(ctx context.Context, caller middleware.Caller, id string) (*model.Booking, error)
	GetAll(ctx context.Context, caller middleware.Caller, opts ListOptions) ([]*model.Booking, int64, error)
	GetAvailability(ctx context.Context) (*model.AvailabilitySnapshot, error)
	Update(ctx context.Context, caller middleware.Caller, id string, updates *model.BookingUpdate) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id string, change *model.StatusChange) (warning string, err error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, from, to *time.Time) (*model.BookingStats, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.BookingLockRepository
	validator *validator.BookingValidator
	publisher notifications.Publisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.BookingLockRepository,
	validator *validator.BookingValidator,
	publisher notifications.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Create evaluates the candidate against a fresh live set and persists it.
// The evaluation and insert run inside one transaction, guarded by an
// advisory lock on the start day, so two concurrent requests for the same
// day cannot both pass the conflict check.
func (s *bookingService) Create(ctx context.Context, caller middleware.Caller, booking *model.Booking) error {
	s.applyDefaults(caller, booking)
	s.sanitize(booking)
	s.normalizeDates(booking)
	if err := s.validate(booking); err != nil {
		return err
	}

	lockID, err := s.acquireStartDayLock(ctx, booking.StartDate)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.releaseStartDayLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		live, err := s.repo.FindLive(sessCtx)
		if err != nil {
			return apperrors.Internal("Failed to read live bookings", err)
		}

		iv, err := availability.EvaluateCreate(availability.Candidate{
			RentalType: booking.RentalType,
			StartDate:  booking.StartDate,
			EndDate:    booking.EndDate,
		}, live)
		if err != nil {
			return err
		}

		booking.StartDate = iv.Start
		booking.EndDate = iv.End
		booking.Duration = iv.Days()

		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking", "error", err)
		return err
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"agent_id", booking.AgentID,
		"rental_type", booking.RentalType,
		"start_date", booking.StartDate.Format("2006-01-02"),
		"status", booking.Status,
	)
	s.publisher.BookingCreated(ctx, booking)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, caller middleware.Caller, id string) (*model.Booking, error) {
	booking, err := s.findExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	if !caller.IsAdmin() && booking.AgentID != caller.ID {
		return nil, apperrors.Forbidden("You may only view your own bookings")
	}

	return booking, nil
}

func (s *bookingService) GetAll(ctx context.Context, caller middleware.Caller, opts ListOptions) ([]*model.Booking, int64, error) {
	filter := repository.BookingFilter{Status: opts.Status}
	if !caller.IsAdmin() && !opts.ForCalendar {
		filter.AgentID = caller.ID
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindAll(ctx, filter, opts.Limit, opts.Offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// GetAvailability recomputes the calendar snapshot from a fresh read of the
// live set; nothing is cached between requests.
func (s *bookingService) GetAvailability(ctx context.Context) (*model.AvailabilitySnapshot, error) {
	live, err := s.repo.FindLive(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to read live bookings", "error", err)
		return nil, apperrors.Internal("Failed to compute availability", err)
	}

	return availability.Compute(live), nil
}

func (s *bookingService) Update(ctx context.Context, caller middleware.Caller, id string, updates *model.BookingUpdate) (*model.Booking, error) {
	existing, err := s.findExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	if !caller.IsAdmin() && existing.AgentID != caller.ID {
		return nil, apperrors.Forbidden("You may only edit your own bookings")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Booking update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeBookingUpdates(existing, updates)
	s.sanitize(merged)
	s.normalizeDates(merged)
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	datesChanged := !merged.StartDate.Equal(existing.StartDate) || !merged.EndDate.Equal(existing.EndDate)

	if !datesChanged {
		if _, err := s.repo.Update(ctx, id, merged); err != nil {
			s.cfg.Log.Error("Failed to update booking", "id", id, "error", err)
			return nil, apperrors.Internal("Failed to update booking", err)
		}
		s.cfg.Log.Info("Booking updated successfully", "id", id)
		return merged, nil
	}

	// Date edits re-run the conflict evaluation against everyone else,
	// under the same lock-and-transaction guard as a create.
	lockID, err := s.acquireStartDayLock(ctx, merged.StartDate)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseStartDayLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		live, err := s.repo.FindLive(sessCtx)
		if err != nil {
			return apperrors.Internal("Failed to read live bookings", err)
		}

		iv, err := availability.EvaluateCreate(availability.Candidate{
			RentalType: merged.RentalType,
			StartDate:  merged.StartDate,
			EndDate:    merged.EndDate,
			ExcludeID:  id,
		}, live)
		if err != nil {
			return err
		}

		merged.StartDate = iv.Start
		merged.EndDate = iv.End
		merged.Duration = iv.Days()

		if _, err := s.repo.Update(sessCtx, id, merged); err != nil {
			return apperrors.Internal("Failed to update booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update booking dates", "id", id, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking updated successfully", "id", id, "dates_changed", true)
	return merged, nil
}

// UpdateStatus validates and applies a status transition. The returned
// warning is non-empty when a rejected booking re-entered the live set on
// top of bookings created in the meantime; the transition itself still
// succeeds.
func (s *bookingService) UpdateStatus(ctx context.Context, id string, change *model.StatusChange) (string, error) {
	if err := s.validator.ValidateStatusChange(change); err != nil {
		return "", apperrors.Validation("Invalid status change", map[string]any{"error": err.Error()})
	}

	booking, err := s.findExisting(ctx, id)
	if err != nil {
		return "", err
	}

	live, err := s.repo.FindLive(ctx)
	if err != nil {
		return "", apperrors.Internal("Failed to read live bookings", err)
	}

	result, err := availability.EvaluateTransition(booking, change.Status, change.RejectionReason, live)
	if err != nil {
		return "", err
	}

	if result.NoOp {
		s.cfg.Log.Debug("Status transition is a no-op", "id", id, "status", change.Status)
		return "", nil
	}

	if err := s.repo.UpdateStatus(ctx, id, result.Status, result.RejectionReason); err != nil {
		s.cfg.Log.Error("Failed to update booking status", "id", id, "error", err)
		return "", apperrors.Internal("Failed to update booking status", err)
	}

	warning := result.Warning()
	if warning != "" {
		s.cfg.Log.Warn("Booking re-entered the live set with collisions",
			"id", id,
			"colliding", len(result.Collisions),
		)
	}

	previousStatus := booking.Status
	booking.Status = result.Status
	booking.RejectionReason = result.RejectionReason

	s.cfg.Log.Info("Booking status updated",
		"id", id,
		"from", previousStatus,
		"to", result.Status,
	)
	s.publisher.BookingStatusChanged(ctx, booking, previousStatus, warning)
	return warning, nil
}

func (s *bookingService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid booking ID format")
		}
		return apperrors.Internal("Failed to delete booking", err)
	}

	s.cfg.Log.Info("Booking deleted successfully", "id", id)
	return nil
}

func (s *bookingService) Stats(ctx context.Context, from, to *time.Time) (*model.BookingStats, error) {
	stats, err := s.repo.Stats(ctx, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to compute booking stats", "error", err)
		return nil, apperrors.Internal("Failed to compute booking statistics", err)
	}
	return stats, nil
}

// --- Helpers ---

func (s *bookingService) findExisting(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) applyDefaults(caller middleware.Caller, b *model.Booking) {
	b.AgentID = caller.ID
	if caller.IsAdmin() {
		b.Status = model.StatusApproved
	} else {
		b.Status = model.StatusPending
	}
	b.RejectionReason = ""
	if b.GuestCount == 0 {
		b.GuestCount = b.Adults + b.Children
	}
}

func (s *bookingService) sanitize(b *model.Booking) {
	b.GuestName = sanitizer.NormalizeGuestName(b.GuestName)
	b.Details = sanitizer.NormalizeDetails(b.Details)
	if normalized := sanitizer.NormalizePhone(b.PhoneNumber); normalized != "" {
		b.PhoneNumber = normalized
	}
}

// normalizeDates truncates the candidate dates to UTC days and derives the
// pool end date, so validation and duration always see the stored shape.
// Range validity itself is the conflict evaluation's call.
func (s *bookingService) normalizeDates(b *model.Booking) {
	b.StartDate = daterange.Normalize(b.StartDate)
	if b.RentalType == model.RentalPool {
		b.EndDate = daterange.AddDays(b.StartDate, 1)
	} else {
		b.EndDate = daterange.Normalize(b.EndDate)
	}
	if iv := b.Interval(); iv.Valid() {
		b.Duration = iv.Days()
	} else {
		b.Duration = 0
	}
}

func (s *bookingService) mergeBookingUpdates(existing *model.Booking, updates *model.BookingUpdate) *model.Booking {
	merged := *existing

	if updates.GuestName != "" {
		merged.GuestName = updates.GuestName
	}
	if updates.PhoneNumber != "" {
		merged.PhoneNumber = updates.PhoneNumber
	}
	if updates.Adults != nil {
		merged.Adults = *updates.Adults
	}
	if updates.Children != nil {
		merged.Children = *updates.Children
	}
	if updates.GuestCount != nil {
		merged.GuestCount = *updates.GuestCount
	} else if updates.Adults != nil || updates.Children != nil {
		merged.GuestCount = merged.Adults + merged.Children
	}
	if updates.StartDate != nil {
		merged.StartDate = *updates.StartDate
	}
	if updates.EndDate != nil {
		merged.EndDate = *updates.EndDate
	}
	if updates.Amount != nil {
		merged.Amount = *updates.Amount
	}
	if updates.Details != nil {
		merged.Details = *updates.Details
	}

	return &merged
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// acquireStartDayLock creates an advisory lock for the candidate's start day.
// Returns a conflict error when another request holds the lock.
func (s *bookingService) acquireStartDayLock(ctx context.Context, startDate time.Time) (string, error) {
	lockID := fmt.Sprintf("start:%s", daterange.Normalize(startDate).Format("2006-01-02"))

	lock := &model.BookingLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.BookingLockTTL),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict(apperrors.CodeConflict,
				"This date is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire booking lock", err)
	}

	return lockID, nil
}

func (s *bookingService) releaseStartDayLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}
