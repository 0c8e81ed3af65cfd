package service

import (
	"context"
	"errors"
	"testing"
	"time"

	bookingserrors "villabook/internal/bookings/errors"
	"villabook/internal/bookings/repository"
	"villabook/internal/bookings/validator"
	"villabook/internal/notifications"
	"villabook/pkg/config"
	mongotx "villabook/pkg/db/mongo"
	apperrors "villabook/pkg/errors"
	"villabook/pkg/logger"
	"villabook/pkg/middleware"
	"villabook/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

type mockBookingRepo struct {
	createFunc       func(ctx context.Context, b *model.Booking) error
	findByIDFunc     func(ctx context.Context, id string) (*model.Booking, error)
	findAllFunc      func(ctx context.Context, filter repository.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	countFunc        func(ctx context.Context, filter repository.BookingFilter) (int64, error)
	findLiveFunc     func(ctx context.Context) ([]*model.Booking, error)
	updateFunc       func(ctx context.Context, id string, b *model.Booking) (*mongo.UpdateResult, error)
	updateStatusFunc func(ctx context.Context, id, status, reason string) error
	deleteFunc       func(ctx context.Context, id string) error
	statsFunc        func(ctx context.Context, from, to *time.Time) (*model.BookingStats, error)
}

func (m *mockBookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, b)
	}
	return nil
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepo) FindAll(ctx context.Context, filter repository.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, filter, limit, offset)
	}
	return nil, nil
}

func (m *mockBookingRepo) Count(ctx context.Context, filter repository.BookingFilter) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockBookingRepo) FindLive(ctx context.Context) ([]*model.Booking, error) {
	if m.findLiveFunc != nil {
		return m.findLiveFunc(ctx)
	}
	return nil, nil
}

func (m *mockBookingRepo) Update(ctx context.Context, id string, b *model.Booking) (*mongo.UpdateResult, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, b)
	}
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}

func (m *mockBookingRepo) UpdateStatus(ctx context.Context, id, status, reason string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status, reason)
	}
	return nil
}

func (m *mockBookingRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockBookingRepo) Stats(ctx context.Context, from, to *time.Time) (*model.BookingStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx, from, to)
	}
	return &model.BookingStats{}, nil
}

func (m *mockBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockLockRepo struct {
	createFunc func(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error)
	deleted    []string
}

func (m *mockLockRepo) Create(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, lock)
	}
	return lock, nil
}

func (m *mockLockRepo) Delete(ctx context.Context, lockID string) error {
	m.deleted = append(m.deleted, lockID)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Log:            logger.New(logger.Config{Level: "error", Format: "json"}),
		BookingLockTTL: 30 * time.Second,
	}
}

func newService(repo *mockBookingRepo, locks *mockLockRepo) BookingService {
	cfg := testConfig()
	return NewBookingService(repo, locks, validator.NewBookingValidator(cfg.Log), notifications.NoopPublisher{}, cfg)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newBooking(rentalType string, start, end time.Time) *model.Booking {
	return &model.Booking{
		GuestName:   "Dana Cohen",
		PhoneNumber: "+972541234567",
		Adults:      2,
		Children:    0,
		RentalType:  rentalType,
		StartDate:   start,
		EndDate:     end,
		Amount:      1200,
	}
}

var (
	agent = middleware.Caller{ID: "agent-1", Role: middleware.RoleAgent}
	admin = middleware.Caller{ID: "admin-1", Role: middleware.RoleAdmin}
)

func TestCreate(t *testing.T) {
	t.Run("agent booking starts pending", func(t *testing.T) {
		var created *model.Booking
		repo := &mockBookingRepo{
			createFunc: func(_ context.Context, b *model.Booking) error {
				created = b
				return nil
			},
		}
		locks := &mockLockRepo{}

		b := newBooking(model.RentalVillaPool, day(2024, 8, 1), day(2024, 8, 3))
		if err := newService(repo, locks).Create(context.Background(), agent, b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if created == nil {
			t.Fatal("expected booking to be persisted")
		}
		if created.Status != model.StatusPending {
			t.Errorf("status = %s, want pending", created.Status)
		}
		if created.AgentID != "agent-1" {
			t.Errorf("agent_id = %s, want agent-1", created.AgentID)
		}
		if created.Duration != 2 {
			t.Errorf("duration = %d, want 2", created.Duration)
		}
		if created.GuestCount != 2 {
			t.Errorf("guest_count = %d, want 2", created.GuestCount)
		}
		if len(locks.deleted) != 1 {
			t.Errorf("lock released %d times, want 1", len(locks.deleted))
		}
	})

	t.Run("admin booking starts approved", func(t *testing.T) {
		var created *model.Booking
		repo := &mockBookingRepo{
			createFunc: func(_ context.Context, b *model.Booking) error {
				created = b
				return nil
			},
		}

		b := newBooking(model.RentalPool, day(2024, 8, 1), time.Time{})
		if err := newService(repo, &mockLockRepo{}).Create(context.Background(), admin, b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if created.Status != model.StatusApproved {
			t.Errorf("status = %s, want approved", created.Status)
		}
		if !created.EndDate.Equal(day(2024, 8, 2)) {
			t.Errorf("end date = %v, want start+1", created.EndDate)
		}
		if created.Duration != 1 {
			t.Errorf("duration = %d, want 1", created.Duration)
		}
	})

	t.Run("conflicting dates are rejected without persisting", func(t *testing.T) {
		createCalled := false
		repo := &mockBookingRepo{
			findLiveFunc: func(context.Context) ([]*model.Booking, error) {
				existing := newBooking(model.RentalVillaPool, day(2024, 8, 1), day(2024, 8, 5))
				existing.ID = "other"
				existing.Status = model.StatusApproved
				return []*model.Booking{existing}, nil
			},
			createFunc: func(context.Context, *model.Booking) error {
				createCalled = true
				return nil
			},
		}
		locks := &mockLockRepo{}

		b := newBooking(model.RentalPool, day(2024, 8, 3), time.Time{})
		err := newService(repo, locks).Create(context.Background(), agent, b)

		appErr := apperrors.AsAppError(err)
		if appErr.Code != apperrors.CodeDateRangeBlocked {
			t.Errorf("code = %s, want DATE_RANGE_BLOCKED", appErr.Code)
		}
		if createCalled {
			t.Error("booking must not be persisted on conflict")
		}
		if len(locks.deleted) != 1 {
			t.Error("lock must be released on conflict")
		}
	})

	t.Run("held lock surfaces as conflict", func(t *testing.T) {
		locks := &mockLockRepo{
			createFunc: func(context.Context, *model.BookingLock) (*model.BookingLock, error) {
				return nil, mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
			},
		}

		b := newBooking(model.RentalPool, day(2024, 8, 3), time.Time{})
		err := newService(&mockBookingRepo{}, locks).Create(context.Background(), agent, b)

		appErr := apperrors.AsAppError(err)
		if appErr.StatusCode() != 409 {
			t.Errorf("status = %d, want 409", appErr.StatusCode())
		}
	})

	t.Run("invalid booking fails validation before locking", func(t *testing.T) {
		lockCalled := false
		locks := &mockLockRepo{
			createFunc: func(_ context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
				lockCalled = true
				return lock, nil
			},
		}

		b := newBooking(model.RentalVillaPool, day(2024, 8, 1), day(2024, 8, 3))
		b.PhoneNumber = "not-a-phone"
		err := newService(&mockBookingRepo{}, locks).Create(context.Background(), agent, b)

		if apperrors.AsAppError(err).Code != apperrors.CodeValidation {
			t.Errorf("expected validation error, got %v", err)
		}
		if lockCalled {
			t.Error("lock must not be acquired for invalid input")
		}
	})
}

func TestGetByID(t *testing.T) {
	stored := newBooking(model.RentalVillaPool, day(2024, 8, 1), day(2024, 8, 3))
	stored.ID = "507f1f77bcf86cd799439011"
	stored.AgentID = "agent-1"
	stored.Status = model.StatusPending

	repo := &mockBookingRepo{
		findByIDFunc: func(_ context.Context, id string) (*model.Booking, error) {
			return stored, nil
		},
	}
	svc := newService(repo, &mockLockRepo{})

	t.Run("owner can read", func(t *testing.T) {
		if _, err := svc.GetByID(context.Background(), agent, stored.ID); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("other agent is forbidden", func(t *testing.T) {
		other := middleware.Caller{ID: "agent-2", Role: middleware.RoleAgent}
		_, err := svc.GetByID(context.Background(), other, stored.ID)
		if apperrors.AsAppError(err).Code != apperrors.CodeForbidden {
			t.Errorf("expected forbidden, got %v", err)
		}
	})

	t.Run("admin can read any", func(t *testing.T) {
		if _, err := svc.GetByID(context.Background(), admin, stored.ID); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestGetAllOwnershipFilter(t *testing.T) {
	tests := []struct {
		name        string
		caller      middleware.Caller
		opts        ListOptions
		wantAgentID string
	}{
		{
			name:        "agent sees own bookings",
			caller:      agent,
			wantAgentID: "agent-1",
		},
		{
			name:   "admin sees all",
			caller: admin,
		},
		{
			name:   "calendar view lifts the filter",
			caller: agent,
			opts:   ListOptions{ForCalendar: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotFilter repository.BookingFilter
			repo := &mockBookingRepo{
				findAllFunc: func(_ context.Context, filter repository.BookingFilter, _ int, _ int64) ([]*model.Booking, error) {
					gotFilter = filter
					return nil, nil
				},
			}

			_, _, err := newService(repo, &mockLockRepo{}).GetAll(context.Background(), tt.caller, tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotFilter.AgentID != tt.wantAgentID {
				t.Errorf("agent filter = %q, want %q", gotFilter.AgentID, tt.wantAgentID)
			}
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	stored := func() *model.Booking {
		b := newBooking(model.RentalVillaPool, day(2024, 8, 1), day(2024, 8, 3))
		b.ID = "507f1f77bcf86cd799439011"
		b.AgentID = "agent-1"
		b.Status = model.StatusPending
		return b
	}

	t.Run("reject without reason fails and leaves the booking untouched", func(t *testing.T) {
		updateCalled := false
		repo := &mockBookingRepo{
			findByIDFunc: func(_ context.Context, id string) (*model.Booking, error) {
				return stored(), nil
			},
			updateStatusFunc: func(context.Context, string, string, string) error {
				updateCalled = true
				return nil
			},
		}

		_, err := newService(repo, &mockLockRepo{}).UpdateStatus(context.Background(), "507f1f77bcf86cd799439011",
			&model.StatusChange{Status: model.StatusRejected})

		if apperrors.AsAppError(err).Code != apperrors.CodeMissingRejectionReason {
			t.Errorf("expected MISSING_REJECTION_REASON, got %v", err)
		}
		if updateCalled {
			t.Error("status must not be written")
		}
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		updateCalled := false
		repo := &mockBookingRepo{
			findByIDFunc: func(_ context.Context, id string) (*model.Booking, error) {
				return stored(), nil
			},
			updateStatusFunc: func(context.Context, string, string, string) error {
				updateCalled = true
				return nil
			},
		}

		warning, err := newService(repo, &mockLockRepo{}).UpdateStatus(context.Background(), "507f1f77bcf86cd799439011",
			&model.StatusChange{Status: model.StatusPending})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if warning != "" || updateCalled {
			t.Error("no-op transition must not write or warn")
		}
	})

	t.Run("re-entry surfaces a warning but succeeds", func(t *testing.T) {
		rejected := stored()
		rejected.Status = model.StatusRejected
		rejected.RejectionReason = "overbooked"

		colliding := newBooking(model.RentalPool, day(2024, 8, 2), day(2024, 8, 3))
		colliding.ID = "p1"
		colliding.Status = model.StatusApproved

		var wroteStatus, wroteReason string
		repo := &mockBookingRepo{
			findByIDFunc: func(_ context.Context, id string) (*model.Booking, error) {
				return rejected, nil
			},
			findLiveFunc: func(context.Context) ([]*model.Booking, error) {
				return []*model.Booking{colliding}, nil
			},
			updateStatusFunc: func(_ context.Context, _ string, status, reason string) error {
				wroteStatus, wroteReason = status, reason
				return nil
			},
		}

		warning, err := newService(repo, &mockLockRepo{}).UpdateStatus(context.Background(), rejected.ID,
			&model.StatusChange{Status: model.StatusApproved})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if warning == "" {
			t.Error("expected a collision warning")
		}
		if wroteStatus != model.StatusApproved {
			t.Errorf("stored status = %s, want approved", wroteStatus)
		}
		if wroteReason != "" {
			t.Errorf("stored reason = %q, want cleared", wroteReason)
		}
	})
}

func TestUpdate(t *testing.T) {
	stored := func() *model.Booking {
		b := newBooking(model.RentalVillaPool, day(2024, 8, 1), day(2024, 8, 3))
		b.ID = "507f1f77bcf86cd799439011"
		b.AgentID = "agent-1"
		b.Status = model.StatusPending
		b.GuestCount = 2
		b.Duration = 2
		return b
	}

	t.Run("field-only edit skips conflict evaluation", func(t *testing.T) {
		findLiveCalled := false
		repo := &mockBookingRepo{
			findByIDFunc: func(_ context.Context, id string) (*model.Booking, error) {
				return stored(), nil
			},
			findLiveFunc: func(context.Context) ([]*model.Booking, error) {
				findLiveCalled = true
				return nil, nil
			},
		}
		locks := &mockLockRepo{}

		newAmount := 2000.0
		updated, err := newService(repo, locks).Update(context.Background(), agent, "507f1f77bcf86cd799439011",
			&model.BookingUpdate{Amount: &newAmount})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Amount != 2000 {
			t.Errorf("amount = %v, want 2000", updated.Amount)
		}
		if findLiveCalled {
			t.Error("conflict evaluation must not run when dates are unchanged")
		}
		if len(locks.deleted) != 0 {
			t.Error("no lock should be taken for field-only edits")
		}
	})

	t.Run("date edit re-runs conflict evaluation excluding itself", func(t *testing.T) {
		self := stored()
		self.Status = model.StatusApproved
		repo := &mockBookingRepo{
			findByIDFunc: func(_ context.Context, id string) (*model.Booking, error) {
				return stored(), nil
			},
			findLiveFunc: func(context.Context) ([]*model.Booking, error) {
				return []*model.Booking{self}, nil
			},
		}
		locks := &mockLockRepo{}

		newEnd := day(2024, 8, 4)
		updated, err := newService(repo, locks).Update(context.Background(), agent, self.ID,
			&model.BookingUpdate{EndDate: &newEnd})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !updated.EndDate.Equal(newEnd) {
			t.Errorf("end date = %v, want %v", updated.EndDate, newEnd)
		}
		if updated.Duration != 3 {
			t.Errorf("duration = %d, want 3", updated.Duration)
		}
		if len(locks.deleted) != 1 {
			t.Error("date edit must take and release the lock")
		}
	})

	t.Run("date edit colliding with another booking is rejected", func(t *testing.T) {
		other := newBooking(model.RentalPool, day(2024, 8, 4), day(2024, 8, 5))
		other.ID = "p1"
		other.Status = model.StatusApproved

		repo := &mockBookingRepo{
			findByIDFunc: func(_ context.Context, id string) (*model.Booking, error) {
				return stored(), nil
			},
			findLiveFunc: func(context.Context) ([]*model.Booking, error) {
				return []*model.Booking{other}, nil
			},
		}

		newEnd := day(2024, 8, 6)
		_, err := newService(repo, &mockLockRepo{}).Update(context.Background(), agent, "507f1f77bcf86cd799439011",
			&model.BookingUpdate{EndDate: &newEnd})
		if apperrors.AsAppError(err).Code != apperrors.CodeDateRangeBlocked {
			t.Errorf("expected DATE_RANGE_BLOCKED, got %v", err)
		}
	})
}

func TestDelete(t *testing.T) {
	t.Run("not found maps to 404", func(t *testing.T) {
		repo := &mockBookingRepo{
			deleteFunc: func(context.Context, string) error {
				return bookingserrors.ErrNotFound
			},
		}
		err := newService(repo, &mockLockRepo{}).Delete(context.Background(), "507f1f77bcf86cd799439011")
		if apperrors.AsAppError(err).Code != apperrors.CodeNotFound {
			t.Errorf("expected NOT_FOUND, got %v", err)
		}
	})

	t.Run("success", func(t *testing.T) {
		if err := newService(&mockBookingRepo{}, &mockLockRepo{}).Delete(context.Background(), "507f1f77bcf86cd799439011"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestGetAvailability(t *testing.T) {
	repo := &mockBookingRepo{
		findLiveFunc: func(context.Context) ([]*model.Booking, error) {
			b := newBooking(model.RentalVillaPool, day(2024, 8, 1), day(2024, 8, 4))
			b.ID = "v1"
			b.Status = model.StatusApproved
			return []*model.Booking{b}, nil
		},
	}

	snap, err := newService(repo, &mockLockRepo{}).GetAvailability(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.PoolUnavailable) != 3 {
		t.Errorf("pool unavailable = %d days, want 3", len(snap.PoolUnavailable))
	}
	if len(snap.VillaEndDates) != 1 || !snap.VillaEndDates[0].Equal(day(2024, 8, 4)) {
		t.Errorf("villa end dates = %v, want [2024-08-04]", snap.VillaEndDates)
	}

	t.Run("storage failure surfaces as internal error", func(t *testing.T) {
		failing := &mockBookingRepo{
			findLiveFunc: func(context.Context) ([]*model.Booking, error) {
				return nil, errors.New("boom")
			},
		}
		_, err := newService(failing, &mockLockRepo{}).GetAvailability(context.Background())
		if apperrors.AsAppError(err).Code != apperrors.CodeInternal {
			t.Errorf("expected internal error, got %v", err)
		}
	})
}
