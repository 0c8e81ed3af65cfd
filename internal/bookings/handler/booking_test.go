package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"villabook/internal/bookings/service"
	apperrors "villabook/pkg/errors"
	"villabook/pkg/logger"
	"villabook/pkg/middleware"
	"villabook/pkg/model"
)

// Mock service for testing
type mockBookingService struct {
	createFunc       func(ctx context.Context, caller middleware.Caller, b *model.Booking) error
	updateStatusFunc func(ctx context.Context, id string, change *model.StatusChange) (string, error)
	deleteFunc       func(ctx context.Context, id string) error
}

func (m *mockBookingService) Create(ctx context.Context, caller middleware.Caller, b *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, caller, b)
	}
	return nil
}

func (m *mockBookingService) GetByID(ctx context.Context, caller middleware.Caller, id string) (*model.Booking, error) {
	return &model.Booking{ID: id}, nil
}

func (m *mockBookingService) GetAll(ctx context.Context, caller middleware.Caller, opts service.ListOptions) ([]*model.Booking, int64, error) {
	return []*model.Booking{}, 0, nil
}

func (m *mockBookingService) GetAvailability(ctx context.Context) (*model.AvailabilitySnapshot, error) {
	return &model.AvailabilitySnapshot{}, nil
}

func (m *mockBookingService) Update(ctx context.Context, caller middleware.Caller, id string, updates *model.BookingUpdate) (*model.Booking, error) {
	return &model.Booking{ID: id}, nil
}

func (m *mockBookingService) UpdateStatus(ctx context.Context, id string, change *model.StatusChange) (string, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, change)
	}
	return "", nil
}

func (m *mockBookingService) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockBookingService) Stats(ctx context.Context, from, to *time.Time) (*model.BookingStats, error) {
	return &model.BookingStats{}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func asAgent(r *http.Request) *http.Request {
	ctx := middleware.ContextWithCaller(r.Context(), middleware.Caller{ID: "agent-1", Role: middleware.RoleAgent})
	return r.WithContext(ctx)
}

func asAdmin(r *http.Request) *http.Request {
	ctx := middleware.ContextWithCaller(r.Context(), middleware.Caller{ID: "admin-1", Role: middleware.RoleAdmin})
	return r.WithContext(ctx)
}

func TestCreateHandler(t *testing.T) {
	t.Run("valid request returns 201", func(t *testing.T) {
		h := NewBookingHandler(&mockBookingService{}, testLogger())

		body := `{"guest_name":"Dana Cohen","rental_type":"pool","start_date":"2024-08-01T00:00:00Z"}`
		r := asAgent(httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body)))
		w := httptest.NewRecorder()

		h.Create(w, r, nil)

		if w.Code != http.StatusCreated {
			t.Errorf("status = %d, want 201", w.Code)
		}
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		h := NewBookingHandler(&mockBookingService{}, testLogger())

		r := asAgent(httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader("{not json")))
		w := httptest.NewRecorder()

		h.Create(w, r, nil)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("conflict surfaces as 409 with code", func(t *testing.T) {
		svc := &mockBookingService{
			createFunc: func(context.Context, middleware.Caller, *model.Booking) error {
				return apperrors.Conflict(apperrors.CodeStartDateTaken, "Another booking already starts on 2024-08-01")
			},
		}
		h := NewBookingHandler(svc, testLogger())

		body := `{"rental_type":"pool","start_date":"2024-08-01T00:00:00Z"}`
		r := asAgent(httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body)))
		w := httptest.NewRecorder()

		h.Create(w, r, nil)

		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
		var resp struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if resp.Code != apperrors.CodeStartDateTaken {
			t.Errorf("code = %s, want START_DATE_TAKEN", resp.Code)
		}
	})

	t.Run("missing caller returns 401", func(t *testing.T) {
		h := NewBookingHandler(&mockBookingService{}, testLogger())

		r := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader("{}"))
		w := httptest.NewRecorder()

		h.Create(w, r, nil)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestAdminOnlyEndpoints(t *testing.T) {
	h := NewBookingHandler(&mockBookingService{}, testLogger())

	endpoints := []struct {
		name string
		call func(w http.ResponseWriter, r *http.Request)
	}{
		{
			name: "UpdateStatus",
			call: func(w http.ResponseWriter, r *http.Request) { h.UpdateStatus(w, r, nil) },
		},
		{
			name: "Delete",
			call: func(w http.ResponseWriter, r *http.Request) { h.Delete(w, r, nil) },
		},
		{
			name: "Stats",
			call: func(w http.ResponseWriter, r *http.Request) { h.Stats(w, r, nil) },
		},
	}

	for _, ep := range endpoints {
		t.Run(ep.name+" rejects agents", func(t *testing.T) {
			r := asAgent(httptest.NewRequest(http.MethodGet, "/api/v1/bookings/x", strings.NewReader("{}")))
			w := httptest.NewRecorder()

			ep.call(w, r)

			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", w.Code)
			}
		})
	}
}

func TestUpdateStatusHandler(t *testing.T) {
	t.Run("warning is carried in the response message", func(t *testing.T) {
		svc := &mockBookingService{
			updateStatusFunc: func(_ context.Context, _ string, change *model.StatusChange) (string, error) {
				return "Booking now overlaps 1 existing booking(s): p1", nil
			},
		}
		h := NewBookingHandler(svc, testLogger())

		body := `{"status":"approved"}`
		r := asAdmin(httptest.NewRequest(http.MethodPatch, "/api/v1/bookings/id/x/status", strings.NewReader(body)))
		w := httptest.NewRecorder()

		h.UpdateStatus(w, r, nil)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var resp struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if !strings.Contains(resp.Message, "overlaps") {
			t.Errorf("message = %q, want collision warning", resp.Message)
		}
	})

	t.Run("missing reason surfaces as 400", func(t *testing.T) {
		svc := &mockBookingService{
			updateStatusFunc: func(context.Context, string, *model.StatusChange) (string, error) {
				return "", apperrors.New(apperrors.CodeMissingRejectionReason, "A rejection reason is required", http.StatusBadRequest)
			},
		}
		h := NewBookingHandler(svc, testLogger())

		body := `{"status":"rejected"}`
		r := asAdmin(httptest.NewRequest(http.MethodPatch, "/api/v1/bookings/id/x/status", strings.NewReader(body)))
		w := httptest.NewRecorder()

		h.UpdateStatus(w, r, nil)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestDeleteHandler(t *testing.T) {
	svc := &mockBookingService{
		deleteFunc: func(context.Context, string) error {
			return apperrors.NotFoundWithID("Booking", "x")
		},
	}
	h := NewBookingHandler(svc, testLogger())

	r := asAdmin(httptest.NewRequest(http.MethodDelete, "/api/v1/bookings/id/x", strings.NewReader("")))
	w := httptest.NewRecorder()

	h.Delete(w, r, nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
