package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "resource not found",
			},
			expected: "NOT_FOUND: resource not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Internal("wrapped", originalErr)

	if errors.Unwrap(appErr) != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"NotFound", NotFound("Booking"), CodeNotFound, http.StatusNotFound},
		{"Validation", Validation("validation failed", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"InvalidInput", InvalidInput("bad request"), CodeInvalidInput, http.StatusBadRequest},
		{"Unauthorized", Unauthorized("authentication required"), CodeUnauthorized, http.StatusUnauthorized},
		{"Forbidden", Forbidden("access denied"), CodeForbidden, http.StatusForbidden},
		{"Conflict start date", Conflict(CodeStartDateTaken, "start date taken"), CodeStartDateTaken, http.StatusConflict},
		{"Conflict range", Conflict(CodeDateRangeBlocked, "range blocked"), CodeDateRangeBlocked, http.StatusConflict},
		{"Internal", Internal("boom", errors.New("db down")), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("status = %d, want %d", tt.err.StatusCode(), tt.wantStatus)
			}
		})
	}
}

func TestNotFoundWithID(t *testing.T) {
	err := NotFoundWithID("Booking", "665f1c2ab1a4f2d3e4a5b6c7")

	if err.Details["id"] != "665f1c2ab1a4f2d3e4a5b6c7" {
		t.Errorf("expected id detail, got %v", err.Details["id"])
	}
	if err.Details["resource"] != "Booking" {
		t.Errorf("expected resource detail, got %v", err.Details["resource"])
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Booking")
	regularErr := errors.New("regular error")

	if result := AsAppError(appErr); result != appErr {
		t.Errorf("AsAppError() should return the same AppError")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap a plain error as internal, got %s", result.Code)
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should keep the original error")
	}
}

func TestIsAppError(t *testing.T) {
	if !IsAppError(NotFound("Booking")) {
		t.Errorf("IsAppError() should return true for AppError")
	}
	if IsAppError(errors.New("regular error")) {
		t.Errorf("IsAppError() should return false for plain error")
	}
}
