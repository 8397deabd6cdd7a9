package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "Station not found"},
			expected: "NOT_FOUND: Station not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "Failed to create reservation",
				Err:     errors.New("connection reset"),
			},
			expected: "INTERNAL_ERROR: Failed to create reservation (caused by: connection reset)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConstructors_StatusAndCode(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFound("Station"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad body", nil), CodeValidation, http.StatusBadRequest},
		{"invalid input", InvalidInput("bad id"), CodeInvalidInput, http.StatusBadRequest},
		{"already exists", AlreadyExists("User"), CodeAlreadyExists, http.StatusBadRequest},
		{"unauthorized", Unauthorized("missing token"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("not yours"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("busy"), CodeConflict, http.StatusConflict},
		{"no availability", NoAvailability("st-1"), CodeNoAvailability, http.StatusConflict},
		{"already reserved", AlreadyReserved("r-1"), CodeAlreadyReserved, http.StatusForbidden},
		{"invalid transition", InvalidTransition("cancelled", "active"), CodeInvalidTransition, http.StatusConflict},
		{"invalid code", InvalidCode(), CodeInvalidCode, http.StatusBadRequest},
		{"internal", Internal("boom", nil), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("Ledger"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
		})
	}
}

func TestNotFoundWithID(t *testing.T) {
	err := NotFoundWithID("Station", "st-7")

	if err.Details["id"] != "st-7" {
		t.Errorf("expected id 'st-7', got %v", err.Details["id"])
	}
	if err.Details["resource"] != "Station" {
		t.Errorf("expected resource 'Station', got %v", err.Details["resource"])
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", http.StatusInternalServerError)

	if !errors.Is(appErr, originalErr) {
		t.Errorf("errors.Is should see the original error through Unwrap")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NoAvailability("st-1")
	wrapped := fmt.Errorf("reserve: %w", appErr)
	regularErr := errors.New("regular error")

	if got := AsAppError(wrapped); got != appErr {
		t.Errorf("AsAppError() should find the AppError inside a wrapped chain")
	}
	if !IsAppError(wrapped) {
		t.Errorf("IsAppError() should return true for a wrapped AppError")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", AlreadyReserved("r-9"))

	if !HasCode(err, CodeAlreadyReserved) {
		t.Errorf("expected HasCode to match %s", CodeAlreadyReserved)
	}
	if HasCode(err, CodeNotFound) {
		t.Errorf("expected HasCode not to match %s", CodeNotFound)
	}
	if HasCode(errors.New("plain"), CodeInternal) {
		t.Errorf("plain errors carry no code")
	}
}

func TestAppError_ToJSON(t *testing.T) {
	body := string(NotFoundWithID("Reservation", "r-1").ToJSON())

	if !strings.Contains(body, CodeNotFound) {
		t.Errorf("ToJSON() should contain error code, got %s", body)
	}
	if !strings.Contains(body, "Reservation not found") {
		t.Errorf("ToJSON() should contain error message, got %s", body)
	}
}
