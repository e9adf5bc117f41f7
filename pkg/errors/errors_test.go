package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestAppErrorMessageAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "failed to load booking", http.StatusInternalServerError)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause must be reachable through errors.Is")
	}
	if err.StatusCode() != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", err.StatusCode())
	}
	msg := err.Error()
	if msg == "" || msg == "failed to load booking" {
		t.Errorf("error string should carry code and cause, got %q", msg)
	}
}

func TestConstructorsSetCodeAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFound("booking"), CodeNotFound, http.StatusNotFound},
		{"not found with id", NotFoundWithID("booking", "BK123_ABCDEF"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad request", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad limit"), CodeInvalidInput, http.StatusBadRequest},
		{"conflict", Conflict("already accepted"), CodeConflict, http.StatusConflict},
		{"internal", Internal("boom", errors.New("cause")), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("too slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("booking store"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, tt.err.StatusCode())
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := Conflict("booking already settled")

	if !IsCode(err, CodeConflict) {
		t.Error("expected IsCode to match the conflict code")
	}
	if IsCode(err, CodeNotFound) {
		t.Error("IsCode must not match a different code")
	}
	if IsCode(errors.New("plain"), CodeConflict) {
		t.Error("IsCode must not match a plain error")
	}
}

func TestAsAppErrorWrapsUnknownErrors(t *testing.T) {
	plain := errors.New("some failure")

	appErr := AsAppError(plain)
	if appErr == nil {
		t.Fatal("expected a non-nil AppError")
	}
	if appErr.Code != CodeInternal {
		t.Errorf("unknown errors default to %s, got %s", CodeInternal, appErr.Code)
	}

	conflict := Conflict("already accepted")
	if got := AsAppError(conflict); got != conflict {
		t.Error("an AppError must come back unchanged")
	}
}

func TestWithDetails(t *testing.T) {
	err := Validation("booking request is invalid", nil).
		WithDetails(map[string]any{"Duration": "must be one of: 60 90 120"})

	if err.Details["Duration"] == "" {
		t.Error("expected details to be attached")
	}
}
