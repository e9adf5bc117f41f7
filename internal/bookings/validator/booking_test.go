package validator

import (
	"errors"
	"io"
	"testing"
	"time"

	"urut/pkg/logger"
	"urut/pkg/model"
)

func newTestValidator(now time.Time) *BookingValidator {
	v := NewBookingValidator(logger.New(logger.Config{Output: io.Discard}))
	v.now = func() time.Time { return now }
	return v
}

func validRequest() *model.BookingRequest {
	return &model.BookingRequest{
		CustomerID:    "cust-1",
		CustomerName:  "Budi Santoso",
		CustomerPhone: "+62 812 3456 7890",
		ProviderID:    "prov-1",
		ProviderKind:  model.ProviderTherapist,
		Duration:      90,
		Price:         250000,
	}
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var fieldErrs ValidationErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected field errors, got %v", err)
	}
	if len(fieldErrs) == 0 {
		t.Fatal("expected at least one field error")
	}
	return fieldErrs[0].Field
}

func TestValidateRequestNormalizes(t *testing.T) {
	now := time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)
	v := newTestValidator(now)

	req := validRequest()
	req.CustomerName = "  Budi   Santoso "
	req.Notes = "ground \t floor"

	if err := v.ValidateRequest(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.CustomerName != "Budi Santoso" {
		t.Errorf("name not normalized: %q", req.CustomerName)
	}
	if req.Notes != "ground floor" {
		t.Errorf("notes not normalized: %q", req.Notes)
	}
	if req.CustomerPhone != "6281234567890" {
		t.Errorf("expected canonical digits-only phone, got %q", req.CustomerPhone)
	}
	if req.BookingKind != model.BookNow {
		t.Errorf("expected default booking kind BOOK_NOW, got %s", req.BookingKind)
	}
	if req.ServiceType != "Traditional Massage" {
		t.Errorf("expected default service type, got %q", req.ServiceType)
	}
}

func TestValidateRequestDefaultsScheduledKind(t *testing.T) {
	now := time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)
	v := newTestValidator(now)

	req := validRequest()
	scheduledAt := now.Add(2 * time.Hour)
	req.ScheduledAt = &scheduledAt

	if err := v.ValidateRequest(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.BookingKind != model.Scheduled {
		t.Errorf("expected SCHEDULED when a time is given, got %s", req.BookingKind)
	}
}

func TestValidateRequestFieldErrors(t *testing.T) {
	now := time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		mutate    func(req *model.BookingRequest)
		wantField string
	}{
		{
			name:      "missing customer name",
			mutate:    func(req *model.BookingRequest) { req.CustomerName = "" },
			wantField: "CustomerName",
		},
		{
			name:      "unsupported duration",
			mutate:    func(req *model.BookingRequest) { req.Duration = 45 },
			wantField: "Duration",
		},
		{
			name:      "non-positive price",
			mutate:    func(req *model.BookingRequest) { req.Price = 0 },
			wantField: "Price",
		},
		{
			name:      "unknown provider kind",
			mutate:    func(req *model.BookingRequest) { req.ProviderKind = "barber" },
			wantField: "ProviderKind",
		},
		{
			name:      "unparseable phone",
			mutate:    func(req *model.BookingRequest) { req.CustomerPhone = "not a number" },
			wantField: "CustomerPhone",
		},
		{
			name: "scheduled time in the past",
			mutate: func(req *model.BookingRequest) {
				past := now.Add(-time.Hour)
				req.ScheduledAt = &past
			},
			wantField: "ScheduledAt",
		},
		{
			name: "scheduled kind without a time",
			mutate: func(req *model.BookingRequest) {
				req.BookingKind = model.Scheduled
			},
			wantField: "ScheduledAt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(now)
			req := validRequest()
			tt.mutate(req)

			err := v.ValidateRequest(req)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := fieldOf(t, err); got != tt.wantField {
				t.Errorf("expected field %s, got %s", tt.wantField, got)
			}
		})
	}
}
