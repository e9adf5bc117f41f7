package events

import (
	"context"
	"time"

	"urut/pkg/model"
)

type Type string

const (
	TypeBookingCreated  Type = "booking.created"
	TypeStatusChanged   Type = "booking.status_changed"
	TypeDeadlineExpired Type = "booking.deadline_expired"
)

// Event is the one-way notification emitted to the display sink. Delivery is
// fire-and-forget; no component of the booking core waits on it.
type Event struct {
	ID         string           `json:"id"`
	Type       Type             `json:"type"`
	BookingID  string           `json:"booking_id"`
	Status     model.Status     `json:"status,omitempty"`
	PrevStatus model.Status     `json:"prev_status,omitempty"`
	Phase      model.TimerPhase `json:"phase,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Sink receives booking lifecycle notifications. Implementations must never
// block booking progress on delivery problems.
type Sink interface {
	Emit(ctx context.Context, event Event)
	Close() error
}

// NoopSink is used when no broker is configured (tests, local development).
type NoopSink struct{}

func (NoopSink) Emit(ctx context.Context, event Event) {}

func (NoopSink) Close() error { return nil }
