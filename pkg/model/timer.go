package model

import "time"

// TimerPhase names the deadline window a countdown is enforcing.
type TimerPhase string

const (
	PhaseResponse     TimerPhase = "PROVIDER_RESPONSE"
	PhaseConfirmation TimerPhase = "CUSTOMER_CONFIRMATION"
)

// TimerCheckpoint is the persisted shape of an active countdown, keyed by
// booking id. It lets a restarted process resume a window from its absolute
// expiration timestamp, or fire the expiration it missed while down.
type TimerCheckpoint struct {
	BookingID string     `json:"booking_id" bson:"_id"`
	Phase     TimerPhase `json:"phase" bson:"phase"`
	ExpiresAt time.Time  `json:"expires_at" bson:"expires_at"`
	Status    Status     `json:"status" bson:"status"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
}

// BookingSnapshot is the minimal view of a booking the timer tick reads.
// The owner updates it through an explicit setter; the timer never captures
// booking state at start time.
type BookingSnapshot struct {
	BookingID  string
	DocumentID string
	Status     Status
}

// Active mirrors Status.Active for the snapshot the timer holds.
func (s BookingSnapshot) Active() bool {
	return s.Status.Active()
}

// TimerState describes the countdown the transaction commit hands to the
// caller together with the created booking.
type TimerState struct {
	Phase     TimerPhase `json:"phase"`
	BookingID string     `json:"booking_id"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// ExpirationEvent is raised when a window elapses. The timer only signals;
// the owner decides the resulting lifecycle transition.
type ExpirationEvent struct {
	Phase      TimerPhase
	BookingID  string
	DocumentID string
	Status     Status
}
