package model

import (
	"time"
)

// Status is the single authoritative lifecycle state of a booking. It is
// never duplicated into a second status field; every other view of the
// lifecycle is derived from it.
type Status string

const (
	StatusPending   Status = "PENDING"   // waiting for provider response
	StatusAccepted  Status = "ACCEPTED"  // provider accepted, waiting for customer confirmation
	StatusConfirmed Status = "CONFIRMED" // customer confirmed, service active
	StatusCompleted Status = "COMPLETED" // service delivered
	StatusDeclined  Status = "DECLINED"  // declined or cancelled
	StatusExpired   Status = "EXPIRED"   // deadline elapsed with no action
)

// Terminal reports whether no transition may leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusDeclined, StatusExpired:
		return true
	}
	return false
}

// Active reports whether the booking still has a running deadline window.
// Only active bookings may own a countdown timer.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

type ProviderKind string

const (
	ProviderTherapist ProviderKind = "therapist"
	ProviderPlace     ProviderKind = "place"
	ProviderFacial    ProviderKind = "facial"
)

type BookingKind string

const (
	BookNow   BookingKind = "BOOK_NOW"
	Scheduled BookingKind = "SCHEDULED"
)

type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Booking is the persisted record of a requested service between a customer
// and a provider. BookingID is minted server-side and immutable; DocumentID
// is assigned by the store on create and may differ from BookingID.
type Booking struct {
	DocumentID string `json:"document_id,omitempty" bson:"_id,omitempty"`
	BookingID  string `json:"booking_id" bson:"booking_id"`

	CustomerID    string       `json:"customer_id" bson:"customer_id"`
	CustomerName  string       `json:"customer_name" bson:"customer_name"`
	CustomerPhone string       `json:"customer_phone" bson:"customer_phone"`
	ProviderID    string       `json:"provider_id" bson:"provider_id"`
	ProviderName  string       `json:"provider_name,omitempty" bson:"provider_name,omitempty"`
	ProviderKind  ProviderKind `json:"provider_kind" bson:"provider_kind"`

	ServiceType string `json:"service_type" bson:"service_type"`
	Duration    int    `json:"duration" bson:"duration"` // minutes
	Price       int64  `json:"price" bson:"price"`       // currency-less amount (IDR)

	// Commission fields are zero until the PENDING -> ACCEPTED transition
	// records them; they are never recomputed or reversed afterwards.
	AdminCommission int64 `json:"admin_commission" bson:"admin_commission"`
	ProviderPayout  int64 `json:"provider_payout" bson:"provider_payout"`

	Status Status `json:"status" bson:"status"`

	BookingKind BookingKind `json:"booking_kind" bson:"booking_kind"`
	ScheduledAt *time.Time  `json:"scheduled_at,omitempty" bson:"scheduled_at,omitempty"`

	LocationZone string       `json:"location_zone,omitempty" bson:"location_zone,omitempty"`
	Address      string       `json:"address,omitempty" bson:"address,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty" bson:"coordinates,omitempty"`

	DiscountCode       string `json:"discount_code,omitempty" bson:"discount_code,omitempty"`
	DiscountPercentage int    `json:"discount_percentage,omitempty" bson:"discount_percentage,omitempty"`
	OriginalPrice      int64  `json:"original_price,omitempty" bson:"original_price,omitempty"`

	Notes string `json:"notes,omitempty" bson:"notes,omitempty"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	PendingAt   time.Time  `json:"pending_at" bson:"pending_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty" bson:"accepted_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	DeclinedAt  *time.Time `json:"declined_at,omitempty" bson:"declined_at,omitempty"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty" bson:"expired_at,omitempty"`

	// Absolute deadline timestamps. Countdown is always recomputed from
	// these, never from a relative counter.
	ResponseDeadline     time.Time  `json:"response_deadline" bson:"response_deadline"`
	ConfirmationDeadline *time.Time `json:"confirmation_deadline,omitempty" bson:"confirmation_deadline,omitempty"`

	DeclineReason    string `json:"decline_reason,omitempty" bson:"decline_reason,omitempty"`
	ExpirationReason string `json:"expiration_reason,omitempty" bson:"expiration_reason,omitempty"`
}

// BookingRequest is the raw input to booking creation. It carries no
// identifiers of its own beyond the parties; the booking id is minted by the
// persistence side.
type BookingRequest struct {
	CustomerID    string       `json:"customer_id" validate:"required"`
	CustomerName  string       `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerPhone string       `json:"customer_phone" validate:"required"`
	ProviderID    string       `json:"provider_id" validate:"required"`
	ProviderName  string       `json:"provider_name" validate:"omitempty,max=100"`
	ProviderKind  ProviderKind `json:"provider_kind" validate:"required,oneof=therapist place facial"`

	ServiceType string `json:"service_type" validate:"omitempty,max=100"`
	Duration    int    `json:"duration" validate:"required,oneof=60 90 120"`
	Price       int64  `json:"price" validate:"required,gt=0"`

	BookingKind BookingKind `json:"booking_kind" validate:"omitempty,oneof=BOOK_NOW SCHEDULED"`
	ScheduledAt *time.Time  `json:"scheduled_at,omitempty" validate:"omitempty"`

	LocationZone string       `json:"location_zone" validate:"omitempty,max=200"`
	Address      string       `json:"address" validate:"omitempty,max=300"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`

	DiscountCode       string `json:"discount_code" validate:"omitempty,max=50"`
	DiscountPercentage int    `json:"discount_percentage" validate:"omitempty,min=1,max=100"`
	OriginalPrice      int64  `json:"original_price" validate:"omitempty,gt=0"`

	Notes string `json:"notes" validate:"omitempty,max=500"`
}
