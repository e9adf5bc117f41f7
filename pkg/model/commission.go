package model

import "time"

// CommissionRecord is the accounting entry created exactly once when a
// provider accepts a booking. A later decline keeps the record; it is never
// reversed or zeroed.
type CommissionRecord struct {
	ID         string       `json:"id,omitempty" bson:"_id,omitempty"`
	BookingID  string       `json:"booking_id" bson:"booking_id"`
	DocumentID string       `json:"document_id" bson:"document_id"`
	ProviderID string       `json:"provider_id" bson:"provider_id"`
	ProviderKind ProviderKind `json:"provider_kind" bson:"provider_kind"`

	Price           int64   `json:"price" bson:"price"`
	AdminCommission int64   `json:"admin_commission" bson:"admin_commission"`
	ProviderPayout  int64   `json:"provider_payout" bson:"provider_payout"`
	Rate            float64 `json:"rate" bson:"rate"`

	Status     string    `json:"status" bson:"status"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	AcceptedAt time.Time `json:"accepted_at" bson:"accepted_at"`
}

// CommissionSummary aggregates completed bookings for a reporting window.
type CommissionSummary struct {
	TotalBookings        int64 `json:"total_bookings"`
	TotalRevenue         int64 `json:"total_revenue"`
	TotalAdminCommission int64 `json:"total_admin_commission"`
	TotalProviderPayout  int64 `json:"total_provider_payout"`
}
