package model

import "time"

// Trigger is an input that drives a lifecycle transition. Provider and
// customer actions arrive through the API surface; timeout triggers come
// from the timer owner.
type Trigger string

const (
	TriggerProviderAccept      Trigger = "PROVIDER_ACCEPT"
	TriggerProviderDecline     Trigger = "PROVIDER_DECLINE"
	TriggerCustomerConfirm     Trigger = "CUSTOMER_CONFIRM"
	TriggerCustomerCancel      Trigger = "CUSTOMER_CANCEL"
	TriggerResponseTimeout     Trigger = "RESPONSE_TIMEOUT"
	TriggerConfirmationTimeout Trigger = "CONFIRMATION_TIMEOUT"
	TriggerServiceCompleted    Trigger = "SERVICE_COMPLETED"
)

// TransitionUpdate is the single atomic patch a lifecycle transition writes.
// The repository translates it into one conditional store update keyed on
// the expected from-status, so a stale transition matches nothing.
type TransitionUpdate struct {
	To Status
	At time.Time

	// Set on PENDING -> ACCEPTED only.
	ConfirmationDeadline *time.Time
	AdminCommission      *int64
	ProviderPayout       *int64

	DeclineReason    string
	ExpirationReason string
}
