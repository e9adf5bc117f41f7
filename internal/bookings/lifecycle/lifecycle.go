package lifecycle

import (
	"context"
	"fmt"
	"math"
	"time"

	bookingserrors "urut/internal/bookings/errors"
	"urut/internal/bookings/repository"
	"urut/pkg/events"
	"urut/pkg/logger"
	"urut/pkg/model"
)

const (
	// CommissionRate is the platform share of the booking price, applied
	// exactly once when the provider accepts.
	CommissionRate = 0.30

	// ResponseWindow is how long a provider has to accept or decline a
	// new booking.
	ResponseWindow = 5 * time.Minute

	// ConfirmationWindow is how long a customer has to confirm after the
	// provider accepted.
	ConfirmationWindow = 1 * time.Minute
)

// transitions is the complete lifecycle table. A (status, trigger) pair
// absent from it is an illegal transition; terminal statuses have no entry
// at all.
var transitions = map[model.Status]map[model.Trigger]model.Status{
	model.StatusPending: {
		model.TriggerProviderAccept:  model.StatusAccepted,
		model.TriggerProviderDecline: model.StatusDeclined,
		model.TriggerCustomerCancel:  model.StatusDeclined,
		model.TriggerResponseTimeout: model.StatusExpired,
	},
	model.StatusAccepted: {
		model.TriggerCustomerConfirm:     model.StatusConfirmed,
		model.TriggerProviderDecline:     model.StatusDeclined,
		model.TriggerCustomerCancel:      model.StatusDeclined,
		model.TriggerConfirmationTimeout: model.StatusDeclined,
	},
	model.StatusConfirmed: {
		model.TriggerServiceCompleted: model.StatusCompleted,
		model.TriggerCustomerCancel:   model.StatusDeclined,
	},
}

// Machine applies lifecycle transitions to bookings. Every transition is a
// single conditional store write keyed on the expected from-status, so two
// racing transitions cannot both win.
type Machine struct {
	bookings    repository.BookingRepository
	commissions repository.CommissionRepository
	sink        events.Sink
	log         *logger.Logger
	now         func() time.Time
}

func NewMachine(bookings repository.BookingRepository, commissions repository.CommissionRepository, sink events.Sink, log *logger.Logger) *Machine {
	return &Machine{
		bookings:    bookings,
		commissions: commissions,
		sink:        sink,
		log:         log,
		now:         time.Now,
	}
}

// Next resolves the target status for a trigger without applying it.
func Next(from model.Status, trigger model.Trigger) (model.Status, error) {
	table, ok := transitions[from]
	if !ok {
		return "", fmt.Errorf("%w: %s is terminal", bookingserrors.ErrIllegalTransition, from)
	}
	to, ok := table[trigger]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", bookingserrors.ErrIllegalTransition, trigger, from)
	}
	return to, nil
}

// CommissionFor splits a price into the platform commission and the
// provider payout. The commission is rounded to the nearest whole unit and
// the payout is the exact remainder, so the two always sum to the price.
func CommissionFor(price int64) (commission, payout int64) {
	commission = int64(math.Round(float64(price) * CommissionRate))
	payout = price - commission
	return commission, payout
}

// Transition applies the trigger to the booking. The returned booking is
// the stored state after the write. Provider and customer triggers are
// checked against their deadline window; timeout triggers are not, since
// they exist because the window elapsed.
func (m *Machine) Transition(ctx context.Context, booking *model.Booking, trigger model.Trigger, reason string) (*model.Booking, error) {
	to, err := Next(booking.Status, trigger)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC().Truncate(time.Millisecond)
	if err := m.checkDeadline(booking, trigger, now); err != nil {
		return nil, err
	}

	update := model.TransitionUpdate{To: to, At: now}

	switch trigger {
	case model.TriggerProviderAccept:
		deadline := now.Add(ConfirmationWindow)
		commission, payout := CommissionFor(booking.Price)
		update.ConfirmationDeadline = &deadline
		update.AdminCommission = &commission
		update.ProviderPayout = &payout
	case model.TriggerProviderDecline, model.TriggerCustomerCancel:
		update.DeclineReason = reason
	case model.TriggerConfirmationTimeout:
		update.DeclineReason = "confirmation window elapsed"
	case model.TriggerResponseTimeout:
		update.ExpirationReason = "provider did not respond in time"
	}

	prev := booking.Status
	updated, err := m.bookings.ApplyTransition(ctx, booking.DocumentID, booking.Status, update)
	if err != nil {
		return nil, err
	}

	m.log.Info("booking transition applied",
		"booking_id", updated.BookingID,
		"trigger", trigger,
		"from", prev,
		"to", updated.Status)

	if trigger == model.TriggerProviderAccept {
		m.recordCommission(ctx, updated, now)
	}

	m.sink.Emit(ctx, events.Event{
		Type:       events.TypeStatusChanged,
		BookingID:  updated.BookingID,
		Status:     updated.Status,
		PrevStatus: prev,
	})

	return updated, nil
}

// checkDeadline rejects user actions that arrive after their window closed.
// The expiration path then settles the booking; accepting the late action
// would race against it.
func (m *Machine) checkDeadline(booking *model.Booking, trigger model.Trigger, now time.Time) error {
	switch trigger {
	case model.TriggerProviderAccept, model.TriggerProviderDecline:
		if booking.Status == model.StatusPending && now.After(booking.ResponseDeadline) {
			return fmt.Errorf("%w: response window closed at %s",
				bookingserrors.ErrDeadlineElapsed, booking.ResponseDeadline.Format(time.RFC3339))
		}
	case model.TriggerCustomerConfirm:
		if booking.ConfirmationDeadline != nil && now.After(*booking.ConfirmationDeadline) {
			return fmt.Errorf("%w: confirmation window closed at %s",
				bookingserrors.ErrDeadlineElapsed, booking.ConfirmationDeadline.Format(time.RFC3339))
		}
	}
	return nil
}

// recordCommission writes the accounting entry for an accepted booking.
// An existing entry is left alone; the entry is also keyed by booking id
// and the repository treats a duplicate insert as a no-op, so the record
// exists exactly once even when the check races. The booking itself
// already carries the amounts, so a failed ledger write degrades reporting
// but never the accept.
func (m *Machine) recordCommission(ctx context.Context, booking *model.Booking, acceptedAt time.Time) {
	exists, err := m.commissions.ExistsForBooking(ctx, booking.BookingID)
	if err != nil {
		m.log.Error("failed to check for existing commission record",
			"booking_id", booking.BookingID,
			"error", err)
	}
	if exists {
		return
	}

	record := &model.CommissionRecord{
		ID:              booking.BookingID,
		BookingID:       booking.BookingID,
		DocumentID:      booking.DocumentID,
		ProviderID:      booking.ProviderID,
		ProviderKind:    booking.ProviderKind,
		Price:           booking.Price,
		AdminCommission: booking.AdminCommission,
		ProviderPayout:  booking.ProviderPayout,
		Rate:            CommissionRate,
		Status:          "RECORDED",
		CreatedAt:       acceptedAt,
		AcceptedAt:      acceptedAt,
	}

	if err := m.commissions.Create(ctx, record); err != nil {
		m.log.Error("failed to record commission",
			"booking_id", booking.BookingID,
			"error", err)
	}
}
