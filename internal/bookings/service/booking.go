package service

import (
	"context"
	"errors"
	"strings"
	"time"

	bookingserrors "urut/internal/bookings/errors"
	"urut/internal/bookings/lifecycle"
	"urut/internal/bookings/repository"
	"urut/internal/bookings/timer"
	"urut/internal/bookings/transaction"
	"urut/internal/bookings/validator"
	apperrors "urut/pkg/errors"
	"urut/pkg/events"
	"urut/pkg/logger"
	"urut/pkg/model"
)

const overdueSweepBatch = 100

// BookingService ties the validation gate, the creation transaction, the
// lifecycle machine and the timer owner together behind one API. All
// handler and sweep entry points go through it.
type BookingService struct {
	validator    *validator.BookingValidator
	orchestrator *transaction.Orchestrator
	machine      *lifecycle.Machine
	timers       *timer.Manager
	bookings     repository.BookingRepository
	commissions  repository.CommissionRepository
	sink         events.Sink
	log          *logger.Logger
	now          func() time.Time
}

func NewBookingService(
	v *validator.BookingValidator,
	orchestrator *transaction.Orchestrator,
	machine *lifecycle.Machine,
	timers *timer.Manager,
	bookings repository.BookingRepository,
	commissions repository.CommissionRepository,
	sink events.Sink,
	log *logger.Logger,
) *BookingService {
	s := &BookingService{
		validator:    v,
		orchestrator: orchestrator,
		machine:      machine,
		timers:       timers,
		bookings:     bookings,
		commissions:  commissions,
		sink:         sink,
		log:          log,
		now:          time.Now,
	}
	timers.OnExpiration(s.HandleExpiration)
	return s
}

// Create validates the request, runs the creation transaction and starts
// the provider response countdown. The countdown starts only after the
// transaction committed; a failed transaction leaves no timer behind.
func (s *BookingService) Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	if err := s.validator.ValidateRequest(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]any, len(fieldErrs))
			for _, fe := range fieldErrs {
				details[fe.Field] = fe.Message
			}
			return nil, apperrors.Validation("booking request is invalid", details)
		}
		return nil, apperrors.Internal("failed to validate booking request", err)
	}

	result, err := s.orchestrator.Execute(ctx, req)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrDuplicateActive) {
			return nil, apperrors.Conflict(bookingserrors.ErrDuplicateActive.Error())
		}
		if appErr := unwrapAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, apperrors.Internal("failed to create booking", err)
	}
	booking := result.Booking

	if err := s.timers.Start(ctx, result.Timer, snapshotOf(booking)); err != nil {
		// The booking exists either way; the overdue sweep covers a
		// window without a live countdown.
		s.log.Error("failed to start response countdown",
			"booking_id", booking.BookingID,
			"error", err)
	}

	s.sink.Emit(ctx, events.Event{
		Type:      events.TypeBookingCreated,
		BookingID: booking.BookingID,
		Status:    booking.Status,
	})

	return booking, nil
}

// Accept records the provider's acceptance within the response window.
func (s *BookingService) Accept(ctx context.Context, id string) (*model.Booking, error) {
	return s.Transition(ctx, id, model.TriggerProviderAccept, "")
}

// Decline records the provider's refusal. The reason is optional.
func (s *BookingService) Decline(ctx context.Context, id, reason string) (*model.Booking, error) {
	return s.Transition(ctx, id, model.TriggerProviderDecline, reason)
}

// Confirm records the customer's confirmation within the confirmation
// window.
func (s *BookingService) Confirm(ctx context.Context, id string) (*model.Booking, error) {
	return s.Transition(ctx, id, model.TriggerCustomerConfirm, "")
}

// Cancel lets the customer withdraw an unsettled booking.
func (s *BookingService) Cancel(ctx context.Context, id, reason string) (*model.Booking, error) {
	return s.Transition(ctx, id, model.TriggerCustomerCancel, reason)
}

// Complete marks a confirmed booking's service as delivered.
func (s *BookingService) Complete(ctx context.Context, id string) (*model.Booking, error) {
	return s.Transition(ctx, id, model.TriggerServiceCompleted, "")
}

// Transition applies a lifecycle trigger to the booking named by id and
// keeps the countdown in step with the outcome.
func (s *BookingService) Transition(ctx context.Context, id string, trigger model.Trigger, reason string) (*model.Booking, error) {
	booking, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.machine.Transition(ctx, booking, trigger, reason)
	if err != nil {
		return nil, s.mapTransitionError(err, booking.BookingID)
	}

	s.syncTimer(ctx, updated)
	return updated, nil
}

// syncTimer aligns the countdown with the booking's new status: an accept
// swaps the response window for the confirmation window, a settled booking
// stops the countdown, anything else just refreshes the snapshot.
func (s *BookingService) syncTimer(ctx context.Context, booking *model.Booking) {
	s.timers.UpdateSnapshot(snapshotOf(booking))

	switch {
	case booking.Status == model.StatusAccepted && booking.ConfirmationDeadline != nil:
		err := s.timers.Start(ctx, model.TimerState{
			Phase:     model.PhaseConfirmation,
			BookingID: booking.BookingID,
			ExpiresAt: *booking.ConfirmationDeadline,
		}, snapshotOf(booking))
		if err != nil {
			s.log.Error("failed to start confirmation countdown",
				"booking_id", booking.BookingID,
				"error", err)
		}
	case !booking.Status.Active():
		s.timers.Stop(ctx, "booking settled")
	}
}

// HandleExpiration settles a booking whose window elapsed. It is wired as
// the timer's expiration handler and also used by the overdue sweep. Losing
// the race to a concurrent user action is expected and only logged.
func (s *BookingService) HandleExpiration(ctx context.Context, event model.ExpirationEvent) {
	booking, err := s.bookings.FindByBookingID(ctx, event.BookingID)
	if err != nil {
		s.log.Error("failed to load booking for expiration",
			"booking_id", event.BookingID,
			"error", err)
		return
	}

	var trigger model.Trigger
	switch {
	case event.Phase == model.PhaseResponse && booking.Status == model.StatusPending:
		trigger = model.TriggerResponseTimeout
	case event.Phase == model.PhaseConfirmation && booking.Status == model.StatusAccepted:
		trigger = model.TriggerConfirmationTimeout
	default:
		s.log.Info("booking settled before its expiration was handled",
			"booking_id", event.BookingID,
			"phase", event.Phase,
			"status", booking.Status)
		return
	}

	updated, err := s.machine.Transition(ctx, booking, trigger, "")
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStaleTransition) {
			s.log.Info("expiration lost the race to a user action",
				"booking_id", event.BookingID,
				"phase", event.Phase)
			return
		}
		s.log.Error("failed to expire booking",
			"booking_id", event.BookingID,
			"phase", event.Phase,
			"error", err)
		return
	}

	s.timers.UpdateSnapshot(snapshotOf(updated))
}

// ExpireOverdue settles bookings whose deadline passed without a live
// countdown, such as after a crash that lost the checkpoint. Returns how
// many bookings were settled.
func (s *BookingService) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now().UTC()
	settled := 0

	pending, err := s.bookings.FindOverdue(ctx, model.StatusPending, now, overdueSweepBatch)
	if err != nil {
		return settled, err
	}
	for _, booking := range pending {
		if s.expireOne(ctx, booking, model.TriggerResponseTimeout) {
			settled++
		}
	}

	accepted, err := s.bookings.FindOverdue(ctx, model.StatusAccepted, now, overdueSweepBatch)
	if err != nil {
		return settled, err
	}
	for _, booking := range accepted {
		if s.expireOne(ctx, booking, model.TriggerConfirmationTimeout) {
			settled++
		}
	}

	if settled > 0 {
		s.log.Info("overdue sweep settled bookings", "count", settled)
	}
	return settled, nil
}

func (s *BookingService) expireOne(ctx context.Context, booking *model.Booking, trigger model.Trigger) bool {
	if _, err := s.machine.Transition(ctx, booking, trigger, ""); err != nil {
		if !errors.Is(err, bookingserrors.ErrStaleTransition) {
			s.log.Error("failed to settle overdue booking",
				"booking_id", booking.BookingID,
				"error", err)
		}
		return false
	}
	return true
}

// Resume restores the persisted countdown after a restart.
func (s *BookingService) Resume(ctx context.Context) error {
	return s.timers.Resume(ctx, func(ctx context.Context, bookingID string) (*model.Booking, error) {
		return s.bookings.FindByBookingID(ctx, bookingID)
	})
}

// GetByID resolves either a booking id or a store document id.
func (s *BookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return s.resolve(ctx, id)
}

// GetByBookingID looks a booking up by its minted id only.
func (s *BookingService) GetByBookingID(ctx context.Context, bookingID string) (*model.Booking, error) {
	booking, err := s.bookings.FindByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("booking", bookingID)
		}
		if appErr := unwrapAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, apperrors.Internal("failed to load booking", err)
	}
	return booking, nil
}

// GetCommission returns the ledger entry recorded when the provider
// accepted. Bookings that never reached ACCEPTED have no entry.
func (s *BookingService) GetCommission(ctx context.Context, bookingID string) (*model.CommissionRecord, error) {
	record, err := s.commissions.FindByBooking(ctx, bookingID)
	if err != nil {
		if appErr := unwrapAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, apperrors.Internal("failed to load commission record", err)
	}
	if record == nil {
		return nil, apperrors.NotFoundWithID("commission record", bookingID)
	}
	return record, nil
}

func (s *BookingService) ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	bookings, err := s.bookings.FindByProvider(ctx, providerID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list provider bookings", err)
	}
	total, err := s.bookings.CountByProvider(ctx, providerID)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to count provider bookings", err)
	}
	return bookings, total, nil
}

func (s *BookingService) ListByCustomer(ctx context.Context, customerID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	bookings, err := s.bookings.FindByCustomer(ctx, customerID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list customer bookings", err)
	}
	total, err := s.bookings.CountByCustomer(ctx, customerID)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to count customer bookings", err)
	}
	return bookings, total, nil
}

// CommissionSummary aggregates completed bookings inside the optional
// window. Amounts come from the booking records, which carry the split
// fixed at accept time.
func (s *BookingService) CommissionSummary(ctx context.Context, from, to *time.Time) (*model.CommissionSummary, error) {
	completed, err := s.bookings.FindCompletedBetween(ctx, from, to)
	if err != nil {
		return nil, apperrors.Internal("failed to load completed bookings", err)
	}

	summary := &model.CommissionSummary{}
	for _, booking := range completed {
		summary.TotalBookings++
		summary.TotalRevenue += booking.Price
		summary.TotalAdminCommission += booking.AdminCommission
		summary.TotalProviderPayout += booking.ProviderPayout
	}
	return summary, nil
}

// resolve looks a booking up by its minted id ("BK" prefix) or by the
// store's document id.
func (s *BookingService) resolve(ctx context.Context, id string) (*model.Booking, error) {
	var booking *model.Booking
	var err error
	if strings.HasPrefix(id, "BK") {
		booking, err = s.bookings.FindByBookingID(ctx, id)
	} else {
		booking, err = s.bookings.FindByDocumentID(ctx, id)
	}
	if err != nil {
		switch {
		case errors.Is(err, bookingserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("booking", id)
		case errors.Is(err, bookingserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput(bookingserrors.ErrInvalidID.Error())
		}
		if appErr := unwrapAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, apperrors.Internal("failed to load booking", err)
	}
	return booking, nil
}

func (s *BookingService) mapTransitionError(err error, bookingID string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrIllegalTransition),
		errors.Is(err, bookingserrors.ErrDeadlineElapsed),
		errors.Is(err, bookingserrors.ErrStaleTransition):
		return apperrors.Conflict(err.Error())
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("booking", bookingID)
	}
	if appErr := unwrapAppError(err); appErr != nil {
		return appErr
	}
	return apperrors.Internal("failed to transition booking", err)
}

// unwrapAppError surfaces an application error buried under phase or
// operation wrapping, so an open circuit breaker still maps to 503.
func unwrapAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func snapshotOf(booking *model.Booking) model.BookingSnapshot {
	return model.BookingSnapshot{
		BookingID:  booking.BookingID,
		DocumentID: booking.DocumentID,
		Status:     booking.Status,
	}
}
