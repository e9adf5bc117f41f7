package transaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	bookingserrors "urut/internal/bookings/errors"
	"urut/internal/bookings/lifecycle"
	"urut/internal/bookings/repository"
	"urut/pkg/logger"
	"urut/pkg/model"
)

// Phase names the step of the booking creation transaction currently
// executing. Failures are reported with the phase they happened in.
type Phase string

const (
	PhasePrepare Phase = "PREPARE"
	PhasePersist Phase = "PERSIST"
	PhaseConfirm Phase = "CONFIRM"
	PhaseCommit  Phase = "COMMIT"
)

// Result is what a committed transaction hands back: the stored booking and
// the countdown the caller must start for it.
type Result struct {
	Booking *model.Booking
	Timer   model.TimerState
}

// Orchestrator runs booking creation as a staged transaction. PREPARE
// builds the record and rejects duplicates, PERSIST writes it, CONFIRM
// reads it back from the store, COMMIT assembles the result. A booking that
// persisted but failed CONFIRM is compensated with one best-effort delete;
// if that also fails the booking is left for the overdue sweep to expire.
type Orchestrator struct {
	bookings repository.BookingRepository
	log      *logger.Logger
	now      func() time.Time
	newID    func(at time.Time) string
}

func NewOrchestrator(bookings repository.BookingRepository, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		bookings: bookings,
		log:      log,
		now:      time.Now,
		newID:    MintBookingID,
	}
}

// MintBookingID builds a booking id from the creation instant and a random
// fragment. The millisecond prefix keeps ids roughly sortable; the fragment
// disambiguates bookings created in the same millisecond.
func MintBookingID(at time.Time) string {
	fragment := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("BK%d_%s", at.UnixMilli(), fragment)
}

// Execute runs the four phases in order. Any phase error aborts the
// transaction; only a CONFIRM error leaves state behind that needs
// compensation.
func (o *Orchestrator) Execute(ctx context.Context, req *model.BookingRequest) (*Result, error) {
	booking, err := o.prepare(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PhasePrepare, err)
	}

	if err := o.persist(ctx, booking); err != nil {
		return nil, fmt.Errorf("%s: %w", PhasePersist, err)
	}

	if err := o.confirm(ctx, booking); err != nil {
		o.compensate(ctx, booking)
		return nil, fmt.Errorf("%s: %w", PhaseConfirm, err)
	}

	return o.commit(booking), nil
}

// prepare builds the PENDING booking record. The at-most-one-active rule is
// enforced here: a second booking between the same customer and provider is
// rejected while the first is still PENDING or ACCEPTED.
func (o *Orchestrator) prepare(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	existing, err := o.bookings.FindActiveByParties(ctx, req.CustomerID, req.ProviderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s is %s",
			bookingserrors.ErrDuplicateActive, existing.BookingID, existing.Status)
	}

	now := o.now().UTC().Truncate(time.Millisecond)
	booking := &model.Booking{
		BookingID:     o.newID(now),
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		ProviderID:    req.ProviderID,
		ProviderName:  req.ProviderName,
		ProviderKind:  req.ProviderKind,

		ServiceType: req.ServiceType,
		Duration:    req.Duration,
		Price:       req.Price,

		Status: model.StatusPending,

		BookingKind: req.BookingKind,
		ScheduledAt: req.ScheduledAt,

		LocationZone: req.LocationZone,
		Address:      req.Address,
		Coordinates:  req.Coordinates,

		DiscountCode:       req.DiscountCode,
		DiscountPercentage: req.DiscountPercentage,
		OriginalPrice:      req.OriginalPrice,

		Notes: req.Notes,

		CreatedAt:        now,
		PendingAt:        now,
		ResponseDeadline: now.Add(lifecycle.ResponseWindow),
	}

	return booking, nil
}

func (o *Orchestrator) persist(ctx context.Context, booking *model.Booking) error {
	if err := o.bookings.Create(ctx, booking); err != nil {
		return err
	}
	if booking.DocumentID == "" {
		return fmt.Errorf("store returned no document id for %s", booking.BookingID)
	}
	return nil
}

// confirm reads the booking back by its store-assigned id. A successful
// readback proves the write is visible before any timer starts counting
// against it.
func (o *Orchestrator) confirm(ctx context.Context, booking *model.Booking) error {
	stored, err := o.bookings.FindByDocumentID(ctx, booking.DocumentID)
	if err != nil {
		return err
	}
	if stored.BookingID != booking.BookingID {
		return fmt.Errorf("stored booking id %s does not match %s", stored.BookingID, booking.BookingID)
	}
	if stored.Status != model.StatusPending {
		return fmt.Errorf("stored booking %s is %s, expected %s",
			stored.BookingID, stored.Status, model.StatusPending)
	}
	return nil
}

func (o *Orchestrator) commit(booking *model.Booking) *Result {
	o.log.Info("booking transaction committed",
		"booking_id", booking.BookingID,
		"document_id", booking.DocumentID,
		"response_deadline", booking.ResponseDeadline)

	return &Result{
		Booking: booking,
		Timer: model.TimerState{
			Phase:     model.PhaseResponse,
			BookingID: booking.BookingID,
			ExpiresAt: booking.ResponseDeadline,
		},
	}
}

// compensate deletes the persisted booking after a CONFIRM failure. One
// attempt only: if the delete also fails the record stays PENDING and the
// response deadline eventually expires it.
func (o *Orchestrator) compensate(ctx context.Context, booking *model.Booking) {
	if booking.DocumentID == "" {
		return
	}
	if err := o.bookings.Delete(ctx, booking.DocumentID); err != nil {
		o.log.Error("compensation delete failed, booking left for expiration sweep",
			"booking_id", booking.BookingID,
			"document_id", booking.DocumentID,
			"error", err)
		return
	}
	o.log.Warn("booking rolled back after confirm failure",
		"booking_id", booking.BookingID,
		"document_id", booking.DocumentID)
}
