package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "urut/internal/bookings/errors"
	"urut/pkg/config"
	"urut/pkg/model"
	"urut/pkg/resilience"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	Delete(ctx context.Context, documentID string) error
	FindByDocumentID(ctx context.Context, documentID string) (*model.Booking, error)
	FindByBookingID(ctx context.Context, bookingID string) (*model.Booking, error)
	FindActiveByParties(ctx context.Context, customerID, providerID string) (*model.Booking, error)
	ApplyTransition(ctx context.Context, documentID string, from model.Status, update model.TransitionUpdate) (*model.Booking, error)
	FindByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Booking, error)
	FindByCustomer(ctx context.Context, customerID string, limit int, offset int64) ([]*model.Booking, error)
	CountByProvider(ctx context.Context, providerID string) (int64, error)
	CountByCustomer(ctx context.Context, customerID string) (int64, error)
	FindOverdue(ctx context.Context, status model.Status, deadline time.Time, limit int) ([]*model.Booking, error)
	FindCompletedBetween(ctx context.Context, from, to *time.Time) ([]*model.Booking, error)
	Count(ctx context.Context) (int64, error)
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	exec       *resilience.Executor
}

func NewMongoBookingRepository(cfg *config.Config, exec *resilience.Executor) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		exec:       exec,
	}
}

// withTimeout wraps the context with a timeout, honoring a tighter deadline
// already present on the context.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.DocumentID = ""
	return r.exec.Do(ctx, "bookings.create", func(ctx context.Context) error {
		result, err := r.collection.InsertOne(ctx, booking)
		if err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
			booking.DocumentID = oid.Hex()
		}
		return nil
	})
}

func (r *mongoBookingRepository) Delete(ctx context.Context, documentID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(documentID)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, documentID)
	}

	return r.exec.Do(ctx, "bookings.delete", func(ctx context.Context) error {
		result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
		if err != nil {
			return fmt.Errorf("failed to delete booking: %w", err)
		}
		if result.DeletedCount == 0 {
			return bookingserrors.ErrNotFound
		}
		return nil
	})
}

func (r *mongoBookingRepository) FindByDocumentID(ctx context.Context, documentID string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, documentID)
	}

	var booking model.Booking
	err = r.exec.Do(ctx, "bookings.find_by_document_id", func(ctx context.Context) error {
		err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return bookingserrors.ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindByBookingID(ctx context.Context, bookingID string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.exec.Do(ctx, "bookings.find_by_booking_id", func(ctx context.Context) error {
		err := r.collection.FindOne(ctx, bson.M{"booking_id": bookingID}).Decode(&booking)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return bookingserrors.ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindActiveByParties returns the PENDING or ACCEPTED booking between the
// two parties, or nil when none exists. Used by the duplicate-booking check
// before a new booking is created.
func (r *mongoBookingRepository) FindActiveByParties(ctx context.Context, customerID, providerID string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"customer_id": customerID,
		"provider_id": providerID,
		"status":      bson.M{"$in": []model.Status{model.StatusPending, model.StatusAccepted}},
	}

	var booking model.Booking
	err := r.exec.Do(ctx, "bookings.find_active_by_parties", func(ctx context.Context) error {
		err := r.collection.FindOne(ctx, filter).Decode(&booking)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to check active bookings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if booking.BookingID == "" {
		return nil, nil
	}
	return &booking, nil
}

// ApplyTransition performs the single atomic write of a lifecycle
// transition. The filter requires the expected from-status, which acts as an
// implicit version check: a racing transition that already advanced the
// booking matches nothing and surfaces as ErrStaleTransition.
func (r *mongoBookingRepository) ApplyTransition(ctx context.Context, documentID string, from model.Status, update model.TransitionUpdate) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, documentID)
	}

	filter := bson.M{"_id": objectID, "status": from}
	set := r.buildTransitionSet(update)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.Booking
	err = r.exec.Do(ctx, "bookings.apply_transition", func(ctx context.Context) error {
		err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Distinguish a missing booking from one whose status moved
			// underneath us.
			countErr := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Err()
			if errors.Is(countErr, mongo.ErrNoDocuments) {
				return bookingserrors.ErrNotFound
			}
			if countErr != nil {
				return countErr
			}
			return bookingserrors.ErrStaleTransition
		}
		if err != nil {
			return fmt.Errorf("failed to apply transition: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *mongoBookingRepository) buildTransitionSet(update model.TransitionUpdate) bson.M {
	set := bson.M{"status": update.To}

	switch update.To {
	case model.StatusAccepted:
		set["accepted_at"] = update.At
	case model.StatusConfirmed:
		set["confirmed_at"] = update.At
	case model.StatusCompleted:
		set["completed_at"] = update.At
	case model.StatusDeclined:
		set["declined_at"] = update.At
	case model.StatusExpired:
		set["expired_at"] = update.At
	}

	if update.ConfirmationDeadline != nil {
		set["confirmation_deadline"] = *update.ConfirmationDeadline
	}
	if update.AdminCommission != nil {
		set["admin_commission"] = *update.AdminCommission
	}
	if update.ProviderPayout != nil {
		set["provider_payout"] = *update.ProviderPayout
	}
	if update.DeclineReason != "" {
		set["decline_reason"] = update.DeclineReason
	}
	if update.ExpirationReason != "" {
		set["expiration_reason"] = update.ExpirationReason
	}

	return set
}

func (r *mongoBookingRepository) FindByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.findSorted(ctx, "bookings.find_by_provider", bson.M{"provider_id": providerID}, limit, offset)
}

func (r *mongoBookingRepository) FindByCustomer(ctx context.Context, customerID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.findSorted(ctx, "bookings.find_by_customer", bson.M{"customer_id": customerID}, limit, offset)
}

func (r *mongoBookingRepository) CountByProvider(ctx context.Context, providerID string) (int64, error) {
	return r.countFiltered(ctx, "bookings.count_by_provider", bson.M{"provider_id": providerID})
}

func (r *mongoBookingRepository) CountByCustomer(ctx context.Context, customerID string) (int64, error) {
	return r.countFiltered(ctx, "bookings.count_by_customer", bson.M{"customer_id": customerID})
}

func (r *mongoBookingRepository) countFiltered(ctx context.Context, op string, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	err := r.exec.Do(ctx, op, func(ctx context.Context) error {
		var err error
		count, err = r.collection.CountDocuments(ctx, filter)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) findSorted(ctx context.Context, op string, filter bson.M, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	var bookings []*model.Booking
	err := r.exec.Do(ctx, op, func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return fmt.Errorf("failed to find bookings: %w", err)
		}
		defer cursor.Close(ctx)

		bookings = nil
		if err = cursor.All(ctx, &bookings); err != nil {
			return fmt.Errorf("failed to decode bookings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// FindOverdue lists bookings still in the given status whose deadline for
// that status passed before the given instant.
func (r *mongoBookingRepository) FindOverdue(ctx context.Context, status model.Status, deadline time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	deadlineField := "response_deadline"
	if status == model.StatusAccepted {
		deadlineField = "confirmation_deadline"
	}

	filter := bson.M{
		"status":      status,
		deadlineField: bson.M{"$lt": deadline},
	}
	opts := options.Find().SetLimit(int64(limit))

	var bookings []*model.Booking
	err := r.exec.Do(ctx, "bookings.find_overdue", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return fmt.Errorf("failed to find overdue bookings: %w", err)
		}
		defer cursor.Close(ctx)

		bookings = nil
		return cursor.All(ctx, &bookings)
	})
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *mongoBookingRepository) FindCompletedBetween(ctx context.Context, from, to *time.Time) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"status": model.StatusCompleted}
	if from != nil || to != nil {
		window := bson.M{}
		if from != nil {
			window["$gte"] = *from
		}
		if to != nil {
			window["$lte"] = *to
		}
		filter["completed_at"] = window
	}

	opts := options.Find().SetSort(bson.D{{Key: "completed_at", Value: -1}})

	var bookings []*model.Booking
	err := r.exec.Do(ctx, "bookings.find_completed_between", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return fmt.Errorf("failed to find completed bookings: %w", err)
		}
		defer cursor.Close(ctx)

		bookings = nil
		return cursor.All(ctx, &bookings)
	})
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	err := r.exec.Do(ctx, "bookings.count", func(ctx context.Context) error {
		var err error
		count, err = r.collection.CountDocuments(ctx, bson.M{})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}
