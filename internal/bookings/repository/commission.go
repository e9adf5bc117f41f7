package repository

import (
	"context"
	"errors"
	"fmt"

	"urut/pkg/config"
	"urut/pkg/model"
	"urut/pkg/resilience"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	CommissionCollectionName = "Commission_records"
)

type CommissionRepository interface {
	Create(ctx context.Context, record *model.CommissionRecord) error
	ExistsForBooking(ctx context.Context, bookingID string) (bool, error)
	FindByBooking(ctx context.Context, bookingID string) (*model.CommissionRecord, error)
}

type mongoCommissionRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	exec       *resilience.Executor
}

func NewMongoCommissionRepository(cfg *config.Config, exec *resilience.Executor) CommissionRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCommissionRepository{
		cfg:        cfg,
		collection: db.Collection(CommissionCollectionName),
		exec:       exec,
	}
}

func (r *mongoCommissionRepository) Create(ctx context.Context, record *model.CommissionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.exec.Do(ctx, "commissions.create", func(ctx context.Context) error {
		_, err := r.collection.InsertOne(ctx, record)
		if mongo.IsDuplicateKeyError(err) {
			// A record for this booking already exists. Recording is
			// exactly-once, so a duplicate insert is not an error.
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to create commission record: %w", err)
		}
		return nil
	})
}

func (r *mongoCommissionRepository) ExistsForBooking(ctx context.Context, bookingID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	err := r.exec.Do(ctx, "commissions.exists_for_booking", func(ctx context.Context) error {
		var err error
		count, err = r.collection.CountDocuments(ctx, bson.M{"booking_id": bookingID})
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to check commission record: %w", err)
	}
	return count > 0, nil
}

func (r *mongoCommissionRepository) FindByBooking(ctx context.Context, bookingID string) (*model.CommissionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var record model.CommissionRecord
	err := r.exec.Do(ctx, "commissions.find_by_booking", func(ctx context.Context) error {
		err := r.collection.FindOne(ctx, bson.M{"booking_id": bookingID}).Decode(&record)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if record.BookingID == "" {
		return nil, nil
	}
	return &record, nil
}
