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
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CheckpointCollectionName = "Timer_checkpoints"
)

// CheckpointRepository persists the active countdown so a restarted process
// can resume it instead of silently dropping the deadline.
type CheckpointRepository interface {
	Save(ctx context.Context, checkpoint *model.TimerCheckpoint) error
	Find(ctx context.Context) (*model.TimerCheckpoint, error)
	Clear(ctx context.Context) error
}

type mongoCheckpointRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	exec       *resilience.Executor
}

func NewMongoCheckpointRepository(cfg *config.Config, exec *resilience.Executor) CheckpointRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCheckpointRepository{
		cfg:        cfg,
		collection: db.Collection(CheckpointCollectionName),
		exec:       exec,
	}
}

func (r *mongoCheckpointRepository) Save(ctx context.Context, checkpoint *model.TimerCheckpoint) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": checkpoint.BookingID}
	opts := options.Replace().SetUpsert(true)

	return r.exec.Do(ctx, "checkpoints.save", func(ctx context.Context) error {
		_, err := r.collection.ReplaceOne(ctx, filter, checkpoint, opts)
		if err != nil {
			return fmt.Errorf("failed to save timer checkpoint: %w", err)
		}
		return nil
	})
}

// Find returns the most recently saved checkpoint, or nil when none exists.
func (r *mongoCheckpointRepository) Find(ctx context.Context) (*model.TimerCheckpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var checkpoint model.TimerCheckpoint
	err := r.exec.Do(ctx, "checkpoints.find", func(ctx context.Context) error {
		err := r.collection.FindOne(ctx, bson.M{}, opts).Decode(&checkpoint)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if checkpoint.BookingID == "" {
		return nil, nil
	}
	return &checkpoint, nil
}

// Clear removes all checkpoints. Clearing an already empty collection is
// not an error.
func (r *mongoCheckpointRepository) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.exec.Do(ctx, "checkpoints.clear", func(ctx context.Context) error {
		_, err := r.collection.DeleteMany(ctx, bson.M{})
		if err != nil {
			return fmt.Errorf("failed to clear timer checkpoints: %w", err)
		}
		return nil
	})
}
