package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/locker-system/internal/core/domain"
)

const collectionCapacity = "capacity_readings"

// CapacityRepository reads the readings written by the capacity sensor feed.
type CapacityRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

func NewCapacityRepository(db *mongo.Database, timeout time.Duration) *CapacityRepository {
	return &CapacityRepository{col: db.Collection(collectionCapacity), timeout: timeout}
}

// Latest returns the most recent reading across all devices.
func (r *CapacityRepository) Latest(ctx context.Context) (*domain.CapacitySnapshot, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var s domain.CapacitySnapshot
	err := r.col.FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCapacityUnknown
		}
		return nil, storeError("latest capacity", err)
	}
	s.LastUpdatedAt = s.LastUpdatedAt.UTC()
	return &s, nil
}

// EnsureIndexes creates the index Latest sorts on.
func (r *CapacityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: -1}},
	})
	return err
}
