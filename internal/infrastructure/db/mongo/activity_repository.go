package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/ports"
)

const collectionActivity = "activity_logs"

// ActivityRepository implements ports.ActivityLogger using MongoDB.
type ActivityRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *mongo.Database, timeout time.Duration) ports.ActivityLogger {
	return &ActivityRepository{col: db.Collection(collectionActivity), timeout: timeout}
}

// Record persists an activity entry.
func (r *ActivityRepository) Record(ctx context.Context, e domain.ActivityEvent) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	doc := bson.M{
		"event_id":        e.ID,
		"owner_id":        e.OwnerID,
		"parcel_id":       e.ParcelID,
		"tracking_number": e.TrackingNumber,
		"action":          string(e.Action),
		"occurred_at":     e.OccurredAt.UTC(),
		"recorded_at":     time.Now().UTC(),
	}
	if e.OldStatus != "" {
		doc["old_status"] = string(e.OldStatus)
	}
	if e.NewStatus != "" {
		doc["new_status"] = string(e.NewStatus)
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return storeError("insert activity", err)
	}
	return nil
}
