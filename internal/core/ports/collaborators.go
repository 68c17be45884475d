package ports

import (
	"context"

	"github.com/99minutos/locker-system/internal/core/domain"
)

// CapacityReader returns the latest reading of the capacity sensor feed.
// It returns domain.ErrCapacityUnknown when the feed has produced nothing.
type CapacityReader interface {
	Latest(ctx context.Context) (*domain.CapacitySnapshot, error)
}

// ActivityLogger is the fire-and-forget activity-log sink.
type ActivityLogger interface {
	Record(ctx context.Context, event domain.ActivityEvent) error
}

// IdempotencyStore remembers which parcel a client-supplied key produced.
type IdempotencyStore interface {
	// Claim reserves key. When the key is already taken it returns the bound
	// parcel id (empty while the first request is still in flight).
	Claim(ctx context.Context, key string) (claimed bool, parcelID string, err error)
	Bind(ctx context.Context, key, parcelID string) error
	Release(ctx context.Context, key string) error
}
