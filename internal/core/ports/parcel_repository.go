package ports

import (
	"context"

	"github.com/99minutos/locker-system/internal/core/domain"
)

// ListParcelsFilter carries query parameters for listing parcels.
type ListParcelsFilter struct {
	OwnerID string // empty = every owner
	Status  string // optional
	Kind    string // optional
	Limit   int    // 0 = no limit
}

// ParcelRepository is the primary (authoritative) store of parcels.
type ParcelRepository interface {
	// Insert stores a new parcel and fills in its ID and timestamps. When the
	// parcel holds a locker, the write fails with domain.ErrLockerConflict if
	// another active parcel already holds that locker.
	Insert(ctx context.Context, p *domain.Parcel) error
	FindByID(ctx context.Context, id string) (*domain.Parcel, error)
	// ActiveLockers returns the locker numbers held by active COD parcels.
	ActiveLockers(ctx context.Context) ([]int, error)
	// UpdateStatus sets the status only if it is still from. It returns
	// domain.ErrStatusConflict when the stored status differs. Reaching
	// collected releases the locker in the same write.
	UpdateStatus(ctx context.Context, id string, from, to domain.ParcelStatus) (*domain.Parcel, error)
	UpdateTrackingNumber(ctx context.Context, id, trackingNumber string) (*domain.Parcel, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListParcelsFilter) ([]*domain.Parcel, error)
}
