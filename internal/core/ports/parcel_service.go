package ports

import (
	"context"

	"github.com/99minutos/locker-system/internal/core/domain"
)

// CreateParcelInput carries all data needed to register a parcel.
type CreateParcelInput struct {
	TrackingNumber string
	Kind           string
	Requester      domain.Requester
	IdempotencyKey string
}

// ParcelResult is returned by the service after creating a parcel.
type ParcelResult struct {
	Parcel *domain.Parcel
	// AlreadyExisted is true when the Idempotency-Key matched an existing parcel.
	AlreadyExisted bool
}

// TransitionInput moves one parcel to the next status.
type TransitionInput struct {
	ParcelID  string
	Status    string
	Requester domain.Requester
}

// BatchTransitionInput applies one target status to many parcels.
type BatchTransitionInput struct {
	ParcelIDs []string
	Status    string
	Requester domain.Requester
}

// TransitionItemResult reports the outcome for a single parcel of a batch.
type TransitionItemResult struct {
	ParcelID string
	OK       bool
	Err      error
}

// BatchTransitionResult aggregates per-item outcomes. The batch is not atomic.
type BatchTransitionResult struct {
	Items     []TransitionItemResult
	Succeeded int
	Failed    int
}

// UpdateParcelInput is an owner edit. Nil fields are left unchanged; Kind and
// LockerNumber are accepted only to reject them explicitly.
type UpdateParcelInput struct {
	ParcelID       string
	Requester      domain.Requester
	TrackingNumber *string
	Kind           *string
	LockerNumber   *int
}

// ListParcelsInput carries the parameters for the list endpoint.
type ListParcelsInput struct {
	Requester domain.Requester
	Status    string
	Kind      string
	Limit     int
}

// CapacityView is the latest capacity reading plus the gate decision.
type CapacityView struct {
	Snapshot       *domain.CapacitySnapshot
	Percentage     float64
	CanAdmitNonCOD bool
}

// AdmissionService registers new parcels.
type AdmissionService interface {
	Create(ctx context.Context, input CreateParcelInput) (*ParcelResult, error)
}

// TransitionService advances parcel statuses.
type TransitionService interface {
	Transition(ctx context.Context, input TransitionInput) (*domain.Parcel, error)
	TransitionBatch(ctx context.Context, input BatchTransitionInput) (*BatchTransitionResult, error)
}

// ParcelService covers owner reads and edits.
type ParcelService interface {
	Get(ctx context.Context, id string, requester domain.Requester) (*domain.Parcel, error)
	List(ctx context.Context, input ListParcelsInput) ([]*domain.Parcel, error)
	Update(ctx context.Context, input UpdateParcelInput) (*domain.Parcel, error)
	Delete(ctx context.Context, id string, requester domain.Requester) error
	Stats(ctx context.Context, requester domain.Requester) (*domain.ParcelStats, error)
	Lockers(ctx context.Context) (*domain.Occupancy, error)
	Capacity(ctx context.Context) (*CapacityView, error)
}

// MirrorRepairer re-copies a parcel from the primary store to the mirror.
type MirrorRepairer interface {
	Resync(ctx context.Context, parcelID string) error
}
