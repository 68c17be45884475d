package ports

import (
	"context"

	"github.com/99minutos/locker-system/internal/core/domain"
)

// MirrorStore is the hardware-facing key-value copy of the receipts collection.
type MirrorStore interface {
	// SequenceFor returns the ordinal key already bound to a parcel, if any.
	SequenceFor(ctx context.Context, parcelID string) (seq int64, found bool, err error)
	// ClaimSequence binds seq to parcelID unless another sequence got there
	// first, and returns whichever sequence is bound afterwards.
	ClaimSequence(ctx context.Context, parcelID string, seq int64) (int64, error)
	// Put writes the full parcel under both its primary id and its sequence.
	Put(ctx context.Context, seq int64, p *domain.Parcel) error
	// Remove deletes every mirror entry of a parcel.
	Remove(ctx context.Context, parcelID string) error
}

// SequenceAssigner hands out monotonically increasing integers per collection.
type SequenceAssigner interface {
	Next(ctx context.Context, collection string) (int64, error)
}
