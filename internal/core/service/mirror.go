package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/ports"
	"github.com/99minutos/locker-system/internal/pkg/metrics"
)

const (
	receiptsCollection = "receipts"
	mirrorTimeout      = 5 * time.Second
	warningBuffer      = 64
)

// MirrorWarning reports a mirror write that failed after the primary write
// succeeded. The primary record is authoritative; the mirror has drifted
// until a repair succeeds.
type MirrorWarning struct {
	Op       string
	ParcelID string
	Err      error
	At       time.Time
}

// RepairQueue accepts parcel ids whose mirror entry must be rebuilt.
type RepairQueue interface {
	Enqueue(parcelID string)
}

// Patch performs one primary-store update and returns the stored result.
type Patch func(ctx context.Context, primary ports.ParcelRepository) (*domain.Parcel, error)

// StatusPatch moves a parcel from one status to another, conditionally.
func StatusPatch(id string, from, to domain.ParcelStatus) Patch {
	return func(ctx context.Context, primary ports.ParcelRepository) (*domain.Parcel, error) {
		return primary.UpdateStatus(ctx, id, from, to)
	}
}

// TrackingNumberPatch replaces a parcel's tracking number.
func TrackingNumberPatch(id, trackingNumber string) Patch {
	return func(ctx context.Context, primary ports.ParcelRepository) (*domain.Parcel, error) {
		return primary.UpdateTrackingNumber(ctx, id, trackingNumber)
	}
}

// DualStoreMirror applies every mutation to the primary store first and then,
// best effort, to the mirror store. Mirror failures never fail the call; they
// are reported on Warnings and handed to the repair queue.
type DualStoreMirror struct {
	primary   ports.ParcelRepository
	mirror    ports.MirrorStore
	seq       ports.SequenceAssigner
	publisher ports.ChangePublisher
	repairs   RepairQueue
	warnings  chan MirrorWarning
	retry     RetryPolicy
	log       zerolog.Logger
	now       func() time.Time
}

// NewDualStoreMirror wires the two stores together. publisher may be nil.
func NewDualStoreMirror(
	primary ports.ParcelRepository,
	mirror ports.MirrorStore,
	seq ports.SequenceAssigner,
	publisher ports.ChangePublisher,
	log zerolog.Logger,
) *DualStoreMirror {
	return &DualStoreMirror{
		primary:   primary,
		mirror:    mirror,
		seq:       seq,
		publisher: publisher,
		warnings:  make(chan MirrorWarning, warningBuffer),
		retry:     DefaultRetryPolicy,
		log:       log,
		now:       time.Now,
	}
}

// SetRepairQueue installs the queue that receives drifted parcel ids.
func (m *DualStoreMirror) SetRepairQueue(q RepairQueue) {
	m.repairs = q
}

// SetRetryPolicy overrides the retry policy for primary writes.
func (m *DualStoreMirror) SetRetryPolicy(p RetryPolicy) {
	m.retry = p
}

// Warnings returns the drift warning channel. Warnings are dropped when
// nobody drains it.
func (m *DualStoreMirror) Warnings() <-chan MirrorWarning {
	return m.warnings
}

// Create inserts p into the primary store, then mirrors it, and returns the
// primary id.
func (m *DualStoreMirror) Create(ctx context.Context, p *domain.Parcel) (string, error) {
	err := retryErr(ctx, m.retry, func(ctx context.Context) error {
		return m.primary.Insert(ctx, p)
	})
	if err != nil {
		return "", err
	}

	m.copy(ctx, "create", p)
	m.publish(ports.ChangeCreated, p.ID, p.OwnerID)
	return p.ID, nil
}

// Update applies patch to the primary record and mirrors the result.
func (m *DualStoreMirror) Update(ctx context.Context, id string, patch Patch) (*domain.Parcel, error) {
	p, err := retry(ctx, m.retry, func(ctx context.Context) (*domain.Parcel, error) {
		return patch(ctx, m.primary)
	})
	if err != nil {
		return nil, err
	}

	m.copy(ctx, "update", p)
	m.publish(ports.ChangeUpdated, id, p.OwnerID)
	return p, nil
}

// Delete removes the primary record, then its mirror entries.
func (m *DualStoreMirror) Delete(ctx context.Context, id, ownerID string) error {
	err := retryErr(ctx, m.retry, func(ctx context.Context) error {
		return m.primary.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	mctx, cancel := m.mirrorContext(ctx)
	defer cancel()
	if err := m.mirror.Remove(mctx, id); err != nil {
		m.drift("delete", id, err)
	}
	m.publish(ports.ChangeDeleted, id, ownerID)
	return nil
}

// Resync rebuilds the mirror entry of a parcel from the primary store's
// current state, or removes it when the primary record is gone.
func (m *DualStoreMirror) Resync(ctx context.Context, id string) error {
	p, err := m.primary.FindByID(ctx, id)
	if errors.Is(err, domain.ErrParcelNotFound) {
		if err := m.mirror.Remove(ctx, id); err != nil {
			return fmt.Errorf("resync %s: remove: %w", id, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("resync %s: %w", id, err)
	}
	if err := m.writeMirror(ctx, p); err != nil {
		return fmt.Errorf("resync %s: %w", id, err)
	}
	return nil
}

func (m *DualStoreMirror) copy(ctx context.Context, op string, p *domain.Parcel) {
	mctx, cancel := m.mirrorContext(ctx)
	defer cancel()
	if err := m.writeMirror(mctx, p); err != nil {
		m.drift(op, p.ID, err)
	}
}

// writeMirror binds a sequence number to the parcel on first sight and writes
// both mirror paths.
func (m *DualStoreMirror) writeMirror(ctx context.Context, p *domain.Parcel) error {
	seq, found, err := m.mirror.SequenceFor(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("mirror sequence lookup: %w", err)
	}
	if !found {
		next, err := m.seq.Next(ctx, receiptsCollection)
		if err != nil {
			return fmt.Errorf("mirror sequence: %w", err)
		}
		if seq, err = m.mirror.ClaimSequence(ctx, p.ID, next); err != nil {
			return fmt.Errorf("mirror sequence claim: %w", err)
		}
	}
	if err := m.mirror.Put(ctx, seq, p); err != nil {
		return fmt.Errorf("mirror put: %w", err)
	}
	return nil
}

// mirrorContext detaches the mirror write from caller cancellation so that a
// client hanging up after the primary commit does not cause drift.
func (m *DualStoreMirror) mirrorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
}

func (m *DualStoreMirror) drift(op, id string, err error) {
	metrics.MirrorDriftTotal.WithLabelValues(op).Inc()
	m.log.Warn().Err(err).
		Str("parcel_id", id).
		Str("op", op).
		Msg("mirror write failed, primary record is authoritative")

	select {
	case m.warnings <- MirrorWarning{Op: op, ParcelID: id, Err: err, At: m.now().UTC()}:
	default:
	}
	if m.repairs != nil {
		m.repairs.Enqueue(id)
	}
}

func (m *DualStoreMirror) publish(t ports.ChangeType, id, ownerID string) {
	if m.publisher == nil {
		return
	}
	m.publisher.Publish(ports.Change{Type: t, ParcelID: id, OwnerID: ownerID, At: m.now().UTC()})
}
