package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/ports"
	"github.com/99minutos/locker-system/internal/pkg/metrics"
)

const (
	maxBatchSize     = 100
	batchConcurrency = 4
)

// TransitionService is the parcel state machine: it validates ownership and
// the forward-only status order, then applies the change through the mirror.
type TransitionService struct {
	primary  ports.ParcelRepository
	mirror   *DualStoreMirror
	activity *ActivityRecorder
	retry    RetryPolicy
	logger   zerolog.Logger
}

func NewTransitionService(primary ports.ParcelRepository, mirror *DualStoreMirror, activity *ActivityRecorder, logger zerolog.Logger) *TransitionService {
	return &TransitionService{
		primary:  primary,
		mirror:   mirror,
		activity: activity,
		retry:    DefaultRetryPolicy,
		logger:   logger,
	}
}

// Transition moves one parcel to its next status.
func (s *TransitionService) Transition(ctx context.Context, in ports.TransitionInput) (*domain.Parcel, error) {
	target := domain.ParcelStatus(in.Status)
	if !target.Valid() {
		return nil, fmt.Errorf("transition: %w: unknown status %q", domain.ErrInvalidInput, in.Status)
	}
	if in.ParcelID == "" {
		return nil, fmt.Errorf("transition: %w: parcel id is required", domain.ErrInvalidInput)
	}

	parcel, err := retry(ctx, s.retry, func(ctx context.Context) (*domain.Parcel, error) {
		return s.primary.FindByID(ctx, in.ParcelID)
	})
	if err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}
	if !parcel.OwnedBy(in.Requester.ID) {
		return nil, fmt.Errorf("transition: %w", domain.ErrForbidden)
	}
	if !parcel.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("transition: %w (from %s to %s)", domain.ErrIllegalTransition, parcel.Status, target)
	}

	from := parcel.Status
	updated, err := s.mirror.Update(ctx, parcel.ID, StatusPatch(parcel.ID, from, target))
	if errors.Is(err, domain.ErrStatusConflict) {
		// Lost a race, or an earlier attempt of this same write landed.
		current, ferr := s.primary.FindByID(ctx, parcel.ID)
		if ferr != nil {
			return nil, fmt.Errorf("transition: %w", ferr)
		}
		if current.Status == target {
			return current, nil
		}
		return nil, fmt.Errorf("transition: %w (from %s to %s)", domain.ErrIllegalTransition, current.Status, target)
	}
	if err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}

	metrics.TransitionsTotal.WithLabelValues(string(target)).Inc()
	s.logger.Info().
		Str("parcel_id", updated.ID).
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("parcel status changed")

	s.activity.Record(ctx, domain.ActivityEvent{
		OwnerID:        updated.OwnerID,
		ParcelID:       updated.ID,
		TrackingNumber: updated.TrackingNumber,
		Action:         domain.ActionStatusChanged,
		OldStatus:      from,
		NewStatus:      target,
	})
	return updated, nil
}

// TransitionBatch applies one target status to many parcels. It is not
// atomic: each item succeeds or fails on its own and is reported separately.
func (s *TransitionService) TransitionBatch(ctx context.Context, in ports.BatchTransitionInput) (*ports.BatchTransitionResult, error) {
	if len(in.ParcelIDs) == 0 {
		return nil, fmt.Errorf("transition batch: %w: no parcel ids", domain.ErrInvalidInput)
	}
	if len(in.ParcelIDs) > maxBatchSize {
		return nil, fmt.Errorf("transition batch: %w: at most %d parcels per batch", domain.ErrInvalidInput, maxBatchSize)
	}
	if !domain.ParcelStatus(in.Status).Valid() {
		return nil, fmt.Errorf("transition batch: %w: unknown status %q", domain.ErrInvalidInput, in.Status)
	}

	items := make([]ports.TransitionItemResult, len(in.ParcelIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, id := range in.ParcelIDs {
		g.Go(func() error {
			_, err := s.Transition(gctx, ports.TransitionInput{
				ParcelID:  id,
				Status:    in.Status,
				Requester: in.Requester,
			})
			items[i] = ports.TransitionItemResult{ParcelID: id, OK: err == nil, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	res := &ports.BatchTransitionResult{Items: items}
	for _, it := range items {
		if it.OK {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	return res, nil
}
