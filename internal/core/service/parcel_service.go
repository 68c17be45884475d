package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/ports"
)

// ParcelService serves owner reads and edits outside the status lifecycle.
type ParcelService struct {
	primary  ports.ParcelRepository
	mirror   *DualStoreMirror
	capacity ports.CapacityReader
	activity *ActivityRecorder
	retry    RetryPolicy
	logger   zerolog.Logger
}

func NewParcelService(primary ports.ParcelRepository, mirror *DualStoreMirror, capacity ports.CapacityReader, activity *ActivityRecorder, logger zerolog.Logger) *ParcelService {
	return &ParcelService{
		primary:  primary,
		mirror:   mirror,
		capacity: capacity,
		activity: activity,
		retry:    DefaultRetryPolicy,
		logger:   logger,
	}
}

// Get returns a parcel the requester may see. Operators see every parcel.
func (s *ParcelService) Get(ctx context.Context, id string, requester domain.Requester) (*domain.Parcel, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get parcel: %w", err)
	}
	if requester.Role != domain.RoleOperator && !p.OwnedBy(requester.ID) {
		return nil, fmt.Errorf("get parcel: %w", domain.ErrForbidden)
	}
	return p, nil
}

// List returns the requester's parcels. Operators list every owner.
func (s *ParcelService) List(ctx context.Context, in ports.ListParcelsInput) ([]*domain.Parcel, error) {
	if in.Status != "" && !domain.ParcelStatus(in.Status).Valid() {
		return nil, fmt.Errorf("list parcels: %w: unknown status %q", domain.ErrInvalidInput, in.Status)
	}
	if in.Kind != "" && !domain.ParcelKind(in.Kind).Valid() {
		return nil, fmt.Errorf("list parcels: %w: unknown kind %q", domain.ErrInvalidInput, in.Kind)
	}

	filter := ports.ListParcelsFilter{
		OwnerID: in.Requester.ID,
		Status:  in.Status,
		Kind:    in.Kind,
		Limit:   in.Limit,
	}
	if in.Requester.Role == domain.RoleOperator {
		filter.OwnerID = ""
	}
	parcels, err := retry(ctx, s.retry, func(ctx context.Context) ([]*domain.Parcel, error) {
		return s.primary.List(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}
	return parcels, nil
}

// Update edits the owner-editable fields. Kind and locker are fixed at
// admission; changing them would bypass the locker and capacity checks.
func (s *ParcelService) Update(ctx context.Context, in ports.UpdateParcelInput) (*domain.Parcel, error) {
	p, err := s.load(ctx, in.ParcelID)
	if err != nil {
		return nil, fmt.Errorf("update parcel: %w", err)
	}
	if !p.OwnedBy(in.Requester.ID) {
		return nil, fmt.Errorf("update parcel: %w", domain.ErrForbidden)
	}
	if in.Kind != nil && domain.ParcelKind(*in.Kind) != p.Kind {
		return nil, fmt.Errorf("update parcel: %w: kind", domain.ErrImmutableField)
	}
	if in.LockerNumber != nil && *in.LockerNumber != p.LockerNumber {
		return nil, fmt.Errorf("update parcel: %w: locker_number", domain.ErrImmutableField)
	}
	if in.TrackingNumber == nil {
		return p, nil
	}

	trackingNumber := domain.NormalizeTrackingNumber(*in.TrackingNumber)
	if trackingNumber == "" {
		return nil, fmt.Errorf("update parcel: %w: tracking number is required", domain.ErrInvalidInput)
	}
	if trackingNumber == p.TrackingNumber {
		return p, nil
	}

	updated, err := s.mirror.Update(ctx, p.ID, TrackingNumberPatch(p.ID, trackingNumber))
	if err != nil {
		return nil, fmt.Errorf("update parcel: %w", err)
	}
	s.logger.Info().Str("parcel_id", p.ID).Str("tracking_number", trackingNumber).Msg("parcel updated")
	s.activity.Record(ctx, domain.ActivityEvent{
		OwnerID:        updated.OwnerID,
		ParcelID:       updated.ID,
		TrackingNumber: updated.TrackingNumber,
		Action:         domain.ActionUpdated,
	})
	return updated, nil
}

// Delete removes a parcel. Deleting an active COD parcel frees its locker.
func (s *ParcelService) Delete(ctx context.Context, id string, requester domain.Requester) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return fmt.Errorf("delete parcel: %w", err)
	}
	if !p.OwnedBy(requester.ID) {
		return fmt.Errorf("delete parcel: %w", domain.ErrForbidden)
	}
	if err := s.mirror.Delete(ctx, p.ID, p.OwnerID); err != nil {
		return fmt.Errorf("delete parcel: %w", err)
	}

	s.logger.Info().Str("parcel_id", p.ID).Str("owner_id", p.OwnerID).Msg("parcel deleted")
	s.activity.Record(ctx, domain.ActivityEvent{
		OwnerID:        p.OwnerID,
		ParcelID:       p.ID,
		TrackingNumber: p.TrackingNumber,
		Action:         domain.ActionDeleted,
		OldStatus:      p.Status,
	})
	return nil
}

// Stats recomputes the requester's aggregates from a fresh snapshot.
func (s *ParcelService) Stats(ctx context.Context, requester domain.Requester) (*domain.ParcelStats, error) {
	parcels, err := s.List(ctx, ports.ListParcelsInput{Requester: requester})
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	lockers, err := retry(ctx, s.retry, s.primary.ActiveLockers)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	st := domain.ComputeStats(parcels, lockers, s.latestCapacity(ctx))
	return &st, nil
}

// Lockers returns the current locker occupancy.
func (s *ParcelService) Lockers(ctx context.Context) (*domain.Occupancy, error) {
	lockers, err := retry(ctx, s.retry, s.primary.ActiveLockers)
	if err != nil {
		return nil, fmt.Errorf("lockers: %w", err)
	}
	occ := domain.NewOccupancy(lockers)
	return &occ, nil
}

// Capacity returns the latest capacity reading and the gate decision.
func (s *ParcelService) Capacity(ctx context.Context) (*ports.CapacityView, error) {
	snapshot, err := retry(ctx, s.retry, s.capacity.Latest)
	if err != nil && !errors.Is(err, domain.ErrCapacityUnknown) {
		return nil, fmt.Errorf("capacity: %w", err)
	}
	return &ports.CapacityView{
		Snapshot:       snapshot,
		Percentage:     snapshot.Percentage(),
		CanAdmitNonCOD: domain.CanAdmitNonCOD(snapshot),
	}, nil
}

func (s *ParcelService) latestCapacity(ctx context.Context) *domain.CapacitySnapshot {
	snapshot, err := retry(ctx, s.retry, s.capacity.Latest)
	if err != nil {
		s.logger.Debug().Err(err).Msg("capacity reading unavailable")
		return nil
	}
	return snapshot
}

func (s *ParcelService) load(ctx context.Context, id string) (*domain.Parcel, error) {
	if id == "" {
		return nil, domain.ErrParcelNotFound
	}
	return retry(ctx, s.retry, func(ctx context.Context) (*domain.Parcel, error) {
		return s.primary.FindByID(ctx, id)
	})
}
