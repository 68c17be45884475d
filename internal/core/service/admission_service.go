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

const defaultAdmissionAttempts = 8

// AdmissionOptions tunes the admission loop.
type AdmissionOptions struct {
	// MaxAttempts bounds how many times a COD admission re-reads occupancy
	// after losing a locker race.
	MaxAttempts int
	Retry       RetryPolicy
}

// AdmissionService registers new parcels. COD parcels get the lowest free
// locker; NonCOD parcels pass through the capacity gate.
type AdmissionService struct {
	primary     ports.ParcelRepository
	mirror      *DualStoreMirror
	capacity    ports.CapacityReader
	idempotency ports.IdempotencyStore
	activity    *ActivityRecorder
	maxAttempts int
	retry       RetryPolicy
	logger      zerolog.Logger
}

// NewAdmissionService builds the admission controller. idempotency may be nil.
func NewAdmissionService(
	primary ports.ParcelRepository,
	mirror *DualStoreMirror,
	capacity ports.CapacityReader,
	idempotency ports.IdempotencyStore,
	activity *ActivityRecorder,
	opts AdmissionOptions,
	logger zerolog.Logger,
) *AdmissionService {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultAdmissionAttempts
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = DefaultRetryPolicy
	}
	return &AdmissionService{
		primary:     primary,
		mirror:      mirror,
		capacity:    capacity,
		idempotency: idempotency,
		activity:    activity,
		maxAttempts: opts.MaxAttempts,
		retry:       opts.Retry,
		logger:      logger,
	}
}

// Create validates and registers a parcel. If an idempotency key is provided
// and already bound, the previously created parcel is returned without side
// effects.
func (s *AdmissionService) Create(ctx context.Context, input ports.CreateParcelInput) (*ports.ParcelResult, error) {
	start := time.Now()
	result := "ok"
	defer func() {
		metrics.AdmissionDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	trackingNumber := domain.NormalizeTrackingNumber(input.TrackingNumber)
	kind := domain.ParcelKind(input.Kind)
	switch {
	case trackingNumber == "":
		result = "rejected"
		return nil, s.reject("invalid_input", fmt.Errorf("create parcel: %w: tracking number is required", domain.ErrInvalidInput))
	case input.Requester.ID == "":
		result = "rejected"
		return nil, s.reject("invalid_input", fmt.Errorf("create parcel: %w: requester is required", domain.ErrInvalidInput))
	case !kind.Valid():
		result = "rejected"
		return nil, s.reject("invalid_input", fmt.Errorf("create parcel: %w: unknown kind %q", domain.ErrInvalidInput, input.Kind))
	}

	key := ""
	if input.IdempotencyKey != "" && s.idempotency != nil {
		key = input.Requester.ID + "/" + input.IdempotencyKey
		replay, err := s.replay(ctx, key)
		switch {
		case err != nil:
			result = "rejected"
			return nil, err
		case replay != nil:
			return replay, nil
		}
	}

	parcel, err := s.admit(ctx, trackingNumber, kind, input.Requester.ID)
	if err != nil {
		if key != "" {
			if rerr := s.idempotency.Release(context.WithoutCancel(ctx), key); rerr != nil {
				s.logger.Warn().Err(rerr).Str("idempotency_key", input.IdempotencyKey).Msg("failed to release idempotency key")
			}
		}
		if domain.IsBusinessRejection(err) {
			result = "rejected"
		} else {
			result = "error"
		}
		return nil, err
	}

	if key != "" {
		if berr := s.idempotency.Bind(context.WithoutCancel(ctx), key, parcel.ID); berr != nil {
			s.logger.Warn().Err(berr).Str("idempotency_key", input.IdempotencyKey).Msg("failed to bind idempotency key")
		}
	}

	metrics.ParcelsAdmittedTotal.WithLabelValues(string(kind)).Inc()
	s.logger.Info().
		Str("parcel_id", parcel.ID).
		Str("tracking_number", parcel.TrackingNumber).
		Str("owner_id", parcel.OwnerID).
		Str("kind", string(parcel.Kind)).
		Int("locker_number", parcel.LockerNumber).
		Msg("parcel admitted")

	s.activity.Record(ctx, domain.ActivityEvent{
		OwnerID:        parcel.OwnerID,
		ParcelID:       parcel.ID,
		TrackingNumber: parcel.TrackingNumber,
		Action:         domain.ActionAdded,
		NewStatus:      parcel.Status,
	})

	return &ports.ParcelResult{Parcel: parcel}, nil
}

// replay claims key. It returns the earlier result when the key is already
// bound, or nil when this request owns the key now.
func (s *AdmissionService) replay(ctx context.Context, key string) (*ports.ParcelResult, error) {
	claimed, parcelID, err := s.idempotency.Claim(ctx, key)
	if err != nil {
		// Processing anyway: a missing key costs a possible duplicate, an
		// outage here would cost every admission.
		s.logger.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency check failed, processing anyway")
		return nil, nil
	}
	if claimed {
		return nil, nil
	}
	if parcelID == "" {
		return nil, fmt.Errorf("create parcel: %w", domain.ErrDuplicateRequest)
	}

	existing, err := s.primary.FindByID(ctx, parcelID)
	if errors.Is(err, domain.ErrParcelNotFound) {
		// The parcel was deleted since; admit again and rebind the key.
		s.logger.Info().Str("idempotency_key", key).Str("parcel_id", parcelID).Msg("idempotent parcel deleted, admitting again")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create parcel: replay: %w", err)
	}
	s.logger.Info().Str("idempotency_key", key).Str("parcel_id", existing.ID).Msg("idempotent replay")
	return &ports.ParcelResult{Parcel: existing, AlreadyExisted: true}, nil
}

func (s *AdmissionService) admit(ctx context.Context, trackingNumber string, kind domain.ParcelKind, ownerID string) (*domain.Parcel, error) {
	parcel := &domain.Parcel{
		TrackingNumber: trackingNumber,
		OwnerID:        ownerID,
		Kind:           kind,
		Status:         domain.StatusInTransit,
	}

	if kind == domain.KindNonCOD {
		if err := s.checkCapacity(ctx); err != nil {
			return nil, err
		}
		if _, err := s.mirror.Create(ctx, parcel); err != nil {
			return nil, s.reject("store", fmt.Errorf("create parcel: %w", err))
		}
		return parcel, nil
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		lockers, err := retry(ctx, s.retry, s.primary.ActiveLockers)
		if err != nil {
			return nil, s.reject("store", fmt.Errorf("create parcel: read lockers: %w", err))
		}
		if domain.NewOccupancy(lockers).Full() {
			return nil, s.reject("cod_limit", fmt.Errorf("create parcel: %w", domain.ErrCodLimitReached))
		}

		locker, err := domain.AllocateLocker(lockers)
		if err != nil {
			s.logger.Error().Err(err).Ints("occupied", lockers).Msg("locker allocation failed after limit check passed")
			return nil, s.reject("no_locker", fmt.Errorf("create parcel: %w", err))
		}
		parcel.LockerNumber = locker

		_, err = s.mirror.Create(ctx, parcel)
		if err == nil {
			return parcel, nil
		}
		if !errors.Is(err, domain.ErrLockerConflict) {
			return nil, s.reject("store", fmt.Errorf("create parcel: %w", err))
		}

		metrics.AdmissionConflictsTotal.Inc()
		s.logger.Debug().Int("locker_number", locker).Int("attempt", attempt).Msg("locker claimed concurrently, retrying")
		if werr := sleep(ctx, s.retry.backoff(attempt-1)); werr != nil {
			return nil, s.reject("store", fmt.Errorf("create parcel: %w: %w", domain.ErrStoreUnavailable, werr))
		}
	}

	return nil, s.reject("store", fmt.Errorf("create parcel: %w: locker contention after %d attempts", domain.ErrStoreUnavailable, s.maxAttempts))
}

// checkCapacity applies the capacity gate. An unreadable or missing reading
// counts as a full bin.
func (s *AdmissionService) checkCapacity(ctx context.Context) error {
	snapshot, err := retry(ctx, s.retry, s.capacity.Latest)
	if err != nil {
		s.logger.Warn().Err(err).Msg("capacity reading unavailable, treating bin as full")
		snapshot = nil
	}
	if !domain.CanAdmitNonCOD(snapshot) {
		return s.reject("capacity", fmt.Errorf("create parcel: %w (fill %.1f%%)", domain.ErrCapacityExceeded, snapshot.Percentage()))
	}
	return nil
}

func (s *AdmissionService) reject(reason string, err error) error {
	metrics.AdmissionRejectionsTotal.WithLabelValues(reason).Inc()
	return err
}
