package domain

import "errors"

// Business-rule rejections. These are expected outcomes, not failures, and the
// transport layer reports them with a specific code the UI can act on.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrCodLimitReached   = errors.New("cod parcel limit reached")
	ErrCapacityExceeded  = errors.New("bin capacity exceeded")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrImmutableField    = errors.New("field cannot be changed after creation")
)

// Lookup and ownership errors.
var (
	ErrParcelNotFound = errors.New("parcel not found")
	ErrForbidden      = errors.New("access forbidden")
	// ErrDuplicateRequest means a request with the same idempotency key is
	// still being processed.
	ErrDuplicateRequest = errors.New("duplicate request in flight")
)

// System errors.
var (
	// ErrNoLockerAvailable means the allocator found no free locker after the
	// limit check passed. It is unreachable while the active-locker index holds.
	ErrNoLockerAvailable = errors.New("no locker available")
	// ErrStoreUnavailable wraps network or backend failures; callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrLockerConflict is returned by the primary store when another writer
	// claimed the same locker first.
	ErrLockerConflict = errors.New("locker already claimed")
	// ErrStatusConflict is returned when a conditional status update lost a race.
	ErrStatusConflict = errors.New("parcel status changed concurrently")
	// ErrCapacityUnknown is returned when no capacity reading exists yet.
	ErrCapacityUnknown = errors.New("no capacity reading available")
)

// IsBusinessRejection reports whether err is a rule rejection rather than a
// system failure.
func IsBusinessRejection(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrCodLimitReached),
		errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrIllegalTransition),
		errors.Is(err, ErrImmutableField):
		return true
	}
	return false
}
