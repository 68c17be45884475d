package domain

import (
	"strings"
	"time"
)

// ParcelKind distinguishes cash-on-delivery parcels, which need a locker,
// from regular parcels dropped into the shared bin.
type ParcelKind string

const (
	KindCOD    ParcelKind = "cod"
	KindNonCOD ParcelKind = "non_cod"
)

// Valid reports whether k is a known parcel kind.
func (k ParcelKind) Valid() bool {
	return k == KindCOD || k == KindNonCOD
}

// ParcelStatus represents the lifecycle state of a parcel.
type ParcelStatus string

const (
	StatusInTransit ParcelStatus = "in_transit"
	StatusArrived   ParcelStatus = "arrived"
	StatusCollected ParcelStatus = "collected"
)

// validTransitions defines the allowed state machine transitions.
// Each status has exactly one successor; collected is terminal.
var validTransitions = map[ParcelStatus]ParcelStatus{
	StatusInTransit: StatusArrived,
	StatusArrived:   StatusCollected,
}

// Valid reports whether s is a known status.
func (s ParcelStatus) Valid() bool {
	switch s {
	case StatusInTransit, StatusArrived, StatusCollected:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is the immediate successor of s.
func (s ParcelStatus) CanTransitionTo(next ParcelStatus) bool {
	succ, ok := validTransitions[s]
	return ok && succ == next
}

// Active reports whether a parcel in this status still occupies its locker.
func (s ParcelStatus) Active() bool {
	return s == StatusInTransit || s == StatusArrived
}

// Parcel is the core aggregate root. It is stored in the primary store's
// receipts collection and mirrored to the key-value store.
type Parcel struct {
	ID             string       `json:"id" bson:"_id,omitempty"`
	TrackingNumber string       `json:"tracking_number" bson:"tracking_number"`
	OwnerID        string       `json:"owner_id" bson:"owner_id"`
	Kind           ParcelKind   `json:"kind" bson:"kind"`
	LockerNumber   int          `json:"locker_number,omitempty" bson:"locker_number,omitempty"`
	Status         ParcelStatus `json:"status" bson:"status"`
	CreatedAt      time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" bson:"updated_at"`
}

// HoldsLocker reports whether the parcel currently occupies a physical locker.
func (p *Parcel) HoldsLocker() bool {
	return p.Kind == KindCOD && p.Status.Active() && p.LockerNumber > 0
}

// OwnedBy reports whether requesterID owns the parcel.
func (p *Parcel) OwnedBy(requesterID string) bool {
	return requesterID != "" && p.OwnerID == requesterID
}

// NormalizeTrackingNumber trims surrounding whitespace from user input.
func NormalizeTrackingNumber(s string) string {
	return strings.TrimSpace(s)
}
