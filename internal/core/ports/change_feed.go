package ports

import "time"

// ChangeType describes what happened to a parcel record.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change notifies listeners that a parcel record changed.
type Change struct {
	Type     ChangeType
	ParcelID string
	OwnerID  string // empty when unknown (e.g. deletes seen on a change stream)
	At       time.Time
}

// ChangePublisher fans a change out to live subscribers.
type ChangePublisher interface {
	Publish(change Change)
}
