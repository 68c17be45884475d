package domain

import "time"

// ActivityAction names what happened to a parcel in the activity log.
type ActivityAction string

const (
	ActionAdded         ActivityAction = "added"
	ActionStatusChanged ActivityAction = "status_changed"
	ActionUpdated       ActivityAction = "updated"
	ActionDeleted       ActivityAction = "deleted"
)

// ActivityEvent is a single fire-and-forget activity-log entry.
type ActivityEvent struct {
	ID             string
	OwnerID        string
	ParcelID       string
	TrackingNumber string
	Action         ActivityAction
	OldStatus      ParcelStatus // optional
	NewStatus      ParcelStatus // optional
	OccurredAt     time.Time
}
