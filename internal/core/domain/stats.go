package domain

// ParcelStats are the aggregates the UI displays. They are always derived
// from a full snapshot and never stored.
type ParcelStats struct {
	Total              int       `json:"total"`
	InTransit          int       `json:"in_transit"`
	Arrived            int       `json:"arrived"`
	Collected          int       `json:"collected"`
	OwnCOD             int       `json:"own_active_cod"`
	ActiveCOD          int       `json:"active_cod"`
	Lockers            Occupancy `json:"lockers"`
	CapacityPercentage float64   `json:"capacity_percentage"`
	CanAdmitNonCOD     bool      `json:"can_admit_non_cod"`
}

// ComputeStats derives ParcelStats. Totals come from parcels (usually one
// owner's); the active COD count and locker split come from activeLockers,
// the system-wide set held by active COD parcels.
func ComputeStats(parcels []*Parcel, activeLockers []int, capacity *CapacitySnapshot) ParcelStats {
	var st ParcelStats
	for _, p := range parcels {
		if p == nil {
			continue
		}
		st.Total++
		switch p.Status {
		case StatusInTransit:
			st.InTransit++
		case StatusArrived:
			st.Arrived++
		case StatusCollected:
			st.Collected++
		}
		if p.HoldsLocker() {
			st.OwnCOD++
		}
	}
	st.Lockers = NewOccupancy(activeLockers)
	st.ActiveCOD = len(st.Lockers.Occupied)
	st.CapacityPercentage = capacity.Percentage()
	st.CanAdmitNonCOD = CanAdmitNonCOD(capacity)
	return st
}
