package domain

import "sort"

// LockerCount is the number of physical COD lockers. Lockers are numbered
// 1..LockerCount.
const LockerCount = 5

// ValidLocker reports whether n names a physical locker.
func ValidLocker(n int) bool {
	return n >= 1 && n <= LockerCount
}

// AllocateLocker returns the lowest-numbered locker not present in occupied.
// Values outside 1..LockerCount are ignored. The allocator is stateless:
// callers pass the occupancy they just read from the primary store.
func AllocateLocker(occupied []int) (int, error) {
	taken := make(map[int]struct{}, len(occupied))
	for _, n := range occupied {
		if ValidLocker(n) {
			taken[n] = struct{}{}
		}
	}
	if len(taken) >= LockerCount {
		return 0, ErrNoLockerAvailable
	}
	for n := 1; n <= LockerCount; n++ {
		if _, ok := taken[n]; !ok {
			return n, nil
		}
	}
	return 0, ErrNoLockerAvailable
}

// Occupancy is the set of lockers held by active COD parcels.
type Occupancy struct {
	Occupied []int `json:"occupied"`
	Free     []int `json:"free"`
}

// NewOccupancy builds a sorted occupied/free split from the given locker numbers.
func NewOccupancy(occupied []int) Occupancy {
	taken := make(map[int]struct{}, len(occupied))
	for _, n := range occupied {
		if ValidLocker(n) {
			taken[n] = struct{}{}
		}
	}
	o := Occupancy{Occupied: make([]int, 0, len(taken)), Free: make([]int, 0, LockerCount)}
	for n := 1; n <= LockerCount; n++ {
		if _, ok := taken[n]; ok {
			o.Occupied = append(o.Occupied, n)
		} else {
			o.Free = append(o.Free, n)
		}
	}
	sort.Ints(o.Occupied)
	return o
}

// Full reports whether every locker is taken.
func (o Occupancy) Full() bool {
	return len(o.Occupied) >= LockerCount
}
