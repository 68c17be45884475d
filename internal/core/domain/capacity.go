package domain

import (
	"math"
	"time"
)

// CapacityThreshold is the fill percentage at or above which NonCOD parcels
// are refused.
const CapacityThreshold = 90.0

// DisplayMode selects which sensor reading is authoritative.
type DisplayMode string

const (
	DisplayPercentage DisplayMode = "percentage"
	DisplayHeight     DisplayMode = "height"
)

// CapacitySnapshot is the latest reading of the shared bin's fill level,
// produced by the external sensor feed.
type CapacitySnapshot struct {
	HeightCm       float64     `json:"height_cm" bson:"height_cm"`
	FillPercentage *float64    `json:"fill_percentage,omitempty" bson:"fill_percentage,omitempty"`
	MaxHeightCm    float64     `json:"max_height_cm" bson:"max_height_cm"`
	DisplayMode    DisplayMode `json:"display_mode,omitempty" bson:"display_mode,omitempty"`
	LastUpdatedAt  time.Time   `json:"last_updated_at" bson:"updated_at"`
	SourceDeviceID string      `json:"source_device_id" bson:"device_id"`
}

// Percentage returns the fill level in percent.
//
// Unreadable input is treated as a full bin (100): a nil snapshot, NaN or
// infinite values, or a height reading without a positive maximum.
func (s *CapacitySnapshot) Percentage() float64 {
	if s == nil {
		return 100
	}
	usePct := s.FillPercentage != nil
	if s.DisplayMode == DisplayHeight && s.MaxHeightCm > 0 {
		usePct = false
	}
	if usePct {
		return sanePercentage(*s.FillPercentage)
	}
	if s.MaxHeightCm <= 0 || !finite(s.MaxHeightCm) || !finite(s.HeightCm) {
		return 100
	}
	return sanePercentage(s.HeightCm / s.MaxHeightCm * 100)
}

// CanAdmitNonCOD reports whether a NonCOD parcel may be registered given the
// latest capacity reading.
func CanAdmitNonCOD(s *CapacitySnapshot) bool {
	return s.Percentage() < CapacityThreshold
}

func sanePercentage(p float64) float64 {
	if !finite(p) {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
