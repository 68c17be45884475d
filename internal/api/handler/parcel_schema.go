package handler

import (
	"time"

	"github.com/99minutos/locker-system/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Request types ---

type createParcelRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required,max=64,printascii"`
	Kind           string `json:"kind"            validate:"required,oneof=cod non_cod"`
}

// updateParcelRequest is a partial update. kind and locker_number are decoded
// only so the service can reject them explicitly.
type updateParcelRequest struct {
	TrackingNumber *string `json:"tracking_number" validate:"omitempty,min=1,max=64,printascii"`
	Kind           *string `json:"kind"`
	LockerNumber   *int    `json:"locker_number"`
}

type listParcelsQuery struct {
	Status string `query:"status" validate:"omitempty,oneof=in_transit arrived collected"`
	Kind   string `query:"kind"   validate:"omitempty,oneof=cod non_cod"`
	Limit  int    `query:"limit"  validate:"omitempty,min=1,max=500"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,oneof=in_transit arrived collected"`
}

type batchTransitionRequest struct {
	ParcelIDs []string `json:"parcel_ids" validate:"required,min=1,max=100,dive,required"`
	Status    string   `json:"status"     validate:"required,oneof=in_transit arrived collected"`
}

// --- Response types ---
// These are separate from domain types so the JSON contract is not coupled
// to internal changes.

type parcelLinks struct {
	Self        string `json:"self"`
	Transitions string `json:"transitions"`
}

type parcelResponse struct {
	ID             string      `json:"id"`
	TrackingNumber string      `json:"tracking_number"`
	OwnerID        string      `json:"owner_id"`
	Kind           string      `json:"kind"`
	LockerNumber   *int        `json:"locker_number,omitempty"`
	Status         string      `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Links          parcelLinks `json:"_links"`
}

type listParcelsResponse struct {
	Data  []parcelResponse `json:"data"`
	Count int              `json:"count"`
}

type transitionItemResponse struct {
	ParcelID string `json:"parcel_id"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

type batchTransitionResponse struct {
	Items     []transitionItemResponse `json:"items"`
	Succeeded int                      `json:"succeeded"`
	Failed    int                      `json:"failed"`
}

type lockersResponse struct {
	Total    int   `json:"total"`
	Occupied []int `json:"occupied"`
	Free     []int `json:"free"`
}

type capacityResponse struct {
	Percentage     float64                  `json:"percentage"`
	Threshold      float64                  `json:"threshold"`
	CanAdmitNonCOD bool                     `json:"can_admit_non_cod"`
	Reading        *domain.CapacitySnapshot `json:"reading,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}
