package handler

import (
	"errors"

	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/ports"
)

// --- Service result → HTTP response ---

func toParcelResponse(p *domain.Parcel) parcelResponse {
	resp := parcelResponse{
		ID:             p.ID,
		TrackingNumber: p.TrackingNumber,
		OwnerID:        p.OwnerID,
		Kind:           string(p.Kind),
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
		Links: parcelLinks{
			Self:        "/v1/parcels/" + p.ID,
			Transitions: "/v1/parcels/" + p.ID + "/transitions",
		},
	}
	if p.Kind == domain.KindCOD && p.LockerNumber > 0 {
		n := p.LockerNumber
		resp.LockerNumber = &n
	}
	return resp
}

func toListResponse(parcels []*domain.Parcel) listParcelsResponse {
	data := make([]parcelResponse, 0, len(parcels))
	for _, p := range parcels {
		data = append(data, toParcelResponse(p))
	}
	return listParcelsResponse{Data: data, Count: len(data)}
}

func toBatchResponse(r *ports.BatchTransitionResult) batchTransitionResponse {
	items := make([]transitionItemResponse, 0, len(r.Items))
	for _, it := range r.Items {
		item := transitionItemResponse{ParcelID: it.ParcelID, OK: it.OK}
		if it.Err != nil {
			item.Code = itemErrorCode(it.Err)
			item.Error = it.Err.Error()
			if item.Code == "internal" || item.Code == "store_unavailable" {
				item.Error = "transition could not be applied, retry later"
			}
		}
		items = append(items, item)
	}
	return batchTransitionResponse{Items: items, Succeeded: r.Succeeded, Failed: r.Failed}
}

func toLockersResponse(o *domain.Occupancy) lockersResponse {
	return lockersResponse{Total: domain.LockerCount, Occupied: o.Occupied, Free: o.Free}
}

func toCapacityResponse(v *ports.CapacityView) capacityResponse {
	return capacityResponse{
		Percentage:     v.Percentage,
		Threshold:      domain.CapacityThreshold,
		CanAdmitNonCOD: v.CanAdmitNonCOD,
		Reading:        v.Snapshot,
	}
}

// itemErrorCode reports per-item batch failures with the same codes the
// error handler uses for single requests.
func itemErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, domain.ErrParcelNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
