package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/locker-system/internal/core/ports"
)

// ParcelHandler handles HTTP requests for parcel registration and owner
// operations.
type ParcelHandler struct {
	admission ports.AdmissionService
	parcels   ports.ParcelService
}

func NewParcelHandler(admission ports.AdmissionService, parcels ports.ParcelService) *ParcelHandler {
	return &ParcelHandler{admission: admission, parcels: parcels}
}

// Create handles POST /v1/parcels.
//
// A replayed Idempotency-Key returns the original parcel with 200 instead of 201.
//
// @Summary      Register a parcel
// @Tags         parcels
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string               false  "Idempotency key to prevent duplicate submissions"
// @Param        body             body      createParcelRequest  true   "Parcel details"
// @Success      201              {object}  parcelResponse
// @Success      200              {object}  parcelResponse
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Failure      409              {object}  errorResponse  "cod_limit_reached, capacity_exceeded or duplicate_request"
// @Failure      503              {object}  errorResponse
// @Router       /v1/parcels [post]
func (h *ParcelHandler) Create(c echo.Context) error {
	requester, err := ctxRequester(c)
	if err != nil {
		return err
	}

	var req createParcelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.admission.Create(c.Request().Context(), ports.CreateParcelInput{
		TrackingNumber: req.TrackingNumber,
		Kind:           req.Kind,
		Requester:      requester,
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if result.AlreadyExisted {
		status = http.StatusOK
		c.Response().Header().Set("Idempotent-Replayed", "true")
	}
	return c.JSON(status, toParcelResponse(result.Parcel))
}

// List handles GET /v1/parcels.
//
// @Summary      List the caller's parcels
// @Tags         parcels
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Filter by status"  Enums(in_transit, arrived, collected)
// @Param        kind    query     string  false  "Filter by kind"    Enums(cod, non_cod)
// @Param        limit   query     int     false  "Maximum number of parcels (1-500)"
// @Success      200     {object}  listParcelsResponse
// @Failure      400     {object}  errorResponse
// @Failure      401     {object}  errorResponse
// @Router       /v1/parcels [get]
func (h *ParcelHandler) List(c echo.Context) error {
	requester, err := ctxRequester(c)
	if err != nil {
		return err
	}

	var q listParcelsQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	if err := c.Validate(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	parcels, err := h.parcels.List(c.Request().Context(), ports.ListParcelsInput{
		Requester: requester,
		Status:    q.Status,
		Kind:      q.Kind,
		Limit:     q.Limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(parcels))
}

// Get handles GET /v1/parcels/:id.
//
// @Summary      Get a parcel
// @Tags         parcels
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Parcel id"
// @Success      200  {object}  parcelResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/parcels/{id} [get]
func (h *ParcelHandler) Get(c echo.Context) error {
	requester, err := ctxRequester(c)
	if err != nil {
		return err
	}

	p, err := h.parcels.Get(c.Request().Context(), c.Param("id"), requester)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toParcelResponse(p))
}

// Update handles PATCH /v1/parcels/:id. Only the tracking number is editable.
//
// @Summary      Edit a parcel
// @Tags         parcels
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "Parcel id"
// @Param        body  body      updateParcelRequest  true  "Fields to change"
// @Success      200   {object}  parcelResponse
// @Failure      400   {object}  errorResponse  "invalid_input or immutable_field"
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/parcels/{id} [patch]
func (h *ParcelHandler) Update(c echo.Context) error {
	requester, err := ctxRequester(c)
	if err != nil {
		return err
	}

	var req updateParcelRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := h.parcels.Update(c.Request().Context(), ports.UpdateParcelInput{
		ParcelID:       c.Param("id"),
		Requester:      requester,
		TrackingNumber: req.TrackingNumber,
		Kind:           req.Kind,
		LockerNumber:   req.LockerNumber,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toParcelResponse(p))
}

// Delete handles DELETE /v1/parcels/:id.
//
// @Summary      Delete a parcel
// @Tags         parcels
// @Security     BearerAuth
// @Param        id   path  string  true  "Parcel id"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/parcels/{id} [delete]
func (h *ParcelHandler) Delete(c echo.Context) error {
	requester, err := ctxRequester(c)
	if err != nil {
		return err
	}

	if err := h.parcels.Delete(c.Request().Context(), c.Param("id"), requester); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Stats handles GET /v1/parcels/stats.
//
// @Summary      Parcel statistics for the caller
// @Tags         parcels
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.ParcelStats
// @Failure      401  {object}  errorResponse
// @Router       /v1/parcels/stats [get]
func (h *ParcelHandler) Stats(c echo.Context) error {
	requester, err := ctxRequester(c)
	if err != nil {
		return err
	}

	stats, err := h.parcels.Stats(c.Request().Context(), requester)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// Lockers handles GET /v1/lockers.
//
// @Summary      Locker occupancy
// @Tags         lockers
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  lockersResponse
// @Router       /v1/lockers [get]
func (h *ParcelHandler) Lockers(c echo.Context) error {
	occ, err := h.parcels.Lockers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toLockersResponse(occ))
}

// Capacity handles GET /v1/capacity.
//
// @Summary      Latest bin capacity reading
// @Tags         lockers
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  capacityResponse
// @Router       /v1/capacity [get]
func (h *ParcelHandler) Capacity(c echo.Context) error {
	view, err := h.parcels.Capacity(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCapacityResponse(view))
}
