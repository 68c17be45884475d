package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/locker-system/internal/core/ports"
)

// TransitionHandler handles status changes.
type TransitionHandler struct {
	service ports.TransitionService
}

// NewTransitionHandler creates a TransitionHandler backed by the given service.
func NewTransitionHandler(service ports.TransitionService) *TransitionHandler {
	return &TransitionHandler{service: service}
}

// Transition handles POST /v1/parcels/:id/transitions.
//
// @Summary      Advance a parcel's status
// @Tags         transitions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Parcel id"
// @Param        body  body      transitionRequest  true  "Target status"
// @Success      200   {object}  parcelResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse  "illegal_transition"
// @Router       /v1/parcels/{id}/transitions [post]
func (h *TransitionHandler) Transition(c echo.Context) error {
	requester, err := ctxRequester(c)
	if err != nil {
		return err
	}

	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := h.service.Transition(c.Request().Context(), ports.TransitionInput{
		ParcelID:  c.Param("id"),
		Status:    req.Status,
		Requester: requester,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toParcelResponse(p))
}

// TransitionBatch handles POST /v1/parcels/transitions. Items are applied
// independently; the response reports each one.
//
// @Summary      Advance many parcels to one status
// @Tags         transitions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      batchTransitionRequest  true  "Parcel ids and target status"
// @Success      200   {object}  batchTransitionResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /v1/parcels/transitions [post]
func (h *TransitionHandler) TransitionBatch(c echo.Context) error {
	requester, err := ctxRequester(c)
	if err != nil {
		return err
	}

	var req batchTransitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.TransitionBatch(c.Request().Context(), ports.BatchTransitionInput{
		ParcelIDs: req.ParcelIDs,
		Status:    req.Status,
		Requester: requester,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBatchResponse(result))
}
