package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/locker-system/internal/core/ports"
)

// AdminHandler exposes operator maintenance actions.
type AdminHandler struct {
	repairer ports.MirrorRepairer
}

func NewAdminHandler(repairer ports.MirrorRepairer) *AdminHandler {
	return &AdminHandler{repairer: repairer}
}

// ResyncMirror handles POST /v1/admin/mirror/:id/resync. It rewrites the
// locker-facing copy of a parcel from the primary record.
//
// @Summary      Rebuild a parcel's mirror entry
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Parcel id"
// @Success      200  {object}  messageResponse
// @Failure      403  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /v1/admin/mirror/{id}/resync [post]
func (h *AdminHandler) ResyncMirror(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "parcel id is required")
	}
	if err := h.repairer.Resync(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "mirror resynced"})
}
