package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/locker-system/internal/api/middleware"
	"github.com/99minutos/locker-system/internal/core/domain"
)

// ctxRequester extracts the requester injected by the Auth middleware and
// fails fast before any service call when the middleware did not run.
func ctxRequester(c echo.Context) (domain.Requester, error) {
	id, _ := c.Get(middleware.CtxUserID).(string)
	if id == "" {
		return domain.Requester{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	role, _ := c.Get(middleware.CtxRole).(string)
	return domain.Requester{ID: id, Role: role}, nil
}
