package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/locker-system/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors. Code is a
// stable machine-readable identifier the front end branches on.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", "code": "<code>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, resp := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, auth middleware, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message), Code: statusCode(he.Code)}
	}

	// Business-rule rejections carry their own message.
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"}
	case errors.Is(err, domain.ErrImmutableField):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "immutable_field"}
	case errors.Is(err, domain.ErrCodLimitReached):
		return http.StatusConflict, errorResponse{Error: "all COD lockers are occupied", Code: "cod_limit_reached"}
	case errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusConflict, errorResponse{Error: "bin capacity exceeded", Code: "capacity_exceeded"}
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, errorResponse{Error: "a request with this idempotency key is in progress", Code: "duplicate_request"}
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "illegal_transition"}
	case errors.Is(err, domain.ErrParcelNotFound):
		return http.StatusNotFound, errorResponse{Error: "parcel not found", Code: "not_found"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "access forbidden", Code: "forbidden"}
	case errors.Is(err, domain.ErrStoreUnavailable):
		log.Warn().Err(err).Str("path", c.Path()).Msg("store unavailable")
		return http.StatusServiceUnavailable, errorResponse{Error: "service temporarily unavailable, retry later", Code: "store_unavailable"}
	case errors.Is(err, domain.ErrNoLockerAvailable):
		log.Error().Err(err).Str("path", c.Path()).Msg("locker allocation inconsistent with occupancy")
		return http.StatusInternalServerError, errorResponse{Error: "no locker available", Code: "no_locker_available"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "internal"}
}

// statusCode turns an HTTP status into a snake_case code, e.g. 404 → "not_found".
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
