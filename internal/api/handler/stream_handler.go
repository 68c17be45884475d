package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/hub"
)

const heartbeatInterval = 15 * time.Second

// Watcher opens live parcel subscriptions.
type Watcher interface {
	Watch(ctx context.Context, filter hub.WatchFilter) *hub.Subscription
}

// StreamHandler serves a subscription as server-sent events.
type StreamHandler struct {
	watcher   Watcher
	heartbeat time.Duration
}

func NewStreamHandler(watcher Watcher) *StreamHandler {
	return &StreamHandler{watcher: watcher, heartbeat: heartbeatInterval}
}

type snapshotEvent struct {
	Change   *changeResponse    `json:"change,omitempty"`
	Parcels  []parcelResponse   `json:"parcels"`
	Stats    domain.ParcelStats `json:"stats"`
	Snapshot time.Time          `json:"snapshot_at"`
}

type changeResponse struct {
	Type     string    `json:"type"`
	ParcelID string    `json:"parcel_id"`
	At       time.Time `json:"at"`
}

// Stream handles GET /v1/parcels/stream.
//
// Every message is a full snapshot of the caller's parcels with recomputed
// statistics. Operators may pass owner_id to watch another owner, or omit it
// to watch everyone.
//
// @Summary      Live parcel snapshots
// @Tags         parcels
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        status    query  string  false  "Filter by status"  Enums(in_transit, arrived, collected)
// @Param        kind      query  string  false  "Filter by kind"    Enums(cod, non_cod)
// @Param        owner_id  query  string  false  "Owner to watch (operators only)"
// @Success      200       {object}  snapshotEvent
// @Failure      400       {object}  errorResponse
// @Failure      401       {object}  errorResponse
// @Router       /v1/parcels/stream [get]
func (h *StreamHandler) Stream(c echo.Context) error {
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

	filter := hub.WatchFilter{OwnerID: requester.ID, Status: q.Status, Kind: q.Kind}
	if requester.Role == domain.RoleOperator {
		filter.OwnerID = c.QueryParam("owner_id")
	}

	ctx := c.Request().Context()
	sub := h.watcher.Watch(ctx, filter)
	defer sub.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := writeSnapshot(res, ev); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeSnapshot(res *echo.Response, ev hub.ChangeEvent) error {
	payload := snapshotEvent{
		Parcels:  toListResponse(ev.Parcels).Data,
		Stats:    ev.Stats,
		Snapshot: ev.At,
	}
	name := "snapshot"
	if ev.Change.Type != "" {
		name = string(ev.Change.Type)
		payload.Change = &changeResponse{Type: string(ev.Change.Type), ParcelID: ev.Change.ParcelID, At: ev.Change.At}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(res, "event: %s\ndata: %s\n\n", name, data)
	return err
}
