package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/ports"
)

const activityTimeout = 5 * time.Second

// ActivityRecorder sends activity-log events without making the caller wait.
// Failures are logged and dropped.
type ActivityRecorder struct {
	sink ports.ActivityLogger
	log  zerolog.Logger
	wg   sync.WaitGroup
	now  func() time.Time
}

// NewActivityRecorder wraps sink. A nil sink disables activity logging.
func NewActivityRecorder(sink ports.ActivityLogger, log zerolog.Logger) *ActivityRecorder {
	return &ActivityRecorder{sink: sink, log: log, now: time.Now}
}

// Record fills in the event id and time and ships it in the background.
func (r *ActivityRecorder) Record(ctx context.Context, e domain.ActivityEvent) {
	if r == nil || r.sink == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now().UTC()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), activityTimeout)
		defer cancel()
		if err := r.sink.Record(sendCtx, e); err != nil {
			r.log.Warn().Err(err).
				Str("parcel_id", e.ParcelID).
				Str("action", string(e.Action)).
				Msg("failed to record activity")
		}
	}()
}

// Wait blocks until every in-flight event has been sent or dropped.
func (r *ActivityRecorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
