package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/locker-system/internal/core/domain"
)

func TestRetry_OnlyTransientErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"store unavailable", fmt.Errorf("find: %w", domain.ErrStoreUnavailable), 3},
		{"not found", domain.ErrParcelNotFound, 1},
		{"locker conflict", domain.ErrLockerConflict, 1},
		{"business rule", domain.ErrCodLimitReached, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := retry(context.Background(), fastRetry, func(context.Context) (int, error) {
				calls++
				return 0, tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Errorf("expected %v, got %v", tt.err, err)
			}
			if calls != tt.wantCalls {
				t.Errorf("got %d calls, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetry_RecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	v, err := retry(context.Background(), fastRetry, func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", domain.ErrStoreUnavailable
		}
		return "ok", nil
	})
	if err != nil || v != "ok" || calls != 2 {
		t.Errorf("v=%q err=%v calls=%d", v, err, calls)
	}
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := retryErr(ctx, RetryPolicy{Attempts: 5, BaseDelay: time.Hour}, func(context.Context) error {
		calls++
		return domain.ErrStoreUnavailable
	})
	if !errors.Is(err, domain.ErrStoreUnavailable) || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{BaseDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}
	for attempt, ceiling := range []time.Duration{10, 20, 40, 40, 40} {
		ceiling *= time.Millisecond
		for i := 0; i < 20; i++ {
			d := p.backoff(attempt)
			if d < ceiling/2 || d > ceiling {
				t.Fatalf("attempt %d: delay %s outside [%s, %s]", attempt, d, ceiling/2, ceiling)
			}
		}
	}
}

func TestActivityRecorder(t *testing.T) {
	sink := &memActivity{err: errors.New("sink down")}
	r := NewActivityRecorder(sink, zerolog.Nop())
	r.Record(context.Background(), domain.ActivityEvent{ParcelID: "p1", Action: domain.ActionAdded})
	r.Record(context.Background(), domain.ActivityEvent{ID: "fixed", ParcelID: "p2", Action: domain.ActionDeleted})
	r.Wait()

	if len(sink.events) != 2 {
		t.Fatalf("got %d events", len(sink.events))
	}
	for _, e := range sink.events {
		if e.ID == "" || e.OccurredAt.IsZero() {
			t.Errorf("event not stamped: %+v", e)
		}
		if e.ParcelID == "p2" && e.ID != "fixed" {
			t.Errorf("caller ids are kept, got %s", e.ID)
		}
	}

	var disabled *ActivityRecorder
	disabled.Record(context.Background(), domain.ActivityEvent{})
	disabled.Wait()
	NewActivityRecorder(nil, zerolog.Nop()).Record(context.Background(), domain.ActivityEvent{})
}
