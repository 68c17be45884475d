package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/99minutos/locker-system/internal/core/domain"
)

// RetryPolicy bounds retries of transient store failures.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy suits mobile callers: a few quick retries, then give up.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:  3,
	BaseDelay: 50 * time.Millisecond,
	MaxDelay:  time.Second,
}

// backoff returns the delay before retry number attempt (0-based), with
// up to 50% random jitter.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultRetryPolicy.BaseDelay
	}
	d := base << attempt
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		d = p.MaxDelay
	}
	return d/2 + time.Duration(rand.Int64N(int64(d/2)+1))
}

// retry runs fn until it succeeds, fails with a non-transient error, or the
// policy runs out of attempts. Only domain.ErrStoreUnavailable is transient.
func retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil || !errors.Is(err, domain.ErrStoreUnavailable) || attempt+1 >= attempts {
			return v, err
		}
		if werr := sleep(ctx, p.backoff(attempt)); werr != nil {
			return v, err
		}
	}
}

// retryErr is retry for functions without a result.
func retryErr(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	_, err := retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
