package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const counterPrefix = "counters/"

// SequenceAssigner hands out per-collection ordinals from a counter hash
// shaped {next_value, updated_at}. Values are never reused; a failed mirror
// write leaves a gap.
type SequenceAssigner struct {
	client *redis.Client
	now    func() time.Time
}

// NewSequenceAssigner creates a SequenceAssigner wrapping the given Redis client.
func NewSequenceAssigner(client *redis.Client) *SequenceAssigner {
	return &SequenceAssigner{client: client, now: time.Now}
}

// Next increments and returns the counter for collection. The first value is 1.
func (a *SequenceAssigner) Next(ctx context.Context, collection string) (int64, error) {
	key := counterPrefix + collection
	var incr *redis.IntCmd
	_, err := a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, "next_value", 1)
		pipe.HSet(ctx, key, "updated_at", a.now().UTC().Format(time.RFC3339Nano))
		return nil
	})
	if err != nil {
		return 0, storeError("next sequence", err)
	}
	return incr.Val(), nil
}
