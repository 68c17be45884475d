package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyTTL    = 24 * time.Hour
	idempotencyPrefix = "idempotency/"
	pendingMarker     = "pending"
)

// releasePending drops a key only while it is still unbound.
var releasePending = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdempotencyStore remembers which parcel an admission key produced.
// Key format: idempotency/<owner>/<client key>
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates an IdempotencyStore wrapping the given Redis client.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: idempotencyTTL}
}

// Claim reserves key. If it was already reserved, the bound parcel id is
// returned, or "" while the first request is still running.
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (bool, string, error) {
	ok, err := s.client.SetNX(ctx, idempotencyPrefix+key, pendingMarker, s.ttl).Result()
	if err != nil {
		return false, "", storeError("idempotency claim", err)
	}
	if ok {
		return true, "", nil
	}

	val, err := s.client.Get(ctx, idempotencyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired or released between the two calls.
		return s.Claim(ctx, key)
	}
	if err != nil {
		return false, "", storeError("idempotency claim", err)
	}
	if val == pendingMarker {
		return false, "", nil
	}
	return false, val, nil
}

// Bind records the parcel produced under key.
func (s *IdempotencyStore) Bind(ctx context.Context, key, parcelID string) error {
	if parcelID == "" {
		return fmt.Errorf("idempotency bind: empty parcel id")
	}
	return storeError("idempotency bind", s.client.Set(ctx, idempotencyPrefix+key, parcelID, s.ttl).Err())
}

// Release frees an unbound key so the client may retry after a failure.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	err := releasePending.Run(ctx, s.client, []string{idempotencyPrefix + key}, pendingMarker).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return storeError("idempotency release", err)
}
