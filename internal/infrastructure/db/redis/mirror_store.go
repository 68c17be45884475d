package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/locker-system/internal/core/domain"
)

// Key layout read by the locker firmware. The paths are shared with the
// devices and must not change.
const (
	receiptPrefix  = "original/receipts/"
	sequencePrefix = "receipts-sequence/"
	indexPrefix    = "receipts-index/"
	lockerPrefix   = "lockerControl/"
	versionPrefix  = "receipts-version/"
)

// A removed parcel keeps a tombstone version for a while so a repair that
// read the primary before the delete cannot bring it back.
const (
	tombstoneVersion = int64(1<<53 - 1)
	tombstoneTTL     = 24 * time.Hour
)

// releaseLocker deletes a locker control entry only when it still belongs to
// the given parcel, so a late write for a collected parcel cannot free a
// locker that was reassigned.
var releaseLocker = redis.NewScript(`
if redis.call("HGET", KEYS[1], "parcel_id") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// putReceipt writes a parcel unless the mirror already holds a newer version
// of it. Versions are the parcel's updated_at in milliseconds; an equal
// version is rewritten so repairs stay idempotent.
//
// KEYS: receipt, sequenced receipt, index, version, locker control.
// ARGV: original, sequenced, seq, version, locker mode (hold, release or
// none), parcel id, tracking number, status, locker updated_at.
var putReceipt = redis.NewScript(`
local current = redis.call("GET", KEYS[4])
if current and tonumber(current) > tonumber(ARGV[4]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], ARGV[2])
redis.call("SET", KEYS[3], ARGV[3])
redis.call("SET", KEYS[4], ARGV[4])
if ARGV[5] == "hold" then
	redis.call("HSET", KEYS[5], "parcel_id", ARGV[6], "tracking_number", ARGV[7], "status", ARGV[8], "updated_at", ARGV[9])
elseif ARGV[5] == "release" then
	if redis.call("HGET", KEYS[5], "parcel_id") == ARGV[6] then
		redis.call("DEL", KEYS[5])
	end
end
return 1
`)

// mirrorDoc is the payload stored under both receipt paths.
type mirrorDoc struct {
	ID             string    `json:"id"`
	FirestoreID    string    `json:"firestoreId,omitempty"`
	Sequence       int64     `json:"sequence,omitempty"`
	TrackingNumber string    `json:"trackingNumber"`
	OwnerID        string    `json:"ownerId"`
	Kind           string    `json:"kind"`
	LockerNumber   int       `json:"lockerNumber,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toMirrorDoc(p *domain.Parcel) mirrorDoc {
	return mirrorDoc{
		ID:             p.ID,
		TrackingNumber: p.TrackingNumber,
		OwnerID:        p.OwnerID,
		Kind:           string(p.Kind),
		LockerNumber:   p.LockerNumber,
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
}

func (d mirrorDoc) toDomain() *domain.Parcel {
	return &domain.Parcel{
		ID:             d.ID,
		TrackingNumber: d.TrackingNumber,
		OwnerID:        d.OwnerID,
		Kind:           domain.ParcelKind(d.Kind),
		LockerNumber:   d.LockerNumber,
		Status:         domain.ParcelStatus(d.Status),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// MirrorStore keeps the hardware-facing copy of the receipts collection.
type MirrorStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewMirrorStore creates a MirrorStore wrapping the given Redis client.
func NewMirrorStore(client *redis.Client) *MirrorStore {
	return &MirrorStore{client: client, now: time.Now}
}

// SequenceFor returns the sequence bound to parcelID, if any.
func (s *MirrorStore) SequenceFor(ctx context.Context, parcelID string) (int64, bool, error) {
	seq, err := s.client.Get(ctx, indexPrefix+parcelID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storeError("mirror sequence lookup", err)
	}
	return seq, true, nil
}

// ClaimSequence binds seq to parcelID unless a sequence is already bound.
func (s *MirrorStore) ClaimSequence(ctx context.Context, parcelID string, seq int64) (int64, error) {
	ok, err := s.client.SetNX(ctx, indexPrefix+parcelID, seq, 0).Result()
	if err != nil {
		return 0, storeError("mirror sequence claim", err)
	}
	if ok {
		return seq, nil
	}
	bound, err := s.client.Get(ctx, indexPrefix+parcelID).Int64()
	if err != nil {
		return 0, storeError("mirror sequence claim", err)
	}
	return bound, nil
}

// Put writes both receipt paths and the locker control entry in one script.
// A parcel that no longer holds a locker releases it. A write older than the
// mirrored copy is dropped.
func (s *MirrorStore) Put(ctx context.Context, seq int64, p *domain.Parcel) error {
	doc := toMirrorDoc(p)
	original, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("mirror put: encode: %w", err)
	}
	doc.FirestoreID = p.ID
	doc.Sequence = seq
	sequenced, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("mirror put: encode: %w", err)
	}

	mode := "none"
	switch {
	case p.HoldsLocker():
		mode = "hold"
	case p.LockerNumber > 0:
		mode = "release"
	}

	keys := []string{
		receiptPrefix + p.ID,
		sequencePrefix + strconv.FormatInt(seq, 10),
		indexPrefix + p.ID,
		versionPrefix + p.ID,
		lockerKey(p.LockerNumber),
	}
	err = putReceipt.Run(ctx, s.client, keys,
		original,
		sequenced,
		seq,
		p.UpdatedAt.UnixMilli(),
		mode,
		p.ID,
		p.TrackingNumber,
		string(p.Status),
		s.now().UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return storeError("mirror put", err)
	}
	return nil
}

// Get reads the parcel stored under its primary id.
func (s *MirrorStore) Get(ctx context.Context, parcelID string) (*domain.Parcel, error) {
	raw, err := s.client.Get(ctx, receiptPrefix+parcelID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrParcelNotFound
	}
	if err != nil {
		return nil, storeError("mirror get", err)
	}
	var doc mirrorDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("mirror get: decode: %w", err)
	}
	return doc.toDomain(), nil
}

// Remove deletes every mirror entry of a parcel and leaves a tombstone
// version behind. Missing entries are not an error.
func (s *MirrorStore) Remove(ctx context.Context, parcelID string) error {
	seq, found, err := s.SequenceFor(ctx, parcelID)
	if err != nil {
		return err
	}
	p, err := s.Get(ctx, parcelID)
	if err != nil && !errors.Is(err, domain.ErrParcelNotFound) {
		return err
	}

	keys := []string{receiptPrefix + parcelID, indexPrefix + parcelID}
	if found {
		keys = append(keys, sequencePrefix+strconv.FormatInt(seq, 10))
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.Set(ctx, versionPrefix+parcelID, tombstoneVersion, tombstoneTTL)
		return nil
	})
	if err != nil {
		return storeError("mirror remove", err)
	}

	if p != nil && p.LockerNumber > 0 {
		if err := releaseLocker.Run(ctx, s.client, []string{lockerKey(p.LockerNumber)}, parcelID).Err(); err != nil {
			return storeError("mirror release locker", err)
		}
	}
	return nil
}

func lockerKey(n int) string {
	return lockerPrefix + strconv.Itoa(n)
}
