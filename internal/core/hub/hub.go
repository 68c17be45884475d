// Package hub fans parcel changes out to live subscribers.
//
// Subscribers never receive deltas. Every change makes each subscriber reload
// its full snapshot and recompute its statistics, so a missed or duplicated
// notification can delay an update but never corrupt a count.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/ports"
	"github.com/99minutos/locker-system/internal/pkg/metrics"
)

const (
	defaultLoadTimeout = 5 * time.Second
	defaultRetryDelay  = time.Second
	maxRetryDelay      = 30 * time.Second
)

// SnapshotSource loads the full state a subscriber recomputes from.
type SnapshotSource interface {
	List(ctx context.Context, filter ports.ListParcelsFilter) ([]*domain.Parcel, error)
	ActiveLockers(ctx context.Context) ([]int, error)
}

// WatchFilter selects the parcels a subscriber sees. Locker occupancy in the
// stats is always system-wide.
type WatchFilter struct {
	OwnerID string // empty = every owner
	Status  string
	Kind    string
}

// ChangeEvent is one full snapshot delivered to a subscriber. Change is the
// most recent change folded into it; it is zero until the first Publish.
type ChangeEvent struct {
	Change  ports.Change
	Parcels []*domain.Parcel
	Stats   domain.ParcelStats
	At      time.Time
}

// Hub implements ports.ChangePublisher.
type Hub struct {
	source      SnapshotSource
	capacity    ports.CapacityReader
	log         zerolog.Logger
	loadTimeout time.Duration
	retryDelay  time.Duration

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
}

func New(source SnapshotSource, capacity ports.CapacityReader, log zerolog.Logger) *Hub {
	return &Hub{
		source:      source,
		capacity:    capacity,
		log:         log,
		loadTimeout: defaultLoadTimeout,
		retryDelay:  defaultRetryDelay,
		subs:        make(map[uint64]*Subscription),
	}
}

// Subscription is a live feed. It never ends on its own: the owner must call
// Close or cancel the context passed to Watch. C is closed afterwards.
type Subscription struct {
	C <-chan ChangeEvent

	id     uint64
	filter WatchFilter
	hub    *Hub
	out    chan ChangeEvent
	signal chan struct{}
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	latest ports.Change
}

// Watch registers a subscriber and immediately schedules its initial snapshot.
func (h *Hub) Watch(ctx context.Context, filter WatchFilter) *Subscription {
	out := make(chan ChangeEvent, 1)
	sub := &Subscription{
		C:      out,
		filter: filter,
		hub:    h,
		out:    out,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	h.mu.Unlock()
	metrics.HubSubscribers.Inc()

	sub.signal <- struct{}{}
	go sub.run(ctx)
	return sub
}

// Publish notifies every subscriber. It never blocks: notifications that
// arrive while a subscriber is busy are folded into its next recompute.
func (h *Hub) Publish(change ports.Change) {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.notify(change)
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close releases every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	_, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		metrics.HubSubscribers.Dec()
	}
}

// snapshot reloads everything the subscriber's stats depend on.
func (h *Hub) snapshot(ctx context.Context, filter WatchFilter, change ports.Change) (ChangeEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, h.loadTimeout)
	defer cancel()

	parcels, err := h.source.List(ctx, ports.ListParcelsFilter{
		OwnerID: filter.OwnerID,
		Status:  filter.Status,
		Kind:    filter.Kind,
	})
	if err != nil {
		return ChangeEvent{}, err
	}
	lockers, err := h.source.ActiveLockers(ctx)
	if err != nil {
		return ChangeEvent{}, err
	}

	var capacity *domain.CapacitySnapshot
	if h.capacity != nil {
		if capacity, err = h.capacity.Latest(ctx); err != nil {
			capacity = nil
		}
	}

	return ChangeEvent{
		Change:  change,
		Parcels: parcels,
		Stats:   domain.ComputeStats(parcels, lockers, capacity),
		At:      time.Now().UTC(),
	}, nil
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.hub.remove(s.id)
	})
}

func (s *Subscription) notify(change ports.Change) {
	s.mu.Lock()
	s.latest = change
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// take returns the latest change and consumes any wake-up already covered by
// it. The change is kept, so a reload triggered by a late token still
// reports what it folds in.
func (s *Subscription) take() ports.Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.signal:
	default:
	}
	return s.latest
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.out)
	defer s.Close()

	delay := s.hub.retryDelay
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.signal:
		}

		ev, err := s.hub.snapshot(ctx, s.filter, s.take())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.HubRecomputeErrorsTotal.Inc()
			s.hub.log.Warn().Err(err).
				Str("owner_id", s.filter.OwnerID).
				Dur("retry_in", delay).
				Msg("subscriber snapshot reload failed")
			if !s.pause(ctx, delay) {
				return
			}
			delay = min(delay*2, maxRetryDelay)
			s.wake()
			continue
		}
		delay = s.hub.retryDelay

		select {
		case s.out <- ev:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

// pause waits d unless the subscription ends first.
func (s *Subscription) pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	}
}
