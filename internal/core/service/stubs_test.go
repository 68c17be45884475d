package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/ports"
)

var fastRetry = RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

// ── in-memory primary store ───────────────────────────────────────────────────

// memRepo behaves like the receipts collection: Insert enforces one active
// holder per locker and UpdateStatus is conditional on the current status.
// A collected parcel keeps its locker number but no longer holds it.
type memRepo struct {
	mu      sync.Mutex
	parcels map[string]*domain.Parcel
	nextID  int

	insertFailures int   // Insert fails with ErrStoreUnavailable this many times
	findErr        error // returned by FindByID when set
	inserts        int
}

func newMemRepo() *memRepo {
	return &memRepo{parcels: make(map[string]*domain.Parcel)}
}

func (r *memRepo) Insert(_ context.Context, p *domain.Parcel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertFailures > 0 {
		r.insertFailures--
		return fmt.Errorf("insert: %w", domain.ErrStoreUnavailable)
	}
	if p.HoldsLocker() {
		for _, other := range r.parcels {
			if other.HoldsLocker() && other.LockerNumber == p.LockerNumber {
				return fmt.Errorf("insert: %w", domain.ErrLockerConflict)
			}
		}
	}
	r.nextID++
	now := time.Now().UTC()
	p.ID = fmt.Sprintf("p%03d", r.nextID)
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	r.parcels[p.ID] = &cp
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*domain.Parcel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.parcels[id]
	if !ok {
		return nil, domain.ErrParcelNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) ActiveLockers(context.Context) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, p := range r.parcels {
		if p.HoldsLocker() {
			out = append(out, p.LockerNumber)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id string, from, to domain.ParcelStatus) (*domain.Parcel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parcels[id]
	if !ok {
		return nil, domain.ErrParcelNotFound
	}
	if p.Status != from {
		return nil, domain.ErrStatusConflict
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func (r *memRepo) UpdateTrackingNumber(_ context.Context, id, trackingNumber string) (*domain.Parcel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parcels[id]
	if !ok {
		return nil, domain.ErrParcelNotFound
	}
	p.TrackingNumber = trackingNumber
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.parcels[id]; !ok {
		return domain.ErrParcelNotFound
	}
	delete(r.parcels, id)
	return nil
}

func (r *memRepo) List(_ context.Context, f ports.ListParcelsFilter) ([]*domain.Parcel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Parcel
	for _, p := range r.parcels {
		if f.OwnerID != "" && p.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && string(p.Status) != f.Status {
			continue
		}
		if f.Kind != "" && string(p.Kind) != f.Kind {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// put stores p as-is, bypassing the locker check.
func (r *memRepo) put(p domain.Parcel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parcels[p.ID] = &p
}

// ── in-memory mirror store ────────────────────────────────────────────────────

type memMirror struct {
	mu       sync.Mutex
	bySeq    map[int64]domain.Parcel
	seqOf    map[string]int64
	failing  atomic.Bool
	removals int
}

func newMemMirror() *memMirror {
	return &memMirror{bySeq: make(map[int64]domain.Parcel), seqOf: make(map[string]int64)}
}

func (m *memMirror) SequenceFor(_ context.Context, parcelID string) (int64, bool, error) {
	if m.failing.Load() {
		return 0, false, domain.ErrStoreUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.seqOf[parcelID]
	return seq, ok, nil
}

func (m *memMirror) ClaimSequence(_ context.Context, parcelID string, seq int64) (int64, error) {
	if m.failing.Load() {
		return 0, domain.ErrStoreUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.seqOf[parcelID]; ok {
		return existing, nil
	}
	m.seqOf[parcelID] = seq
	return seq, nil
}

func (m *memMirror) Put(_ context.Context, seq int64, p *domain.Parcel) error {
	if m.failing.Load() {
		return domain.ErrStoreUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySeq[seq] = *p
	return nil
}

func (m *memMirror) Remove(_ context.Context, parcelID string) error {
	if m.failing.Load() {
		return domain.ErrStoreUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removals++
	if seq, ok := m.seqOf[parcelID]; ok {
		delete(m.bySeq, seq)
		delete(m.seqOf, parcelID)
	}
	return nil
}

// get returns the mirrored copy of a parcel.
func (m *memMirror) get(parcelID string) (domain.Parcel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.seqOf[parcelID]
	if !ok {
		return domain.Parcel{}, false
	}
	p, ok := m.bySeq[seq]
	return p, ok
}

type memSequence struct {
	mu   sync.Mutex
	next map[string]int64
}

func (s *memSequence) Next(_ context.Context, collection string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next == nil {
		s.next = make(map[string]int64)
	}
	s.next[collection]++
	return s.next[collection], nil
}

// ── collaborators ─────────────────────────────────────────────────────────────

type stubCapacity struct {
	snapshot *domain.CapacitySnapshot
	err      error
}

func (c stubCapacity) Latest(context.Context) (*domain.CapacitySnapshot, error) {
	return c.snapshot, c.err
}

func fill(pct float64) stubCapacity {
	return stubCapacity{snapshot: &domain.CapacitySnapshot{FillPercentage: &pct}}
}

type memIdempotency struct {
	mu    sync.Mutex
	bound map[string]string
	err   error
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{bound: make(map[string]string)}
}

func (s *memIdempotency) Claim(_ context.Context, key string) (bool, string, error) {
	if s.err != nil {
		return false, "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.bound[key]; ok {
		return false, id, nil
	}
	s.bound[key] = ""
	return true, "", nil
}

func (s *memIdempotency) Bind(_ context.Context, key, parcelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound[key] = parcelID
	return nil
}

func (s *memIdempotency) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound[key] == "" {
		delete(s.bound, key)
	}
	return nil
}

type memActivity struct {
	mu     sync.Mutex
	events []domain.ActivityEvent
	err    error
}

func (a *memActivity) Record(_ context.Context, e domain.ActivityEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return a.err
}

func (a *memActivity) actions() []domain.ActivityAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.ActivityAction, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

type memRepairs struct {
	mu  sync.Mutex
	ids []string
}

func (q *memRepairs) Enqueue(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
}

func (q *memRepairs) queued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}

type memPublisher struct {
	mu      sync.Mutex
	changes []ports.Change
}

func (p *memPublisher) Publish(c ports.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
}

func (p *memPublisher) types() []ports.ChangeType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ports.ChangeType, 0, len(p.changes))
	for _, c := range p.changes {
		out = append(out, c.Type)
	}
	return out
}

// ── fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	repo         *memRepo
	mirrorStore  *memMirror
	mirror       *DualStoreMirror
	repairs      *memRepairs
	publisher    *memPublisher
	activitySink *memActivity
	activity     *ActivityRecorder
	idempotency  *memIdempotency
	admission    *AdmissionService
	transitions  *TransitionService
	parcels      *ParcelService
}

func newFixture(capacity ports.CapacityReader) *fixture {
	f := &fixture{
		repo:         newMemRepo(),
		mirrorStore:  newMemMirror(),
		repairs:      &memRepairs{},
		publisher:    &memPublisher{},
		activitySink: &memActivity{},
		idempotency:  newMemIdempotency(),
	}
	log := zerolog.Nop()
	f.mirror = NewDualStoreMirror(f.repo, f.mirrorStore, &memSequence{}, f.publisher, log)
	f.mirror.SetRetryPolicy(fastRetry)
	f.mirror.SetRepairQueue(f.repairs)
	f.activity = NewActivityRecorder(f.activitySink, log)
	f.admission = NewAdmissionService(f.repo, f.mirror, capacity, f.idempotency, f.activity, AdmissionOptions{Retry: fastRetry}, log)
	f.transitions = NewTransitionService(f.repo, f.mirror, f.activity, log)
	f.transitions.retry = fastRetry
	f.parcels = NewParcelService(f.repo, f.mirror, capacity, f.activity, log)
	f.parcels.retry = fastRetry
	return f
}

func user(id string) domain.Requester {
	return domain.Requester{ID: id, Role: domain.RoleUser}
}

var operator = domain.Requester{ID: "ops-1", Role: domain.RoleOperator}

func (f *fixture) create(owner string, kind domain.ParcelKind, tracking string) (*domain.Parcel, error) {
	res, err := f.admission.Create(context.Background(), ports.CreateParcelInput{
		TrackingNumber: tracking,
		Kind:           string(kind),
		Requester:      user(owner),
	})
	if err != nil {
		return nil, err
	}
	return res.Parcel, nil
}
