package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepairer struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int
	active   map[string]bool
	overlap  bool
	done     chan string
}

func newStubRepairer() *stubRepairer {
	return &stubRepairer{
		calls:    make(map[string]int),
		failures: make(map[string]int),
		active:   make(map[string]bool),
		done:     make(chan string, 64),
	}
}

func (s *stubRepairer) Resync(_ context.Context, id string) error {
	s.mu.Lock()
	if s.active[id] {
		s.overlap = true
	}
	s.active[id] = true
	s.calls[id]++
	fail := s.failures[id] > 0
	if fail {
		s.failures[id]--
	}
	s.mu.Unlock()

	time.Sleep(time.Millisecond)

	s.mu.Lock()
	s.active[id] = false
	s.mu.Unlock()

	if fail {
		return errors.New("mirror unavailable")
	}
	s.done <- id
	return nil
}

func waitFor(t *testing.T, ch <-chan string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d repairs", i, n)
		}
	}
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(4, newStubRepairer(), zerolog.Nop())
	first := d.shardIndex("parcel-1")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.shardIndex("parcel-1"))
	}
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, 4)
}

func TestDispatcher_RepairsEnqueuedParcels(t *testing.T) {
	repairer := newStubRepairer()
	d := NewDispatcher(3, repairer, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	ids := []string{"a", "b", "c", "a", "b", "a"}
	for _, id := range ids {
		d.Enqueue(id)
	}
	waitFor(t, repairer.done, len(ids))
	cancel()
	d.Wait()

	repairer.mu.Lock()
	defer repairer.mu.Unlock()
	assert.Equal(t, 3, repairer.calls["a"])
	assert.False(t, repairer.overlap, "repairs of one parcel must not overlap")
}

func TestDispatcher_RetriesFailedRepair(t *testing.T) {
	repairer := newStubRepairer()
	repairer.failures["p1"] = 2
	d := NewDispatcher(1, repairer, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Enqueue("p1")
	waitFor(t, repairer.done, 1)

	repairer.mu.Lock()
	defer repairer.mu.Unlock()
	require.Equal(t, 3, repairer.calls["p1"])
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	d := NewDispatcher(1, newStubRepairer(), zerolog.Nop())

	finished := make(chan struct{})
	go func() {
		for i := 0; i < channelBuffer+10; i++ {
			d.Enqueue("p1")
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full worker channel")
	}
	assert.Len(t, d.workers[0], channelBuffer)
}
