package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/locker-system/internal/core/ports"
	"github.com/99minutos/locker-system/internal/pkg/metrics"
)

const (
	defaultWorkers  = 4
	channelBuffer   = 256
	defaultAttempts = 5
	baseDelay       = 200 * time.Millisecond
	maxDelay        = 10 * time.Second
)

// Dispatcher routes drifted parcel ids to a fixed set of repair workers using
// consistent hashing on the parcel id, so repairs of one parcel never run
// concurrently.
type Dispatcher struct {
	workers  []chan string
	repairer ports.MirrorRepairer
	attempts int
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repairer ports.MirrorRepairer, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan string, numWorkers),
		repairer: repairer,
		attempts: defaultAttempts,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan string, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands a parcel id to the worker responsible for it. It never
// blocks: when the worker's buffer is full the repair is dropped and left to
// the next write or a manual resync.
func (d *Dispatcher) Enqueue(parcelID string) {
	idx := d.shardIndex(parcelID)
	select {
	case d.workers[idx] <- parcelID:
		metrics.MirrorRepairQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
	default:
		metrics.MirrorRepairsTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().Str("parcel_id", parcelID).Int("worker_id", idx).Msg("repair queue full, dropping")
	}
}

// shardIndex maps a parcel id deterministically to a worker index.
func (d *Dispatcher) shardIndex(parcelID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(parcelID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan string) {
	defer d.wg.Done()
	depth := metrics.MirrorRepairQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case parcelID, ok := <-ch:
			if !ok {
				return
			}
			depth.Dec()
			d.repair(ctx, id, parcelID)
		}
	}
}

func (d *Dispatcher) repair(ctx context.Context, workerID int, parcelID string) {
	delay := baseDelay
	for attempt := 1; ; attempt++ {
		err := d.repairer.Resync(ctx, parcelID)
		if err == nil {
			metrics.MirrorRepairsTotal.WithLabelValues("ok").Inc()
			d.log.Info().Str("parcel_id", parcelID).Int("attempt", attempt).Msg("mirror repaired")
			return
		}
		if attempt >= d.attempts || ctx.Err() != nil {
			metrics.MirrorRepairsTotal.WithLabelValues("failed").Inc()
			d.log.Error().Err(err).
				Str("parcel_id", parcelID).
				Int("worker_id", workerID).
				Int("attempts", attempt).
				Msg("mirror repair failed")
			return
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
		delay = min(delay*2, maxDelay)
	}
}
