package ingestion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/event"
	"github.com/pulsemeter-lab/pulsemeter/internal/core/storage"
)

// Buffer accumulates accepted events in memory and hands batches to the
// storage worker. Record never touches I/O: producer latency is decoupled
// from storage latency.
type Buffer struct {
	store     storage.EventStore
	worker    *Worker
	interval  time.Duration
	threshold int

	mu      sync.Mutex
	pending []event.Pending
	started bool

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewBuffer creates a write buffer flushing every interval or whenever more
// than threshold events are pending, whichever comes first.
func NewBuffer(store storage.EventStore, worker *Worker, interval time.Duration, threshold int) *Buffer {
	return &Buffer{
		store:     store,
		worker:    worker,
		interval:  interval,
		threshold: threshold,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the periodic flush ticker.
func (b *Buffer) Start() {
	b.mu.Lock()
	b.started = true
	b.mu.Unlock()
	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.Flush()
			case <-b.stop:
				return
			}
		}
	}()
}

// Record appends an accepted event to the pending list and returns
// immediately. Crossing the size threshold triggers an eager flush without
// waiting for the timer.
func (b *Buffer) Record(t event.Type, timestamp int64, details string) {
	b.mu.Lock()
	b.pending = append(b.pending, event.Pending{Type: t, Timestamp: timestamp, Details: details})
	full := len(b.pending) > b.threshold
	b.mu.Unlock()

	if full {
		b.Flush()
	}
}

// Flush swaps the pending list under the lock, releases it, and submits the
// swapped batch to the worker for a batched insert. An insert failure is
// logged and the batch dropped: this is best-effort telemetry, and the next
// flush cycle carries newer data anyway.
func (b *Buffer) Flush() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	err := b.worker.Submit(func(ctx context.Context) {
		if err := b.store.InsertEvents(ctx, batch); err != nil {
			slog.Error("[Buffer] Batch insert failed, dropping batch", "error", err, "events", len(batch))
		}
	})
	if err != nil {
		slog.Warn("[Buffer] Dropping batch", "error", err, "events", len(batch))
	}
}

// Pending reports the number of buffered events. Test hook.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Stop halts the ticker and forces a final flush so no accepted event is
// silently dropped on clean shutdown. Safe to call more than once, and
// without a prior Start (there is no ticker goroutine to join then).
func (b *Buffer) Stop() {
	b.once.Do(func() {
		b.mu.Lock()
		started := b.started
		b.mu.Unlock()
		if started {
			close(b.stop)
			<-b.done
		}
		b.Flush()
	})
}
