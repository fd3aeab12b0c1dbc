// Package aggregation recomputes the multi-granularity rollups from the raw
// event log: a rate-limited engine plus a periodic scheduler.
package aggregation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/event"
	"github.com/pulsemeter-lab/pulsemeter/internal/core/rollup"
)

// Store is the slice of the storage surface the engine needs.
type Store interface {
	EventsSince(ctx context.Context, ts int64) ([]event.RawEvent, error)
	ReplaceBuckets(ctx context.Context, g rollup.Granularity, horizonKey string, buckets []rollup.Bucket) error
}

// Submitter pushes work onto the storage worker so recomputation never runs
// on the caller's goroutine.
type Submitter interface {
	Submit(task func(ctx context.Context)) error
}

// Engine rebuilds every granularity's buckets inside its lookback horizon.
// Each pass deletes the prior buckets in the horizon and recomputes from
// scratch, so overlapping runs can never double count.
type Engine struct {
	store     Store
	worker    Submitter
	minGap    time.Duration
	retention time.Duration
	loc       *time.Location
	nowFn     func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

// NewEngine creates an engine bucketing timestamps in loc and refusing runs
// closer together than minGap. retention is the raw-event retention span:
// buckets whose raw events have already been pruned cannot be recomputed,
// so recompute horizons are clamped to it (0 disables the clamp).
func NewEngine(store Store, worker Submitter, minGap, retention time.Duration, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		store:     store,
		worker:    worker,
		minGap:    minGap,
		retention: retention,
		loc:       loc,
		nowFn:     time.Now,
	}
}

// Run schedules a full recompute on the storage worker. It is a no-op when
// invoked again within the rate-limit gap of the previous run.
func (e *Engine) Run(ctx context.Context) {
	now := e.nowFn()

	e.mu.Lock()
	if !e.lastRun.IsZero() && now.Sub(e.lastRun) < e.minGap {
		e.mu.Unlock()
		slog.Debug("[Aggregation] Skipping run inside rate-limit gap", "gap", e.minGap)
		return
	}
	e.lastRun = now
	e.mu.Unlock()

	if err := e.worker.Submit(func(taskCtx context.Context) {
		e.recompute(taskCtx)
	}); err != nil {
		slog.Error("[Aggregation] Could not schedule run", "error", err)
	}
}

// ForceRun recomputes synchronously, bypassing both the rate limit and the
// worker queue. Used at shutdown-free call sites and in tests.
func (e *Engine) ForceRun(ctx context.Context) {
	e.mu.Lock()
	e.lastRun = e.nowFn()
	e.mu.Unlock()
	e.recompute(ctx)
}

// recompute rebuilds each granularity independently. An error aborts that
// granularity's transaction only; the remaining granularities still run and
// the next scheduled pass retries in full.
func (e *Engine) recompute(ctx context.Context) {
	now := e.nowFn()
	started := now

	for _, g := range rollup.All() {
		horizonStart := now.Add(-g.Lookback())
		// Never reach past the raw-event retention horizon: those
		// buckets have no surviving events to rebuild from, and
		// deleting them would erase coarse-granularity history.
		if e.retention > 0 {
			if r := now.Add(-e.retention); r.After(horizonStart) {
				horizonStart = r
			}
		}

		events, err := e.store.EventsSince(ctx, horizonStart.Unix())
		if err != nil {
			slog.Error("[Aggregation] Loading events failed", "granularity", g, "error", err)
			continue
		}

		buckets := rollup.Compute(g, events, e.loc)
		horizonKey := g.PeriodKey(horizonStart.Unix(), e.loc)

		if err := e.store.ReplaceBuckets(ctx, g, horizonKey, buckets); err != nil {
			slog.Error("[Aggregation] Replacing buckets failed", "granularity", g, "error", err)
			continue
		}

		slog.Debug("[Aggregation] Granularity recomputed",
			"granularity", g,
			"events", len(events),
			"buckets", len(buckets),
		)
	}

	slog.Info("[Aggregation] Run complete", "elapsed", time.Since(started))
}
