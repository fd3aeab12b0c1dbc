// Package storage defines the persistence interfaces the rest of the
// recorder is written against. The SQLite adapter lives in the sqlite
// subpackage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/event"
	"github.com/pulsemeter-lab/pulsemeter/internal/core/rollup"
)

// ErrNotFound is returned when a lookup (e.g. timer delete) matches no row.
var ErrNotFound = errors.New("not found")

// EventStore is the raw-event surface. Writes are expected to be funnelled
// through the single storage worker; reads may come from anywhere.
type EventStore interface {
	// InsertEvents persists a batch in one transaction. The batch is
	// best-effort telemetry: callers may drop it on failure.
	InsertEvents(ctx context.Context, batch []event.Pending) error

	// CountsSinceGrouped counts events at or after ts using a grouped
	// count query, cheap for small recent row sets.
	CountsSinceGrouped(ctx context.Context, ts int64) (event.Counts, error)

	// CountsSinceSummed counts events at or after ts using a
	// conditional-sum scan, the historical-window path.
	CountsSinceSummed(ctx context.Context, ts int64) (event.Counts, error)

	// TotalCounts counts every stored event.
	TotalCounts(ctx context.Context) (event.Counts, error)

	// EventsSince returns raw events at or after ts in timestamp order.
	// Used by the aggregation engine to recompute buckets.
	EventsSince(ctx context.Context, ts int64) ([]event.RawEvent, error)

	// PruneEvents deletes raw events older than olderThan (epoch seconds)
	// and reports how many rows were removed.
	PruneEvents(ctx context.Context, olderThan int64) (int64, error)

	// Vacuum reclaims file space after a prune.
	Vacuum(ctx context.Context) error
}

// AggregateStore is the derived-table surface used by the aggregation
// engine (writes) and the projection layer (reads).
type AggregateStore interface {
	// ReplaceBuckets transactionally deletes every bucket of g whose
	// period key is at or after horizonKey, then upserts the recomputed
	// rows. Buckets outside the horizon are never touched.
	ReplaceBuckets(ctx context.Context, g rollup.Granularity, horizonKey string, buckets []rollup.Bucket) error

	// QueryBuckets returns up to limit buckets of g, newest first.
	QueryBuckets(ctx context.Context, g rollup.Granularity, limit int) ([]rollup.Bucket, error)

	// BucketsForDate returns up to limit buckets of g starting on the
	// given local calendar date, oldest first.
	BucketsForDate(ctx context.Context, g rollup.Granularity, date time.Time, limit int) ([]rollup.Bucket, error)
}

// Timer is one user-defined countdown duration.
type Timer struct {
	ID        int64
	Minutes   int
	CreatedAt int64 // epoch seconds
}

// TimerStore is the CRUD surface for countdown timers.
type TimerStore interface {
	AddTimer(ctx context.Context, minutes int) (int64, error)
	ListTimers(ctx context.Context) ([]Timer, error)
	DeleteTimer(ctx context.Context, id int64) error
}
