// Package projection is the query layer the presentation code talks to.
// It absorbs high-frequency UI polling with a short-lived counts cache and
// degrades query errors to empty results so a transient data-layer hiccup
// can never crash a display.
package projection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/event"
	"github.com/pulsemeter-lab/pulsemeter/internal/core/rollup"
	"github.com/pulsemeter-lab/pulsemeter/internal/core/storage"
)

const (
	// Windows starting less than this far in the past take the grouped
	// fast path and the short cache lifetime.
	veryRecentWindow = 2 * time.Second

	recentCacheTTL     = 200 * time.Millisecond
	historicalCacheTTL = time.Second
	maxCacheEntries    = 20
)

type cacheEntry struct {
	counts   event.Counts
	storedAt time.Time
	ttl      time.Duration
}

// Service answers counts-since and aggregate queries.
type Service struct {
	events     storage.EventStore
	aggregates storage.AggregateStore
	loc        *time.Location
	nowFn      func() time.Time

	mu    sync.Mutex
	cache map[int64]cacheEntry
}

// NewService creates a projection service bucketing "today" in loc.
func NewService(events storage.EventStore, aggregates storage.AggregateStore, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		events:     events,
		aggregates: aggregates,
		loc:        loc,
		nowFn:      time.Now,
		cache:      make(map[int64]cacheEntry),
	}
}

// CountsSince returns the keyboard and mouse counts of events with
// timestamp >= ts. Very recent windows use a grouped count optimized for
// small row sets and a 200ms cache; anything older uses a conditional-sum
// scan cached for 1s. Both paths agree on the result by construction.
func (s *Service) CountsSince(ctx context.Context, ts int64) event.Counts {
	now := s.nowFn()
	veryRecent := now.Sub(time.Unix(ts, 0)) < veryRecentWindow

	s.mu.Lock()
	if entry, ok := s.cache[ts]; ok && now.Sub(entry.storedAt) < entry.ttl {
		s.mu.Unlock()
		return entry.counts
	}
	s.mu.Unlock()

	var counts event.Counts
	var err error
	if veryRecent {
		counts, err = s.events.CountsSinceGrouped(ctx, ts)
	} else {
		counts, err = s.events.CountsSinceSummed(ctx, ts)
	}
	if err != nil {
		slog.Warn("[Projection] Counts query failed, returning empty", "since", ts, "error", err)
		return event.Counts{}
	}

	ttl := historicalCacheTTL
	if veryRecent {
		ttl = recentCacheTTL
	}

	s.mu.Lock()
	s.cache[ts] = cacheEntry{counts: counts, storedAt: now, ttl: ttl}
	if len(s.cache) > maxCacheEntries {
		s.evictLocked(now)
	}
	s.mu.Unlock()

	return counts
}

// evictLocked drops expired entries; if the cache is still over the cap it
// is reset wholesale. Bounds both staleness and memory.
func (s *Service) evictLocked(now time.Time) {
	for key, entry := range s.cache {
		if now.Sub(entry.storedAt) >= entry.ttl {
			delete(s.cache, key)
		}
	}
	if len(s.cache) > maxCacheEntries {
		s.cache = make(map[int64]cacheEntry)
	}
}

// TotalCounts counts every recorded event.
func (s *Service) TotalCounts(ctx context.Context) event.Counts {
	counts, err := s.events.TotalCounts(ctx)
	if err != nil {
		slog.Warn("[Projection] Total counts query failed, returning empty", "error", err)
		return event.Counts{}
	}
	return counts
}

// Aggregates returns up to limit buckets of g, newest first. Pre-aggregated
// rows are cheap, so this path is uncached.
func (s *Service) Aggregates(ctx context.Context, g rollup.Granularity, limit int) []rollup.Bucket {
	if !g.Valid() || limit <= 0 {
		return []rollup.Bucket{}
	}
	buckets, err := s.aggregates.QueryBuckets(ctx, g, limit)
	if err != nil {
		slog.Warn("[Projection] Aggregate query failed, returning empty", "granularity", g, "error", err)
		return []rollup.Bucket{}
	}
	return buckets
}

// TodayAggregates returns buckets of a fine granularity constrained to the
// current local calendar date, oldest first. Coarse granularities have no
// meaningful "today" slice and yield an empty result.
func (s *Service) TodayAggregates(ctx context.Context, g rollup.Granularity, limit int) []rollup.Bucket {
	if !g.Fine() || limit <= 0 {
		return []rollup.Bucket{}
	}
	today := s.nowFn().In(s.loc)
	buckets, err := s.aggregates.BucketsForDate(ctx, g, today, limit)
	if err != nil {
		slog.Warn("[Projection] Today aggregate query failed, returning empty", "granularity", g, "error", err)
		return []rollup.Bucket{}
	}
	return buckets
}
