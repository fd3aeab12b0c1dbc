// Package rollup contains the pure aggregation domain: granularities, their
// lookback horizons, canonical period keys and the bucket computation that
// turns raw events into aggregate rows.
package rollup

import (
	"fmt"
	"sort"
	"time"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/event"
)

// Granularity is one of the supported rollup bucket widths.
type Granularity string

const (
	FifteenMinute Granularity = "15min"
	ThirtyMinute  Granularity = "30min"
	Daily         Granularity = "day"
	Weekly        Granularity = "week"
	Monthly       Granularity = "month"
)

// All returns every granularity in recompute order, finest first.
func All() []Granularity {
	return []Granularity{FifteenMinute, ThirtyMinute, Daily, Weekly, Monthly}
}

// Valid reports whether g is a supported granularity.
func (g Granularity) Valid() bool {
	switch g {
	case FifteenMinute, ThirtyMinute, Daily, Weekly, Monthly:
		return true
	}
	return false
}

// Fine reports whether g is a sub-hour granularity. Only fine granularities
// participate in "today" queries and exports.
func (g Granularity) Fine() bool {
	return g == FifteenMinute || g == ThirtyMinute
}

// Prefix is the period-key namespace for g. Encoding the granularity into
// the key keeps aggregated_stats rows from different granularities from
// colliding on shared boundaries (e.g. 10:30 is both a 15m and a 30m start).
func (g Granularity) Prefix() string {
	switch g {
	case FifteenMinute:
		return "15m:"
	case ThirtyMinute:
		return "30m:"
	case Daily:
		return "1d:"
	case Weekly:
		return "1w:"
	case Monthly:
		return "1mo:"
	}
	return ""
}

// Lookback is the span of raw history a recompute pass for g covers.
// Fine granularities only need a short window; coarse ones need a long one.
func (g Granularity) Lookback() time.Duration {
	switch g {
	case FifteenMinute:
		return 2 * 24 * time.Hour
	case ThirtyMinute:
		return 7 * 24 * time.Hour
	case Daily:
		return 30 * 24 * time.Hour
	case Weekly, Monthly:
		return 365 * 24 * time.Hour
	}
	return 0
}

// PeriodKey derives the canonical bucket key for an event timestamp,
// converted to local time in loc and floored to the bucket boundary.
// Keys are zero-padded so lexical order matches chronological order
// within a granularity.
func (g Granularity) PeriodKey(ts int64, loc *time.Location) string {
	t := time.Unix(ts, 0).In(loc)
	switch g {
	case FifteenMinute:
		floored := t.Minute() - t.Minute()%15
		return fmt.Sprintf("%s%s %02d:%02d", g.Prefix(), t.Format("2006-01-02"), t.Hour(), floored)
	case ThirtyMinute:
		floored := t.Minute() - t.Minute()%30
		return fmt.Sprintf("%s%s %02d:%02d", g.Prefix(), t.Format("2006-01-02"), t.Hour(), floored)
	case Daily:
		return g.Prefix() + t.Format("2006-01-02")
	case Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%s%04d-W%02d", g.Prefix(), year, week)
	case Monthly:
		return g.Prefix() + t.Format("2006-01")
	}
	return ""
}

// DatePrefix returns the key prefix matching every bucket of g that starts
// on the given local calendar date. Only meaningful for fine granularities.
func (g Granularity) DatePrefix(date time.Time) string {
	return g.Prefix() + date.Format("2006-01-02") + " "
}

// Bucket is one aggregated_stats row: an immutable snapshot of the events
// whose local timestamps fall inside the bucket window.
type Bucket struct {
	Period   string
	Keyboard int64
	Mouse    int64
	Score    int64
}

// Compute groups events into buckets of g and computes counts and score.
// The result is a deterministic function of the input events: buckets are
// rebuilt from scratch, never accumulated, and returned in period order.
func Compute(g Granularity, events []event.RawEvent, loc *time.Location) []Bucket {
	byPeriod := make(map[string]*Bucket)
	for _, ev := range events {
		key := g.PeriodKey(ev.Timestamp, loc)
		b, ok := byPeriod[key]
		if !ok {
			b = &Bucket{Period: key}
			byPeriod[key] = b
		}
		switch ev.Type {
		case event.Keyboard:
			b.Keyboard++
		case event.Mouse:
			b.Mouse++
		}
	}

	buckets := make([]Bucket, 0, len(byPeriod))
	for _, b := range byPeriod {
		b.Score = b.Keyboard*event.KeyboardWeight + b.Mouse*event.MouseWeight
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Period < buckets[j].Period })
	return buckets
}
