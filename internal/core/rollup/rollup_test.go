package rollup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/event"
)

func TestPeriodKey(t *testing.T) {
	// 2026-02-11 10:35:42 UTC
	ts := time.Date(2026, 2, 11, 10, 35, 42, 0, time.UTC).Unix()

	tests := []struct {
		name string
		g    Granularity
		want string
	}{
		{name: "15min floors to quarter hour", g: FifteenMinute, want: "15m:2026-02-11 10:30"},
		{name: "30min floors to half hour", g: ThirtyMinute, want: "30m:2026-02-11 10:30"},
		{name: "day", g: Daily, want: "1d:2026-02-11"},
		{name: "week is ISO", g: Weekly, want: "1w:2026-W07"},
		{name: "month", g: Monthly, want: "1mo:2026-02"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.g.PeriodKey(ts, time.UTC))
		})
	}
}

func TestPeriodKeyDistinguishesGranularitiesOnSharedBoundary(t *testing.T) {
	// 10:30 starts both a 15-minute and a 30-minute bucket. Without the
	// prefix the two rows would collide in aggregated_stats.
	ts := time.Date(2026, 2, 11, 10, 30, 0, 0, time.UTC).Unix()

	require.NotEqual(t,
		FifteenMinute.PeriodKey(ts, time.UTC),
		ThirtyMinute.PeriodKey(ts, time.UTC),
	)
}

func TestPeriodKeyZeroPadding(t *testing.T) {
	// Lexical order must match chronological order within a granularity.
	early := time.Date(2026, 2, 11, 9, 5, 0, 0, time.UTC).Unix()
	late := time.Date(2026, 2, 11, 10, 30, 0, 0, time.UTC).Unix()

	earlyKey := FifteenMinute.PeriodKey(early, time.UTC)
	lateKey := FifteenMinute.PeriodKey(late, time.UTC)

	require.Equal(t, "15m:2026-02-11 09:00", earlyKey)
	require.Less(t, earlyKey, lateKey)
}

func TestPeriodKeyUsesLocation(t *testing.T) {
	// 2026-02-11 23:30 UTC is already 2026-02-12 in UTC+8.
	ts := time.Date(2026, 2, 11, 23, 30, 0, 0, time.UTC).Unix()
	east := time.FixedZone("UTC+8", 8*3600)

	require.Equal(t, "1d:2026-02-11", Daily.PeriodKey(ts, time.UTC))
	require.Equal(t, "1d:2026-02-12", Daily.PeriodKey(ts, east))
}

func TestLookback(t *testing.T) {
	require.Equal(t, 2*24*time.Hour, FifteenMinute.Lookback())
	require.Equal(t, 7*24*time.Hour, ThirtyMinute.Lookback())
	require.Equal(t, 30*24*time.Hour, Daily.Lookback())
	require.Equal(t, 365*24*time.Hour, Weekly.Lookback())
	require.Equal(t, 365*24*time.Hour, Monthly.Lookback())
}

func TestValidAndFine(t *testing.T) {
	for _, g := range All() {
		require.True(t, g.Valid(), g)
	}
	require.False(t, Granularity("hour").Valid())

	require.True(t, FifteenMinute.Fine())
	require.True(t, ThirtyMinute.Fine())
	require.False(t, Daily.Fine())
	require.False(t, Weekly.Fine())
	require.False(t, Monthly.Fine())
}

func TestComputeScoresAndGroups(t *testing.T) {
	base := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)
	events := []event.RawEvent{
		{ID: 1, Timestamp: base.Unix(), Type: event.Keyboard},
		{ID: 2, Timestamp: base.Add(time.Second).Unix(), Type: event.Keyboard},
		{ID: 3, Timestamp: base.Add(time.Second).Unix(), Type: event.Mouse},
		{ID: 4, Timestamp: base.Add(2 * time.Second).Unix(), Type: event.Keyboard},
	}

	buckets := Compute(FifteenMinute, events, time.UTC)

	require.Len(t, buckets, 1)
	require.Equal(t, Bucket{
		Period:   "15m:2026-02-11 10:00",
		Keyboard: 3,
		Mouse:    1,
		Score:    3*1 + 1*5,
	}, buckets[0])
}

func TestComputeSplitsAcrossBuckets(t *testing.T) {
	events := []event.RawEvent{
		{ID: 1, Timestamp: time.Date(2026, 2, 11, 10, 14, 59, 0, time.UTC).Unix(), Type: event.Mouse},
		{ID: 2, Timestamp: time.Date(2026, 2, 11, 10, 15, 0, 0, time.UTC).Unix(), Type: event.Keyboard},
	}

	buckets := Compute(FifteenMinute, events, time.UTC)

	require.Len(t, buckets, 2)
	require.Equal(t, "15m:2026-02-11 10:00", buckets[0].Period)
	require.Equal(t, int64(1), buckets[0].Mouse)
	require.Equal(t, "15m:2026-02-11 10:15", buckets[1].Period)
	require.Equal(t, int64(1), buckets[1].Keyboard)
}

func TestComputeIsDeterministic(t *testing.T) {
	events := []event.RawEvent{
		{ID: 1, Timestamp: 1000, Type: event.Keyboard},
		{ID: 2, Timestamp: 2000, Type: event.Mouse},
		{ID: 3, Timestamp: 3000, Type: event.Keyboard},
	}

	first := Compute(Daily, events, time.UTC)
	second := Compute(Daily, events, time.UTC)
	require.Equal(t, first, second)
}

func TestComputeEmptyInput(t *testing.T) {
	require.Empty(t, Compute(Daily, nil, time.UTC))
}

func TestDatePrefix(t *testing.T) {
	date := time.Date(2026, 2, 11, 15, 4, 0, 0, time.UTC)
	require.Equal(t, "15m:2026-02-11 ", FifteenMinute.DatePrefix(date))
	require.Equal(t, "30m:2026-02-11 ", ThirtyMinute.DatePrefix(date))
}
