package ingestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/event"
)

func TestThrottleGateRejectsBursts(t *testing.T) {
	gate := NewThrottleGate(50*time.Millisecond, 50*time.Millisecond)
	base := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		typ  event.Type
		at   time.Time
		want bool
	}{
		{name: "first keyboard accepted", typ: event.Keyboard, at: base, want: true},
		{name: "keyboard inside interval rejected", typ: event.Keyboard, at: base.Add(30 * time.Millisecond), want: false},
		{name: "keyboard exactly at interval rejected", typ: event.Keyboard, at: base.Add(50 * time.Millisecond), want: false},
		{name: "keyboard past interval accepted", typ: event.Keyboard, at: base.Add(51 * time.Millisecond), want: true},
		{name: "mouse independent of keyboard", typ: event.Mouse, at: base.Add(52 * time.Millisecond), want: true},
		{name: "mouse inside own interval rejected", typ: event.Mouse, at: base.Add(80 * time.Millisecond), want: false},
		{name: "unknown type rejected", typ: event.Type("touch"), at: base.Add(time.Second), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, gate.Accept(tc.typ, tc.at))
		})
	}
}

func TestThrottleGateRejectionDoesNotResetWindow(t *testing.T) {
	gate := NewThrottleGate(50*time.Millisecond, 50*time.Millisecond)
	base := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)

	require.True(t, gate.Accept(event.Keyboard, base))
	// A rejected event must not push the window forward: 60ms after the
	// last ACCEPTED event passes even though a burst arrived in between.
	require.False(t, gate.Accept(event.Keyboard, base.Add(40*time.Millisecond)))
	require.True(t, gate.Accept(event.Keyboard, base.Add(60*time.Millisecond)))
}
