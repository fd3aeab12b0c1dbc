package ingestion

import (
	"sync"
	"time"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/event"
)

// throttleState tracks the last accepted time for one event type. Each type
// has its own lock so keyboard chatter never contends with mouse chatter.
type throttleState struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func (s *throttleState) accept(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.last.IsZero() && now.Sub(s.last) <= s.interval {
		return false
	}
	s.last = now
	return true
}

// ThrottleGate collapses same-type events that arrive closer together than
// the configured interval, suppressing device-level chatter. Safe for use
// from the capture callback regardless of which thread invokes it.
type ThrottleGate struct {
	keyboard throttleState
	mouse    throttleState
}

// NewThrottleGate creates a gate with independent per-type intervals.
func NewThrottleGate(keyboardInterval, mouseInterval time.Duration) *ThrottleGate {
	return &ThrottleGate{
		keyboard: throttleState{interval: keyboardInterval},
		mouse:    throttleState{interval: mouseInterval},
	}
}

// Accept reports whether an event of type t occurring at now passes the
// throttle. Accepting updates the per-type state.
func (g *ThrottleGate) Accept(t event.Type, now time.Time) bool {
	switch t {
	case event.Keyboard:
		return g.keyboard.accept(now)
	case event.Mouse:
		return g.mouse.accept(now)
	}
	return false
}
