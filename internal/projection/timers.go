package projection

import (
	"context"
	"fmt"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/storage"
)

// TimerService is the CRUD surface for countdown timers. Concurrency is
// simple mutual exclusion on the store; there is nothing clever here.
type TimerService struct {
	timers storage.TimerStore
}

// NewTimerService wraps a timer store.
func NewTimerService(timers storage.TimerStore) *TimerService {
	return &TimerService{timers: timers}
}

// Add stores a new countdown duration and returns its ID.
func (s *TimerService) Add(ctx context.Context, minutes int) (int64, error) {
	if minutes <= 0 {
		return 0, fmt.Errorf("timer duration must be positive, got %d", minutes)
	}
	return s.timers.AddTimer(ctx, minutes)
}

// List returns all timers, newest first.
func (s *TimerService) List(ctx context.Context) ([]storage.Timer, error) {
	return s.timers.ListTimers(ctx)
}

// Remove deletes a timer by ID; storage.ErrNotFound if it does not exist.
func (s *TimerService) Remove(ctx context.Context, id int64) error {
	return s.timers.DeleteTimer(ctx, id)
}
