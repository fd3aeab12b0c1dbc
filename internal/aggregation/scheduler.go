package aggregation

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler triggers the engine on a periodic interval, plus once eagerly at
// startup so first-session data is visible immediately. Aggregates are
// derived data, so no final run is forced at shutdown.
type Scheduler struct {
	interval time.Duration
	engine   *Engine
}

// NewScheduler creates a scheduler driving one engine.
func NewScheduler(interval time.Duration, engine *Engine) *Scheduler {
	return &Scheduler{interval: interval, engine: engine}
}

// Start runs until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting aggregation scheduler", "interval", s.interval)

	// Eager startup run.
	s.engine.Run(ctx)

	for {
		select {
		case <-ticker.C:
			s.engine.Run(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}
