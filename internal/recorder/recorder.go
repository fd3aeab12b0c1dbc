// Package recorder is the composition root: it wires the store, the storage
// worker, the write buffer, capture and the aggregation scheduler together
// and owns the ordered shutdown sequence.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulsemeter-lab/pulsemeter/internal/aggregation"
	"github.com/pulsemeter-lab/pulsemeter/internal/config"
	"github.com/pulsemeter-lab/pulsemeter/internal/core/storage/sqlite"
	"github.com/pulsemeter-lab/pulsemeter/internal/ingestion"
	"github.com/pulsemeter-lab/pulsemeter/internal/projection"
)

// Recorder owns the full capture → buffer → store → aggregate pipeline.
type Recorder struct {
	cfg *config.Config

	store     *sqlite.Store
	worker    *ingestion.Worker
	buffer    *ingestion.Buffer
	capture   *ingestion.Capture
	engine    *aggregation.Engine
	scheduler *aggregation.Scheduler

	service *projection.Service
	timers  *projection.TimerService
}

// New opens the store and builds the pipeline around the given input
// source. Nothing is started yet.
func New(cfg *config.Config, source ingestion.Source) (*Recorder, error) {
	store, err := sqlite.Open(cfg.Database.Path, cfg.Database.BusyTimeout())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	worker := ingestion.NewWorker(cfg.Worker.QueueSize, cfg.Worker.StopWait())
	buffer := ingestion.NewBuffer(store, worker, cfg.Buffer.FlushEvery(), cfg.Buffer.FlushThreshold)
	gate := ingestion.NewThrottleGate(cfg.Capture.KeyboardThrottleInterval(), cfg.Capture.MouseThrottleInterval())
	capture := ingestion.NewCapture(source, gate, buffer)

	engine := aggregation.NewEngine(store, worker, cfg.Aggregation.RunGap(), cfg.Retention.MaxEventAge(), time.Local)
	scheduler := aggregation.NewScheduler(cfg.Aggregation.RunEvery(), engine)

	return &Recorder{
		cfg:       cfg,
		store:     store,
		worker:    worker,
		buffer:    buffer,
		capture:   capture,
		engine:    engine,
		scheduler: scheduler,
		service:   projection.NewService(store, store, time.Local),
		timers:    projection.NewTimerService(store),
	}, nil
}

// Run starts the pipeline and blocks until ctx is cancelled, then performs
// the ordered shutdown. Capture-start failure is degraded to a
// not-recording state, never a crash.
func (r *Recorder) Run(ctx context.Context) error {
	r.sweepRetention(ctx)

	r.worker.Start()
	r.buffer.Start()

	if r.cfg.Capture.Enabled {
		if err := r.capture.Start(); err != nil {
			slog.Error("[Recorder] Capture unavailable, continuing without recording", "error", err)
		}
	} else {
		slog.Info("[Recorder] Capture disabled by config")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.scheduler.Start(gctx)
	})

	err := g.Wait()

	if stopErr := r.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}

// sweepRetention deletes raw events past the retention horizon and reclaims
// space. Runs once at startup, before the worker owns the write handle.
func (r *Recorder) sweepRetention(ctx context.Context) {
	horizon := time.Now().Add(-r.cfg.Retention.MaxEventAge()).Unix()

	pruned, err := r.store.PruneEvents(ctx, horizon)
	if err != nil {
		slog.Error("[Recorder] Retention sweep failed", "error", err)
		return
	}
	if pruned > 0 {
		if err := r.store.Vacuum(ctx); err != nil {
			slog.Warn("[Recorder] Vacuum failed", "error", err)
		}
	}
	slog.Info("[Recorder] Retention sweep complete", "pruned", pruned, "max_age", r.cfg.Retention.MaxAge)
}

// Stop tears the pipeline down in dependency order: capture first so no new
// events arrive, then a final buffer flush, then the worker drain, then the
// store. No event accepted before Stop is silently dropped.
func (r *Recorder) Stop() error {
	var firstErr error

	r.capture.Stop()
	r.buffer.Stop()

	if err := r.worker.Stop(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("stop worker: %w", err)
	}
	if err := r.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}
	return firstErr
}

// Service exposes the query layer (stats refresh, exports).
func (r *Recorder) Service() *projection.Service {
	return r.service
}

// Timers exposes the timer CRUD service.
func (r *Recorder) Timers() *projection.TimerService {
	return r.timers
}

// Recording reports whether the OS listener is installed.
func (r *Recorder) Recording() bool {
	return r.capture.Running()
}
