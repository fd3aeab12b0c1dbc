package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrWorkerStopped is returned by Submit after Stop has been called.
var ErrWorkerStopped = errors.New("storage worker stopped")

// ErrQueueFull is returned by Submit when the task queue is saturated.
// Callers treat the work as droppable telemetry.
var ErrQueueFull = errors.New("storage worker queue full")

// Task is one unit of storage work executed on the worker goroutine. It is
// an alias so any func(context.Context) submitter interface is satisfied.
type Task = func(ctx context.Context)

// Worker is the single goroutine that owns all write-path storage access.
// Tasks are consumed strictly in submission order from a FIFO queue, so
// there is at most one storage write in flight at any time.
type Worker struct {
	tasks    chan Task
	done     chan struct{}
	stopWait time.Duration

	mu      sync.Mutex
	stopped bool
}

// NewWorker creates a worker with the given queue capacity and the bounded
// wait Stop applies while draining.
func NewWorker(queueSize int, stopWait time.Duration) *Worker {
	return &Worker{
		tasks:    make(chan Task, queueSize),
		done:     make(chan struct{}),
		stopWait: stopWait,
	}
}

// Start launches the worker goroutine. It runs until Stop closes the queue,
// draining every task that was accepted before the close.
func (w *Worker) Start() {
	go func() {
		defer close(w.done)
		for task := range w.tasks {
			task(context.Background())
		}
	}()
}

// Submit enqueues a task. It never blocks: a full queue or a stopped worker
// is reported to the caller, which decides whether the work is droppable.
func (w *Worker) Submit(task Task) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrWorkerStopped
	}
	select {
	case w.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for the worker to drain it, bounded by
// the configured stop wait. Submissions racing with Stop get
// ErrWorkerStopped instead of a panic on a closed channel.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.tasks)
	w.mu.Unlock()

	select {
	case <-w.done:
		slog.Info("[Worker] Drained and stopped")
		return nil
	case <-time.After(w.stopWait):
		return fmt.Errorf("worker did not drain within %s", w.stopWait)
	}
}
