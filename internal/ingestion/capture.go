package ingestion

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/event"
)

// Source abstracts the OS input layer. A source invokes the handler from
// its own thread for every raw press or click; the handler must not block.
type Source interface {
	// Start begins delivering raw events to handler. It returns an error
	// if the underlying OS listener cannot be installed.
	Start(handler func(t event.Type, at time.Time)) error
	// Stop tears the listener down. Idempotent.
	Stop() error
}

// Capture subscribes to a Source, applies the per-type throttle gate and
// forwards accepted events into the write buffer. It never touches storage
// directly.
type Capture struct {
	source Source
	gate   *ThrottleGate
	buffer *Buffer

	mu        sync.Mutex
	running   bool
	sessionID string
}

// NewCapture wires a source to the buffer through the gate.
func NewCapture(source Source, gate *ThrottleGate, buffer *Buffer) *Capture {
	return &Capture{source: source, gate: gate, buffer: buffer}
}

// Start installs the OS listener. A new session ID tags every event of this
// capture run. On failure the recorder stays in a not-recording state; the
// error is the caller's to report.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	c.sessionID = uuid.NewString()
	// Snapshot the session ID into the handler: the source delivers from
	// its own thread and may still be draining across a stop/restart.
	sessionID := c.sessionID
	handler := func(t event.Type, at time.Time) {
		c.handle(t, at, sessionID)
	}
	if err := c.source.Start(handler); err != nil {
		c.sessionID = ""
		return fmt.Errorf("start input listener: %w", err)
	}

	c.running = true
	slog.Info("[Capture] Listening", "session_id", c.sessionID)
	return nil
}

// handle runs on the source's delivery thread.
func (c *Capture) handle(t event.Type, at time.Time, sessionID string) {
	if !t.Valid() {
		return
	}
	if !c.gate.Accept(t, at) {
		return
	}
	c.buffer.Record(t, at.Unix(), sessionID)
}

// Stop tears down the OS listener.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	if err := c.source.Stop(); err != nil {
		slog.Warn("[Capture] Listener stop failed", "error", err)
	}
	c.running = false
	slog.Info("[Capture] Stopped", "session_id", c.sessionID)
}

// Running reports whether the OS listener is installed.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
