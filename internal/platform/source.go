// Package platform adapts the OS global input hook to the ingestion.Source
// interface. The hook delivers raw key-down and mouse-down notifications
// from its own thread; everything downstream (throttling, buffering) is the
// ingestion package's business.
package platform

import (
	"sync"
	"time"

	hook "github.com/robotn/gohook"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/event"
	"github.com/pulsemeter-lab/pulsemeter/internal/ingestion"
)

type hookSource struct {
	mu      sync.Mutex
	running bool
}

// NewSource returns the global input hook source.
func NewSource() ingestion.Source {
	return &hookSource{}
}

// Start installs the hook and pumps key-down/mouse-down events into the
// handler. The pump goroutine exits when the hook channel closes.
func (s *hookSource) Start(handler func(t event.Type, at time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	events := hook.Start()
	go func() {
		for ev := range events {
			switch ev.Kind {
			case hook.KeyDown:
				handler(event.Keyboard, time.Now())
			case hook.MouseDown:
				handler(event.Mouse, time.Now())
			}
		}
	}()

	s.running = true
	return nil
}

// Stop uninstalls the hook, closing the event channel and with it the pump.
func (s *hookSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	hook.End()
	s.running = false
	return nil
}
