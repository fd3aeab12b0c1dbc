package ingestion

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/event"
)

// fakeSource drives the handler manually.
type fakeSource struct {
	startErr error
	handler  func(t event.Type, at time.Time)
	stopped  bool
}

func (f *fakeSource) Start(handler func(t event.Type, at time.Time)) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.handler = handler
	return nil
}

func (f *fakeSource) Stop() error {
	f.stopped = true
	return nil
}

func TestCaptureStartFailure(t *testing.T) {
	src := &fakeSource{startErr: errors.New("no accessibility permission")}
	store := &fakeEventStore{}
	b, w := newTestBuffer(t, store, 10)

	c := NewCapture(src, NewThrottleGate(50*time.Millisecond, 50*time.Millisecond), b)

	err := c.Start()
	require.Error(t, err)
	require.False(t, c.Running())

	require.NoError(t, w.Stop())
}

func TestCaptureForwardsAcceptedEvents(t *testing.T) {
	src := &fakeSource{}
	store := &fakeEventStore{}
	b, w := newTestBuffer(t, store, 1000)

	c := NewCapture(src, NewThrottleGate(50*time.Millisecond, 50*time.Millisecond), b)
	require.NoError(t, c.Start())
	require.True(t, c.Running())

	base := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)
	src.handler(event.Keyboard, base)
	src.handler(event.Keyboard, base.Add(10*time.Millisecond)) // throttled
	src.handler(event.Mouse, base.Add(20*time.Millisecond))
	src.handler(event.Type("touch"), base.Add(time.Second)) // unknown type

	b.Flush()
	require.NoError(t, w.Stop())

	require.Len(t, store.batches, 1)
	batch := store.batches[0]
	require.Len(t, batch, 2)
	require.Equal(t, event.Keyboard, batch[0].Type)
	require.Equal(t, event.Mouse, batch[1].Type)

	// Every event of one capture run carries the same session ID.
	require.NotEmpty(t, batch[0].Details)
	require.Equal(t, batch[0].Details, batch[1].Details)

	c.Stop()
	require.False(t, c.Running())
	require.True(t, src.stopped)
}

func TestCaptureRestartGetsFreshSessionID(t *testing.T) {
	src := &fakeSource{}
	store := &fakeEventStore{}
	b, w := newTestBuffer(t, store, 1000)

	c := NewCapture(src, NewThrottleGate(time.Millisecond, time.Millisecond), b)
	base := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)

	require.NoError(t, c.Start())
	firstHandler := src.handler
	firstHandler(event.Keyboard, base)

	c.Stop()
	require.NoError(t, c.Start())
	src.handler(event.Keyboard, base.Add(time.Second))

	// A late delivery on the old handler still carries the old run's
	// session ID instead of racing on the restarted capture's state.
	firstHandler(event.Keyboard, base.Add(2*time.Second))

	b.Flush()
	require.NoError(t, w.Stop())

	require.Len(t, store.batches, 1)
	batch := store.batches[0]
	require.Len(t, batch, 3)
	require.NotEqual(t, batch[0].Details, batch[1].Details)
	require.Equal(t, batch[0].Details, batch[2].Details)

	c.Stop()
}

func TestCaptureStartIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	store := &fakeEventStore{}
	b, w := newTestBuffer(t, store, 10)

	c := NewCapture(src, NewThrottleGate(time.Millisecond, time.Millisecond), b)
	require.NoError(t, c.Start())
	require.NoError(t, c.Start())
	require.True(t, c.Running())

	c.Stop()
	c.Stop()
	require.False(t, c.Running())
	require.NoError(t, w.Stop())
}
