package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"vidtube-auth/internal/logging"
)

type recordingEmitter struct {
	mu      sync.Mutex
	events  []*Event
	emitErr error
	delay   time.Duration
}

func (m *recordingEmitter) Emit(ctx context.Context, event *Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *recordingEmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestDispatcher_DispatchAndDrain(t *testing.T) {
	defer goleak.VerifyNone(t)

	em := &recordingEmitter{delay: 10 * time.Millisecond}
	d := NewDispatcher(em, logging.Discard())
	for i := 0; i < 5; i++ {
		d.Dispatch(&Event{Action: "login_success"})
	}
	require.NoError(t, d.Drain(context.Background()))
	assert.Equal(t, 5, em.count())
}

func TestDispatcher_DrainHonoursContext(t *testing.T) {
	em := &recordingEmitter{delay: 200 * time.Millisecond}
	d := NewDispatcher(em, logging.Discard())
	d.Dispatch(&Event{Action: "logout"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Drain(ctx), context.DeadlineExceeded)
	require.NoError(t, d.Drain(context.Background()))
}

func TestDispatcher_NilSafe(t *testing.T) {
	var d *Dispatcher
	d.Dispatch(&Event{})
	assert.NoError(t, d.Drain(context.Background()))

	d = NewDispatcher(nil, nil)
	d.Dispatch(&Event{})
	assert.NoError(t, d.Drain(context.Background()))

	em := &recordingEmitter{}
	d = NewDispatcher(em, logging.Discard())
	d.Dispatch(nil)
	require.NoError(t, d.Drain(context.Background()))
	assert.Zero(t, em.count())
}

func TestMultiEmitter_FansOutAndJoinsErrors(t *testing.T) {
	ok := &recordingEmitter{}
	boom := errors.New("kafka down")
	failing := &recordingEmitter{emitErr: boom}

	err := MultiEmitter{ok, nil, failing}.Emit(context.Background(), &Event{Action: "refresh"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, failing.count())
}
