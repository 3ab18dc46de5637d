package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration bounds how long shutdown waits for in-flight async emits. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// Dispatcher runs emits in the background so request handlers are not blocked,
// and tracks them so shutdown can drain before closing the sinks.
type Dispatcher struct {
	emitter EventEmitter
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher returns a Dispatcher for emitter. A nil emitter makes Dispatch a no-op.
func NewDispatcher(emitter EventEmitter, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{emitter: emitter, logger: logger}
}

// Dispatch emits event in a goroutine with emitTimeout. The goroutine does not
// inherit the request context, so a finished request does not cancel the emit.
func (d *Dispatcher) Dispatch(event *Event) {
	if d == nil || d.emitter == nil || event == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := d.emitter.Emit(ctx, event); err != nil {
			d.logger.Warn("telemetry: async emit failed", "action", event.Action, "error", err)
		}
	}()
}

// Drain waits for in-flight emits or until ctx is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	if d == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
