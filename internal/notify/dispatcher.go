package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher delivers security events.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Dispatch(context.Context, Event) error { return nil }

// Multi fans an event out to every dispatcher and joins their errors.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, e Event) error {
	var errs []error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := d.Dispatch(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultDispatchTimeout bounds a single async dispatch.
const DefaultDispatchTimeout = 5 * time.Second

// Async runs dispatches in the background so callers are never blocked.
// Each dispatch gets a fresh context with the configured timeout, so request
// cancellation does not abort it. Failures are logged at warn.
type Async struct {
	next    Dispatcher
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewAsync wraps next. A zero timeout uses DefaultDispatchTimeout; a nil logger uses slog.Default().
func NewAsync(next Dispatcher, timeout time.Duration, logger *slog.Logger) *Async {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Async{next: next, timeout: timeout, logger: logger}
}

// Dispatch starts delivery and returns nil immediately.
func (a *Async) Dispatch(_ context.Context, e Event) error {
	if a == nil || a.next == nil {
		return nil
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Dispatch(ctx, e); err != nil {
			a.logger.Warn("notify: dispatch failed",
				slog.String("event_type", string(e.Type)),
				slog.String("event_id", e.ID),
				slog.Any("error", err))
		}
	}()
	return nil
}

// Drain waits for in-flight dispatches, up to ctx.
func (a *Async) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
