package audit

import (
	"context"
	"errors"

	"github.com/platinummonkey/folio/pkg/async"
)

// AsyncLogger hands events to a worker pool so slow audit storage does not
// add request latency. When the pool is saturated the event is written
// inline instead of being dropped.
type AsyncLogger struct {
	inner Logger
	pool  *async.Pool
}

// NewAsyncLogger wraps inner. Close shuts the pool down and then closes inner.
func NewAsyncLogger(inner Logger, pool *async.Pool) *AsyncLogger {
	return &AsyncLogger{inner: inner, pool: pool}
}

// Log queues event. The request context is detached so cancellation after
// the response is written does not abort the insert.
func (l *AsyncLogger) Log(ctx context.Context, event *Event) error {
	detached := context.WithoutCancel(ctx)
	err := l.pool.Submit(func(ctx context.Context) error {
		return l.inner.Log(ctx, event)
	})
	if errors.Is(err, async.ErrQueueFull) || errors.Is(err, async.ErrClosed) {
		return l.inner.Log(detached, event)
	}
	return err
}

// Close drains queued events and closes the wrapped logger.
func (l *AsyncLogger) Close() error {
	return errors.Join(l.pool.Shutdown(context.Background()), l.inner.Close())
}
