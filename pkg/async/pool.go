package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("worker pool shut down")
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("worker pool queue full")
)

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Go runs fn in its own goroutine bounded by timeout. Errors and panics are
// logged, never propagated.
func Go(parent context.Context, logger logrus.FieldLogger, timeout time.Duration, name string, fn Task) {
	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		if err := run(ctx, fn); err != nil {
			logger.WithError(err).WithField("task", name).Error("Background task failed")
		}
	}()
}

// run calls fn, converting a panic into an error.
func run(ctx context.Context, fn Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Stats counts pool outcomes.
type Stats struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

// Pool runs tasks on a fixed set of workers fed by a bounded queue.
type Pool struct {
	name    string
	timeout time.Duration
	logger  logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	queue  chan Task
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// NewPool starts workers goroutines draining a queue of queueSize tasks.
// Each task gets its own timeout derived from ctx.
func NewPool(ctx context.Context, logger logrus.FieldLogger, name string, workers, queueSize int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		name:    name,
		timeout: timeout,
		logger:  logger.WithField("pool", name),
		queue:   make(chan Task, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues fn without blocking.
func (p *Pool) Submit(fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- fn:
		return nil
	default:
		p.rejected.Add(1)
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for queued tasks to finish. When
// ctx expires first the remaining tasks are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("worker pool %s shutdown: %w", p.name, ctx.Err())
	}
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for fn := range p.queue {
		if p.ctx.Err() != nil {
			p.failed.Add(1)
			continue
		}
		ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
		err := run(ctx, fn)
		cancel()
		if err != nil {
			p.failed.Add(1)
			p.logger.WithError(err).Warn("Task failed")
			continue
		}
		p.completed.Add(1)
	}
}
