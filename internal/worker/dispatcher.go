package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// ErrShuttingDown is returned by Dispatch once Shutdown has been called.
var ErrShuttingDown = errors.New("dispatcher is shutting down")

// Task is a unit of background work. ctx is cancelled only when shutdown runs out of time.
type Task func(ctx context.Context)

// Dispatcher runs fire-and-forget tasks in supervised goroutines.
type Dispatcher struct {
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	running atomic.Int64

	done     chan struct{}
	doneOnce sync.Once
}

// NewDispatcher creates a dispatcher ready to accept tasks.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Dispatch starts task in its own goroutine and returns immediately.
// A panicking task is logged and does not take the process down.
func (d *Dispatcher) Dispatch(name string, task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrShuttingDown
	}

	d.wg.Add(1)
	d.running.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.running.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("background task panicked",
					"task", name,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
			}
		}()
		task(d.ctx)
	}()
	return nil
}

// Running returns the number of tasks still executing.
func (d *Dispatcher) Running() int {
	return int(d.running.Load())
}

// Shutdown stops accepting tasks and waits for running ones. If ctx ends first,
// running tasks are cancelled and Shutdown still waits for them to return before
// reporting ctx.Err().
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		d.logger.Warn("shutdown deadline reached, cancelling running tasks", "running", d.Running())
		err = ctx.Err()
		d.cancel()
		<-drained
	}

	d.cancel()
	d.doneOnce.Do(func() { close(d.done) })
	return err
}

// Done returns a channel that is closed when the dispatcher has fully stopped.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}
