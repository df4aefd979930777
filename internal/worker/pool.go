// Package worker runs pipeline jobs in the background: a bounded pool for heavy
// stages, a supervising dispatcher for job goroutines and the retention reaper.
package worker

import (
	"context"
)

// Pool bounds how many stage functions run at once across all jobs.
type Pool struct {
	sem chan struct{}
}

// NewPool creates a pool with size slots. size <= 0 means one slot.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Do waits for a free slot and runs fn in the calling goroutine.
// It returns ctx.Err() without running fn if ctx ends first.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()

	return fn(ctx)
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return cap(p.sem)
}

// InUse returns the number of busy slots.
func (p *Pool) InUse() int {
	return len(p.sem)
}
