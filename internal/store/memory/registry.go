// Package memory implements the store interfaces with an in-process map.
// Nothing survives a restart.
package memory

import (
	"sync"
	"time"

	"meetscribe/internal/store"
)

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithEvictHook registers fn to be called with the id of every job removed by Sweep.
// fn runs after the registry lock has been released.
func WithEvictHook(fn func(id string)) Option {
	return func(r *Registry) {
		r.onEvict = fn
	}
}

// Registry is a mutex-guarded store.Registry.
type Registry struct {
	mu      sync.RWMutex
	jobs    map[string]*store.Job
	now     func() time.Time
	onEvict func(id string)
}

var _ store.Registry = (*Registry)(nil)

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		jobs: make(map[string]*store.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create implements store.Registry.
func (r *Registry) Create(id string) (store.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; ok {
		return store.Job{}, store.ErrAlreadyExists
	}

	job := store.NewJob(id, r.now())
	r.jobs[id] = job
	return job.Clone(), nil
}

// Get implements store.Registry.
func (r *Registry) Get(id string) (store.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return store.Job{}, store.ErrNotFound
	}
	return job.Clone(), nil
}

// Update implements store.Registry.
// fn works on a private copy which replaces the stored record only on success,
// so readers never observe a half-applied transition.
func (r *Registry) Update(id string, fn store.Mutator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.jobs[id]
	if !ok {
		return nil
	}
	if current.State.IsTerminal() {
		return store.ErrTerminal
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = r.now()

	r.jobs[id] = &next
	return nil
}

// Sweep implements store.Registry.
// Jobs are evicted by age alone, whatever their state.
func (r *Registry) Sweep(now time.Time, ttl time.Duration) int {
	r.mu.Lock()
	var removed []string
	for id, job := range r.jobs {
		if now.Sub(job.CreatedAt) > ttl {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(r.jobs, id)
	}
	r.mu.Unlock()

	if r.onEvict != nil {
		for _, id := range removed {
			r.onEvict(id)
		}
	}
	return len(removed)
}

// Len implements store.Registry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
