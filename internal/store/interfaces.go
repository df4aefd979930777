package store

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a job id is unknown or has been evicted.
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyExists is returned by Create for a duplicate id.
	ErrAlreadyExists = errors.New("job already exists")

	// ErrTerminal is returned when mutating a COMPLETE or ERROR job.
	ErrTerminal = errors.New("job is in a terminal state")
)

// Mutator applies one state transition to a job.
// Returning an error discards every change it made.
type Mutator func(job *Job) error

// Registry maps job ids to job records.
// All methods are safe for concurrent use.
type Registry interface {
	// Create inserts a new PENDING job and returns a snapshot of it.
	Create(id string) (Job, error)

	// Get returns a snapshot of the job or ErrNotFound.
	Get(id string) (Job, error)

	// Update applies fn atomically and refreshes UpdatedAt.
	// A missing id is a silent no-op so late updates never resurrect an evicted job.
	Update(id string, fn Mutator) error

	// Sweep removes every job with now - CreatedAt > ttl and returns how many were removed.
	Sweep(now time.Time, ttl time.Duration) int

	// Len returns the number of jobs currently held.
	Len() int
}
