// Package fallback runs an ordered list of strategies with a "first success wins" policy.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks a strategy whose dependency (binary, credentials, daemon) is missing.
// Strategies wrap it from Available or from the call itself.
var ErrUnavailable = errors.New("strategy unavailable")

// ErrNoStrategies is returned when the list is empty.
var ErrNoStrategies = errors.New("no strategies configured")

// Policy decides which failures move on to the next strategy.
type Policy string

const (
	// OnUnavailable falls through only when a strategy reports ErrUnavailable.
	// A runtime failure of an available strategy ends the run.
	OnUnavailable Policy = "unavailable"

	// OnError falls through on any failure.
	OnError Policy = "error"
)

// ParsePolicy converts a config value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case OnUnavailable:
		return OnUnavailable, nil
	case OnError:
		return OnError, nil
	default:
		return "", fmt.Errorf("unknown fallback policy %q (want %q or %q)", s, OnUnavailable, OnError)
	}
}

// Strategy is one interchangeable implementation of a stage.
type Strategy interface {
	Name() string
	// Available returns an error wrapping ErrUnavailable when the strategy cannot run at all.
	Available() error
}

// Attempt records the outcome of one strategy.
type Attempt struct {
	Strategy string
	Err      error
}

// Error collects every failed attempt of a run.
type Error struct {
	Attempts []Attempt
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes every attempt error to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Run calls fn with each strategy in order until one succeeds.
// On failure the returned error is an *Error listing every attempt.
func Run[S Strategy, R any](ctx context.Context, strategies []S, policy Policy, fn func(context.Context, S) (R, error)) (R, error) {
	var zero R
	if len(strategies) == 0 {
		return zero, ErrNoStrategies
	}

	failed := &Error{}
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			failed.Attempts = append(failed.Attempts, Attempt{Strategy: s.Name(), Err: err})
			return zero, failed
		}

		if err := s.Available(); err != nil {
			if !errors.Is(err, ErrUnavailable) {
				err = fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			failed.Attempts = append(failed.Attempts, Attempt{Strategy: s.Name(), Err: err})
			continue
		}

		result, err := fn(ctx, s)
		if err == nil {
			return result, nil
		}
		failed.Attempts = append(failed.Attempts, Attempt{Strategy: s.Name(), Err: err})

		if policy == OnError || errors.Is(err, ErrUnavailable) {
			continue
		}
		return zero, failed
	}

	return zero, failed
}
