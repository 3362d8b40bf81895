// ABOUTME: Mutations with explicit success and error callbacks.
// ABOUTME: Callers invalidate dependent queries from OnSuccess.
package query

import (
	"context"
	"sync"
)

// MutationOptions are the callbacks run after a mutation settles.
type MutationOptions[Out any] struct {
	OnSuccess func(ctx context.Context, out Out)
	OnError   func(err error)
}

// Mutation wraps a write operation.
type Mutation[In, Out any] struct {
	fn   func(ctx context.Context, in In) (Out, error)
	opts MutationOptions[Out]

	mu      sync.Mutex
	pending bool
}

// NewMutation creates a mutation around fn.
func NewMutation[In, Out any](fn func(ctx context.Context, in In) (Out, error), opts MutationOptions[Out]) *Mutation[In, Out] {
	return &Mutation[In, Out]{fn: fn, opts: opts}
}

// Pending reports whether a call is in flight.
func (m *Mutation[In, Out]) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Mutate runs the mutation, then OnSuccess or OnError. Both callbacks finish
// before Mutate returns.
func (m *Mutation[In, Out]) Mutate(ctx context.Context, in In) (Out, error) {
	m.mu.Lock()
	m.pending = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.pending = false
		m.mu.Unlock()
	}()

	out, err := m.fn(ctx, in)
	if err != nil {
		if m.opts.OnError != nil {
			m.opts.OnError(err)
		}
		return out, err
	}
	if m.opts.OnSuccess != nil {
		m.opts.OnSuccess(ctx, out)
	}
	return out, nil
}
