package middleware

import (
	"context"
	"sync"
)

// Readiness is a one-shot flag. Once Set, every current and future Wait returns immediately.
type Readiness struct {
	ch   chan struct{}
	once sync.Once
	mu   sync.Mutex
	err  error
}

func NewReadiness() *Readiness {
	return &Readiness{ch: make(chan struct{})}
}

// Set marks the flag ready. Later calls are ignored.
func (r *Readiness) Set() { r.Fail(nil) }

// Fail marks the flag done with an error that waiters receive.
func (r *Readiness) Fail(err error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		close(r.ch)
	})
}

// Done returns a channel closed once the flag is set.
func (r *Readiness) Done() <-chan struct{} { return r.ch }

// IsSet reports whether the flag has been set without blocking.
func (r *Readiness) IsSet() bool {
	select {
	case <-r.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the flag is set or ctx is done.
func (r *Readiness) Wait(ctx context.Context) error {
	select {
	case <-r.ch:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
