package middleware

import (
	"context"
	"errors"
	"sync"

	"OptArb/internal/domain/models"
	domrepo "OptArb/internal/domain/repository"
)

// ErrBufferClosed is returned by Receive once the buffer is closed and drained.
var ErrBufferClosed = errors.New("observation buffer closed")

// ObservationBuffer is the bounded hand-off between the live fetcher and the analytics stage.
// When full, Push evicts the oldest unconsumed observation so the producer never blocks.
type ObservationBuffer struct {
	mu      sync.Mutex
	items   []models.Observation
	head    int
	size    int
	closed  bool
	notify  chan struct{}
	first   chan struct{}
	firstTs models.Observation
	once    sync.Once
	metrics domrepo.Metrics
}

type BufferOption func(*ObservationBuffer)

// WithBufferMetrics reports evictions as drops of the "live_buffer" stage.
func WithBufferMetrics(m domrepo.Metrics) BufferOption {
	return func(b *ObservationBuffer) { b.metrics = m }
}

// NewObservationBuffer creates a buffer holding at most capacity observations (default 10).
func NewObservationBuffer(capacity int, opts ...BufferOption) *ObservationBuffer {
	if capacity <= 0 {
		capacity = 10
	}
	b := &ObservationBuffer{
		items:  make([]models.Observation, capacity),
		notify: make(chan struct{}, 1),
		first:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Push appends o, evicting the oldest entry if the buffer is full.
// It reports whether an eviction happened. Pushing to a closed buffer is a no-op.
func (b *ObservationBuffer) Push(o models.Observation) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	evicted := false
	if b.size == len(b.items) {
		b.head = (b.head + 1) % len(b.items)
		b.size--
		evicted = true
	}
	b.items[(b.head+b.size)%len(b.items)] = o
	b.size++
	b.mu.Unlock()

	b.once.Do(func() {
		b.firstTs = o
		close(b.first)
	})
	if evicted && b.metrics != nil {
		b.metrics.RecordDrop("live_buffer")
	}
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return evicted
}

// Receive blocks until an observation is available, the buffer is closed, or ctx is done.
// Observations still buffered at Close are drained before ErrBufferClosed is returned.
func (b *ObservationBuffer) Receive(ctx context.Context) (models.Observation, error) {
	for {
		b.mu.Lock()
		if b.size > 0 {
			o := b.items[b.head]
			b.items[b.head] = models.Observation{}
			b.head = (b.head + 1) % len(b.items)
			b.size--
			b.mu.Unlock()
			return o, nil
		}
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return models.Observation{}, ErrBufferClosed
		}

		select {
		case <-ctx.Done():
			return models.Observation{}, ctx.Err()
		case <-b.notify:
		}
	}
}

// First blocks until the first observation ever pushed and returns it without consuming it.
func (b *ObservationBuffer) First(ctx context.Context) (models.Observation, error) {
	select {
	case <-b.first:
		return b.firstTs, nil
	case <-ctx.Done():
		return models.Observation{}, ctx.Err()
	}
}

// Len returns the number of buffered observations.
func (b *ObservationBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Snapshot copies the buffered observations, oldest first.
func (b *ObservationBuffer) Snapshot() []models.Observation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Observation, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Close wakes any blocked receiver. Safe to call more than once.
func (b *ObservationBuffer) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}
