package concurrency

import (
	"fmt"
	"sync/atomic"
)

// RingBuffer is a fixed-capacity single-producer/single-consumer queue.
// Push and Pop synchronise through the head and tail counters alone, so
// exactly one goroutine may push and exactly one may pop. Use one buffer
// instance per producer; sharing the producer side is undefined.
//
// A full buffer rejects the push instead of overwriting or blocking. That is
// the backpressure signal: the producer decides whether to drop or retry, and
// ordering of accepted items is never disturbed.
type RingBuffer[T any] struct {
	buf  []T
	mask uint64

	// head is advanced only by the consumer, tail only by the producer.
	head atomic.Uint64
	tail atomic.Uint64
}

// NewRingBuffer creates a buffer holding up to capacity items. Capacity is
// rounded up to the next power of two and fixed for the buffer's lifetime.
func NewRingBuffer[T any](capacity int) (*RingBuffer[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("ring buffer capacity must be at least 1, got %d", capacity)
	}

	size := uint64(1)
	for size < uint64(capacity) {
		size <<= 1
	}

	return &RingBuffer[T]{
		buf:  make([]T, size),
		mask: size - 1,
	}, nil
}

// Cap returns the fixed capacity of the buffer
func (r *RingBuffer[T]) Cap() int {
	return len(r.buf)
}

// Len returns the number of buffered items
func (r *RingBuffer[T]) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Push appends an item. Returns false without modifying the buffer when it
// is full. Must only be called from the producer goroutine.
func (r *RingBuffer[T]) Push(item T) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail-head == uint64(len(r.buf)) {
		return false
	}

	r.buf[tail&r.mask] = item
	// Publish after the slot write so the consumer observes a complete item.
	r.tail.Store(tail + 1)
	return true
}

// Pop removes and returns the oldest item. Returns false when the buffer is
// empty. Must only be called from the consumer goroutine.
func (r *RingBuffer[T]) Pop() (T, bool) {
	var zero T
	head := r.head.Load()
	if head == r.tail.Load() {
		return zero, false
	}

	item := r.buf[head&r.mask]
	r.buf[head&r.mask] = zero
	r.head.Store(head + 1)
	return item, true
}
