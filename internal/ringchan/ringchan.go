// Package ringchan provides a bounded channel-like buffer with
// overwrite-oldest semantics. The radio-module reader uses it to queue
// decoded events for the session loop: producers never block, and a
// stalled consumer loses the oldest events first.
package ringchan

import (
	"sync/atomic"
	"time"
)

type Ring[T any] struct {
	ch      chan T
	dropped atomic.Int64
}

// New creates a ring with the given capacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// Send inserts v, discarding the oldest buffered element if the ring
// is full. It never blocks.
func (r *Ring[T]) Send(v T) {
	select {
	case r.ch <- v:
	default:
		select {
		case <-r.ch: // drop oldest
			r.dropped.Add(1)
		default:
		}
		r.ch <- v
	}
}

// Receive blocks up to timeout for the next element. ok is false once
// the ring has been closed and drained; a timeout yields the zero
// value with ok=true.
func (r *Ring[T]) Receive(timeout time.Duration) (v T, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v, ok = <-r.ch:
		return v, ok
	case <-timer.C:
		var zero T
		return zero, true
	}
}

// C returns the underlying receive-only channel for select-based
// consumers.
func (r *Ring[T]) C() <-chan T {
	return r.ch
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int { return len(r.ch) }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return cap(r.ch) }

// Dropped returns how many elements were discarded to make room.
func (r *Ring[T]) Dropped() int64 { return r.dropped.Load() }

// Close closes the ring. Send panics after Close.
func (r *Ring[T]) Close() { close(r.ch) }
