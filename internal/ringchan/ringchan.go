// Package ringchan provides a bounded channel with overwrite-oldest
// semantics. Producers never block: when the buffer is full the oldest
// element is discarded to make room. It is used to hand session output
// lines from the PTY read loop to whoever is currently waiting on them
// without ever stalling the reader.
package ringchan

// RingChan wraps a buffered channel with drop-oldest send semantics.
type RingChan[T any] struct {
	ch chan T
}

// New creates a RingChan with the given capacity. Panics if capacity <= 0.
func New[T any](capacity int) *RingChan[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChan[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel. Consumers can select or
// range over it until Close.
func (rc *RingChan[T]) C() <-chan T {
	return rc.ch
}

// Send inserts an item, discarding the oldest buffered element if the
// buffer is full. It never blocks indefinitely.
func (rc *RingChan[T]) Send(v T) {
	select {
	case rc.ch <- v:
	default:
		select {
		case <-rc.ch: // drop oldest
		default:
		}
		rc.ch <- v
	}
}

// TrySend attempts a non-blocking insert. Returns false if the buffer is full.
func (rc *RingChan[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		return true
	default:
		return false
	}
}

// TryReceive attempts a non-blocking receive.
// Returns (zero, false) if no value is ready.
func (rc *RingChan[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-rc.ch:
		return
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of buffered elements.
func (rc *RingChan[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the buffer capacity.
func (rc *RingChan[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the underlying channel. After this, Send panics.
func (rc *RingChan[T]) Close() {
	close(rc.ch)
}
