// Package conflate provides a channel that holds only the newest
// undelivered value, so producers never block on slow readers.
package conflate

import "sync"

// Chan is a single-slot channel. Sending replaces a pending value. It is
// safe for concurrent use.
type Chan[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

// New creates an open Chan.
func New[T any]() *Chan[T] {
	return &Chan[T]{ch: make(chan T, 1)}
}

// C returns the receive side. It is closed by Fail or Close.
func (c *Chan[T]) C() <-chan T {
	return c.ch
}

// Send delivers v, replacing any pending value. It returns false if the
// channel is closed.
func (c *Chan[T]) Send(v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	for {
		select {
		case c.ch <- v:
			return true
		default:
		}
		select {
		case <-c.ch:
		default:
		}
	}
}

// Fail replaces any pending value with v and closes the channel, so v is
// the last value a reader sees.
func (c *Chan[T]) Fail(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case <-c.ch:
	default:
	}
	c.ch <- v
	c.closed = true
	close(c.ch)
}

// Close closes the channel. A pending value stays readable.
func (c *Chan[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Closed reports whether the channel has been closed.
func (c *Chan[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
