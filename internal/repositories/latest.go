package repositories

import "sync"

// Latest is a one-slot mailbox: Offer never blocks and replaces a value the consumer has not
// received yet. Offer and Close must not be called concurrently with each other.
type Latest[T any] struct {
	ch   chan T
	once sync.Once
}

// NewLatest returns an empty mailbox.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{ch: make(chan T, 1)}
}

// C is the receive side.
func (l *Latest[T]) C() <-chan T { return l.ch }

// Offer stores v, dropping any undelivered value.
func (l *Latest[T]) Offer(v T) {
	select {
	case l.ch <- v:
		return
	default:
	}
	select {
	case <-l.ch:
	default:
	}
	l.ch <- v
}

// Close closes the receive side. Further calls are no-ops.
func (l *Latest[T]) Close() {
	l.once.Do(func() { close(l.ch) })
}
