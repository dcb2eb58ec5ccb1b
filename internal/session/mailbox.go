package session

import (
	"context"
	"sync"
)

// mailbox is an unbounded FIFO with a single consumer.
type mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{ready: make(chan struct{}, 1)}
}

// push enqueues an item. It reports false once the mailbox is closed.
func (m *mailbox[T]) push(item T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		return false
	}
	m.items = append(m.items, item)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}

	return true
}

// pop blocks until an item is available or ctx is done.
func (m *mailbox[T]) pop(ctx context.Context) (T, bool) {
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			item := m.items[0]
			var zero T
			m.items[0] = zero
			m.items = m.items[1:]
			m.mu.Unlock()

			return item, true
		}
		m.mu.Unlock()

		select {
		case <-m.ready:
		case <-ctx.Done():
			var zero T

			return zero, false
		}
	}
}

// close rejects further pushes and returns the items that were never popped.
func (m *mailbox[T]) close() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	left := m.items
	m.items = nil

	return left
}
