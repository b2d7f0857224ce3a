// Package channel carries messages between the caller goroutines and the
// engine goroutine: an unbounded FIFO with a wake signal, and a bounded
// handshake used on start.
package channel

import "sync"

// Queue is an unbounded, ordered post queue. Post never blocks beyond a
// short lock, so it is safe to call from any goroutine, including one that
// also drains the queue.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

// NewQueue returns an empty, open queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Post appends msg and wakes the receiver. It reports false when the
// queue is closed and the message was dropped.
func (q *Queue[T]) Post(msg T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Ready is signalled after every Post. A receiver waits on it and then
// calls Drain; one signal may stand for many posts.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Drain removes and returns everything queued, oldest first.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued messages.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects future posts and discards queued messages. It returns the
// number of messages discarded.
func (q *Queue[T]) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	q.closed = true
	return n
}
