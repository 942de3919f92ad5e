// Package stream consumes real-time order book snapshots and raises spread alerts.
package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Put after Close, and by Get once a closed
// queue has been drained.
var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded FIFO of raw snapshot payloads.
//
// Put never blocks. Get blocks until an item is available, the queue is
// closed and drained, or ctx is done.
type Queue struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool
	// ready is closed and replaced whenever items or closed change.
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{})}
}

// Put appends data to the queue.
func (q *Queue) Put(data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, data)
	q.signal()
	return nil
}

// Get removes and returns the oldest item.
func (q *Queue) Get(ctx context.Context) ([]byte, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ready:
		}
	}
}

// Close stops the queue accepting items. Items already queued can still be
// read. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.signal()
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// signal wakes every waiting Get. Callers hold mu.
func (q *Queue) signal() {
	close(q.ready)
	q.ready = make(chan struct{})
}
