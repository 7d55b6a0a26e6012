package engine

import (
	"sync"

	"github.com/roach88/sheetwatch/internal/notify"
)

// dispatchQueue is a thread-safe FIFO of notifications waiting for the
// dispatcher.
//
// The queue is unbounded so Tick never blocks on a slow sink. The signal
// channel (buffered, size 1) lets the dispatcher wait with select and still
// observe context cancellation.
type dispatchQueue struct {
	mu     sync.Mutex
	items  []notify.Notification
	closed bool
	signal chan struct{}
}

func newDispatchQueue() *dispatchQueue {
	return &dispatchQueue{
		items:  make([]notify.Notification, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends n. Returns false if the queue is closed.
func (q *dispatchQueue) Enqueue(n notify.Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, n)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front notification without blocking.
func (q *dispatchQueue) TryDequeue() (notify.Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return notify.Notification{}, false
	}
	n := q.items[0]
	q.items[0] = notify.Notification{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return n, true
}

// Wait returns a channel that receives when items may be available and is
// closed by Close.
func (q *dispatchQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued notifications.
func (q *dispatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting notifications and wakes the dispatcher.
func (q *dispatchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
