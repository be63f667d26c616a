// Package queue provides the FIFO buffer between the Slack poller and the
// game processor.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/ebdekock/StaffSlackBot/internal/domain"
)

// Queue is a thread-safe unbounded FIFO of incoming messages.
//
// It is unbounded so the poller never blocks on a slow processor; the
// signal channel is buffered with size 1 to coalesce wakeups while still
// allowing context-aware waiting on the consumer side.
type Queue struct {
	mu     sync.Mutex
	items  []domain.IncomingMessage
	closed bool
	signal chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		items:  make([]domain.IncomingMessage, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a message. Returns false if the queue is closed.
// Safe to call from any goroutine; never blocks.
func (q *Queue) Enqueue(msg domain.IncomingMessage) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, msg)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the front message without blocking.
func (q *Queue) TryDequeue() (domain.IncomingMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return domain.IncomingMessage{}, false
	}
	msg := q.items[0]
	q.items[0] = domain.IncomingMessage{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return msg, true
}

// DequeueTimeout waits up to d for a message. It returns (msg, true) when a
// message was dequeued and (zero, false) on timeout, context cancellation,
// or a closed empty queue. A false return with no error condition is a
// normal poll tick for the consumer loop.
func (q *Queue) DequeueTimeout(ctx context.Context, d time.Duration) (domain.IncomingMessage, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		if msg, ok := q.TryDequeue(); ok {
			return msg, true
		}

		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return domain.IncomingMessage{}, false
		}

		select {
		case <-ctx.Done():
			return domain.IncomingMessage{}, false
		case <-timer.C:
			return domain.IncomingMessage{}, false
		case <-q.signal:
			// Retry; the signal coalesces multiple enqueues.
		}
	}
}

// Close marks the queue closed. Pending messages may still be drained with
// TryDequeue; further enqueues are rejected.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Len returns the number of buffered messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
