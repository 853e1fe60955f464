package core

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO of messages. Pushing never blocks. The ready
// channel holds a pending wakeup whenever the queue may have something to
// report, so consumers can wait on it from a select.
type queue struct {
	mu     sync.Mutex
	items  []*Message
	closed bool
	ready  chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

// push appends a message. It fails only once the queue is closed.
func (q *queue) push(msg *Message) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrDisconnected
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	q.notify()
	return nil
}

// tryPop removes the oldest message. A closed queue keeps handing out what it
// holds and reports ErrDisconnected once drained.
func (q *queue) tryPop() (*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		if q.closed {
			return nil, ErrDisconnected
		}
		return nil, ErrEmpty
	}

	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}

	// Leave a wakeup behind for the next consumer.
	if len(q.items) > 0 || q.closed {
		q.notify()
	}
	return msg, nil
}

// pop blocks until a message is available, the queue is closed and drained,
// or ctx is done.
func (q *queue) pop(ctx context.Context) (*Message, error) {
	for {
		msg, err := q.tryPop()
		if err != ErrEmpty {
			return msg, err
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// close disconnects the queue. Further pushes fail.
func (q *queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.notify()
}

// drain removes and returns everything still queued.
func (q *queue) drain() []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *queue) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
