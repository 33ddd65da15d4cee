package queue

import (
	"context"
	"sync"

	bferrors "github.com/vnykmshr/bgflow/pkg/common/errors"
)

// ErrClosed is returned by Push and Pop once the queue has been closed.
var ErrClosed = bferrors.ErrClosed

// Queue is an unbounded FIFO queue safe for concurrent producers and consumers.
//
// Push never blocks. Pop blocks until an item is available, the context ends,
// or the queue is closed. TryPop never blocks.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool

	// ready holds at most one pending wake-up for a blocked consumer.
	ready chan struct{}
	// done is closed by Close to release every blocked consumer.
	done chan struct{}
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends item to the tail. It returns ErrClosed after Close and
// otherwise always succeeds.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Pop removes and returns the head item, waiting while the queue is empty.
// When ctx ends first it returns ctx.Err(); when the queue is closed it
// returns ErrClosed.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		item, ok, err := q.take()
		if ok || err != nil {
			return item, err
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.done:
			var zero T
			return zero, ErrClosed
		case <-q.ready:
		}
	}
}

// TryPop removes and returns the head item if one is immediately available.
func (q *Queue[T]) TryPop() (T, bool) {
	item, ok, _ := q.take()
	return item, ok
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close releases the buffered items and wakes all blocked consumers.
// It returns how many queued items were discarded; later calls return 0.
func (q *Queue[T]) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0
	}
	dropped := len(q.items) - q.head
	q.closed = true
	q.items = nil
	q.head = 0
	close(q.done)
	return dropped
}

func (q *Queue[T]) take() (T, bool, error) {
	var zero T

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return zero, false, ErrClosed
	}
	if q.head == len(q.items) {
		q.mu.Unlock()
		return zero, false, nil
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	remaining := len(q.items) - q.head
	q.compact()
	q.mu.Unlock()

	// Pass the wake-up on so another waiting consumer sees the rest.
	if remaining > 0 {
		q.signal()
	}
	return item, true, nil
}

// compact reclaims the consumed prefix once it dominates the backing array.
// Must be called with mu held.
func (q *Queue[T]) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head >= 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		var zero T
		for i := n; i < len(q.items); i++ {
			q.items[i] = zero
		}
		q.items = q.items[:n]
		q.head = 0
	}
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
