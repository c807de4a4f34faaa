package queue

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/jnfrati/replq/internal/future"
)

var (
	ErrQueueClosed = errors.New("can't write to queue: queue closed")

	ErrQueueDone = errors.New("can't read from queue: no more items")

	ErrConsumerBusy = errors.New("can't read from queue: another consumer is already waiting")
)

// box wraps a buffered item so that no item value, whatever it is, can be
// confused with the termination sentinel. The sentinel is the nil box.
type box[T any] struct {
	value T
}

// Queue is an unbounded FIFO hand-off queue: any number of producers, one
// consumer at a time. Producers never block. A consumer reading an empty
// queue suspends on a single waiter future, and the next produced item is
// delivered straight to it without touching the buffer.
type Queue[T any] struct {
	mu     sync.Mutex
	buffer []*box[T]
	closed bool

	// waiter is non-nil only while a consumer is suspended, except after
	// Close, which settles it with the sentinel and keeps it around so
	// termination stays observable forever.
	waiter   *future.Future[*box[T]]
	complete func(*box[T])
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends items to the back of the queue in the given order. If a
// consumer is suspended, the first item is handed to it directly and never
// buffered.
func (q *Queue[T]) Push(items ...T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	items = q.handoff(items)

	for _, v := range items {
		q.buffer = append(q.buffer, &box[T]{value: v})
	}
	return nil
}

// Unshift is Push at the front: items not consumed by the hand-off are
// inserted before everything already buffered, keeping their argument order
// among themselves.
func (q *Queue[T]) Unshift(items ...T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	items = q.handoff(items)

	if len(items) == 0 {
		return nil
	}

	front := make([]*box[T], 0, len(items)+len(q.buffer))
	for _, v := range items {
		front = append(front, &box[T]{value: v})
	}
	q.buffer = append(front, q.buffer...)
	return nil
}

// handoff delivers the first item to a suspended consumer, if there is one,
// and returns the items still to be buffered. Caller holds q.mu.
func (q *Queue[T]) handoff(items []T) []T {
	if q.waiter == nil || len(items) == 0 {
		return items
	}

	q.complete(&box[T]{value: items[0]})
	q.waiter, q.complete = nil, nil
	return items[1:]
}

// Get returns the oldest buffered item, or suspends until a producer or
// Close delivers one. Once the queue is closed and drained, every call
// returns ErrQueueDone.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T

	q.mu.Lock()

	if len(q.buffer) > 0 {
		b := q.buffer[0]
		q.buffer = q.buffer[1:]
		q.mu.Unlock()
		return b.value, nil
	}

	if q.closed {
		q.mu.Unlock()
		return zero, ErrQueueDone
	}

	if q.waiter != nil {
		q.mu.Unlock()
		return zero, ErrConsumerBusy
	}

	f, complete, _ := future.New[*box[T]]()
	q.waiter, q.complete = f, complete
	q.mu.Unlock()

	b, err := f.Wait(ctx)
	if err != nil {
		q.mu.Lock()
		select {
		case <-f.Done():
			// A producer settled the waiter while we were giving up.
			// Deliver its value instead of dropping it.
			q.mu.Unlock()
			b, _ = f.Wait(context.Background())
		default:
			if q.waiter == f {
				q.waiter, q.complete = nil, nil
			}
			q.mu.Unlock()
			return zero, err
		}
	}

	if b == nil {
		return zero, ErrQueueDone
	}
	return b.value, nil
}

// Size reports how many items are buffered. A suspended consumer does not
// count.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// Close marks the queue closed and wakes a suspended consumer with the
// termination sentinel. Buffered items remain readable; once they drain,
// every Get observes ErrQueueDone. Idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		if q.waiter == nil {
			// Throwaway, already-settled waiter. Harmless, keeps the
			// sentinel observable.
			f, complete, _ := future.New[*box[T]]()
			complete(nil)
			q.waiter = f
		}
		return
	}

	q.closed = true

	if q.waiter == nil {
		q.waiter, q.complete, _ = future.New[*box[T]]()
	}
	q.complete(nil)
	q.complete = nil
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// All returns a lazy, forward-only view of the queue's items in delivery
// order. Each advance performs exactly one Get; the sequence ends the first
// time the termination sentinel (or ctx cancellation) is observed. The view
// is not restartable.
func (q *Queue[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, err := q.Get(ctx)
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}
