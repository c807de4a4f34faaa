package future

import (
	"context"
	"sync"
)

// Future holds a value that some other goroutine will provide later.
// It settles exactly once: whichever of complete/fail runs first wins
// and every later attempt is ignored.
type Future[T any] struct {
	done chan struct{}
	once sync.Once

	value T
	err   error
}

// New returns a pending future together with its two completion handles.
// A future that is never completed stays pending forever, so callers must
// not create one they do not intend to settle.
func New[T any]() (f *Future[T], complete func(T), fail func(error)) {
	f = &Future[T]{done: make(chan struct{})}

	complete = func(v T) {
		f.once.Do(func() {
			f.value = v
			close(f.done)
		})
	}

	fail = func(err error) {
		f.once.Do(func() {
			f.err = err
			close(f.done)
		})
	}

	return f, complete, fail
}

// FailSilently rejects the future while treating the rejection as already
// observed: no diagnostic is ever raised if nobody waits on it. Meant for
// futures created speculatively (e.g. during shutdown) that may never be
// awaited.
func (f *Future[T]) FailSilently(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait suspends until the future settles or ctx is cancelled.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
