package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jnfrati/replq/internal/queue"
)

func mustGet[T any](t *testing.T, q *queue.Queue[T]) T {
	t.Helper()

	v, err := q.Get(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestFIFOOrder(t *testing.T) {
	q := queue.New[string]()

	if err := q.Push("v1", "v2", "v3"); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"v1", "v2", "v3"} {
		if got := mustGet(t, q); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestUnshiftFrontInsertion(t *testing.T) {
	q := queue.New[string]()

	if err := q.Push("a", "b"); err != nil {
		t.Fatal(err)
	}
	if err := q.Unshift("c"); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"c", "a", "b"} {
		if got := mustGet(t, q); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestRepeatedUnshiftReversesCallOrder(t *testing.T) {
	q := queue.New[string]()

	q.Push("z")
	q.Unshift("x")
	q.Unshift("y")

	for _, want := range []string{"y", "x", "z"} {
		if got := mustGet(t, q); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestMultiValueUnshiftKeepsArgumentOrder(t *testing.T) {
	q := queue.New[string]()

	q.Push("c")
	q.Unshift("a", "b")

	for _, want := range []string{"a", "b", "c"} {
		if got := mustGet(t, q); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestHandoffBypassesBuffer(t *testing.T) {
	q := queue.New[string]()

	got := make(chan string, 1)
	go func() {
		v, err := q.Get(context.Background())
		if err != nil {
			t.Error(err)
		}
		got <- v
	}()

	// Let the consumer suspend before producing.
	time.Sleep(50 * time.Millisecond)

	if err := q.Push("x"); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-got:
		if v != "x" {
			t.Fatalf("got %q, want %q", v, "x")
		}
	case <-time.After(time.Second):
		t.Fatal("consumer never woke up")
	}

	if size := q.Size(); size != 0 {
		t.Fatalf("hand-off should never touch the buffer, size is %d", size)
	}
}

func TestHandoffTakesOnlyFirstItem(t *testing.T) {
	q := queue.New[string]()

	got := make(chan string, 1)
	go func() {
		v, err := q.Get(context.Background())
		if err != nil {
			t.Error(err)
		}
		got <- v
	}()

	time.Sleep(50 * time.Millisecond)

	if err := q.Push("x", "y", "z"); err != nil {
		t.Fatal(err)
	}

	if v := <-got; v != "x" {
		t.Fatalf("got %q, want %q", v, "x")
	}
	if size := q.Size(); size != 2 {
		t.Fatalf("got size %d, want 2", size)
	}
	if got := mustGet(t, q); got != "y" {
		t.Fatalf("got %q, want %q", got, "y")
	}
}

func TestInterleavedProducers(t *testing.T) {
	q := queue.New[string]()

	q.Push("a")
	q.Push("b")

	if size := q.Size(); size != 2 {
		t.Fatalf("got size %d, want 2", size)
	}

	if got := mustGet(t, q); got != "a" {
		t.Fatalf("got %q, want %q", got, "a")
	}
	if got := mustGet(t, q); got != "b" {
		t.Fatalf("got %q, want %q", got, "b")
	}
}

func TestTerminationDurability(t *testing.T) {
	ctx := t.Context()

	q := queue.New[string]()
	q.Close()

	for range 10 {
		if _, err := q.Get(ctx); !errors.Is(err, queue.ErrQueueDone) {
			t.Fatalf("got %v, want ErrQueueDone", err)
		}

		count := 0
		for range q.All(ctx) {
			count++
		}
		if count != 0 {
			t.Fatalf("sequence yielded %d items after close", count)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	q := queue.New[string]()

	q.Close()
	q.Close()
	q.Close()

	if _, err := q.Get(t.Context()); !errors.Is(err, queue.ErrQueueDone) {
		t.Fatal("queue should be done")
	}
}

func TestClosedQueueRejectsWrites(t *testing.T) {
	q := queue.New[string]()
	q.Close()

	if err := q.Push("anything"); !errors.Is(err, queue.ErrQueueClosed) {
		t.Fatalf("got %v, want ErrQueueClosed", err)
	}
	if err := q.Unshift("anything"); !errors.Is(err, queue.ErrQueueClosed) {
		t.Fatalf("got %v, want ErrQueueClosed", err)
	}
}

func TestCloseDrainsBufferedItems(t *testing.T) {
	q := queue.New[string]()

	q.Push("a", "b")
	q.Close()

	if got := mustGet(t, q); got != "a" {
		t.Fatalf("got %q, want %q", got, "a")
	}
	if got := mustGet(t, q); got != "b" {
		t.Fatalf("got %q, want %q", got, "b")
	}
	if _, err := q.Get(t.Context()); !errors.Is(err, queue.ErrQueueDone) {
		t.Fatalf("got %v, want ErrQueueDone", err)
	}
}

func TestCloseWakesSuspendedConsumer(t *testing.T) {
	q := queue.New[string]()

	done := make(chan error, 1)
	go func() {
		_, err := q.Get(context.Background())
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		if !errors.Is(err, queue.ErrQueueDone) {
			t.Fatalf("got %v, want ErrQueueDone", err)
		}
	case <-time.After(time.Second):
		t.Fatal("consumer never woke up")
	}
}

// Values that look like "nothing", such as nil slices or zero strings, must
// come through as ordinary items; only the queue's own sentinel ends the
// sequence.
func TestSentinelLikeValuesAreDelivered(t *testing.T) {
	q := queue.New[[]byte]()

	q.Push(nil)
	q.Push([]byte{})
	q.Close()

	count := 0
	for range q.All(t.Context()) {
		count++
	}
	if count != 2 {
		t.Fatalf("delivered %d items, want 2", count)
	}
}

func TestSecondConsumerIsRejected(t *testing.T) {
	q := queue.New[string]()

	go q.Get(context.Background())

	time.Sleep(50 * time.Millisecond)

	if _, err := q.Get(t.Context()); !errors.Is(err, queue.ErrConsumerBusy) {
		t.Fatalf("got %v, want ErrConsumerBusy", err)
	}

	q.Close()
}

func TestAllDeliversInOrderAcrossKinds(t *testing.T) {
	q := queue.New[string]()

	q.Push("a", "b")
	q.Unshift("c")
	q.Push("d")
	q.Close()

	var got []string
	for v := range q.All(t.Context()) {
		got = append(got, v)
	}

	want := []string{"c", "a", "b", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestGetHonoursContext(t *testing.T) {
	q := queue.New[string]()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}

	// The abandoned waiter must not swallow the next item.
	q.Push("x")
	if got := mustGet(t, q); got != "x" {
		t.Fatalf("got %q, want %q", got, "x")
	}
}
