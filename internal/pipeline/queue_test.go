package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue[int]("test", 1, nil)

	if !q.Offer(1) {
		t.Fatal("first Offer() = false, want true")
	}
	if q.Offer(2) {
		t.Fatal("second Offer() = true, want false")
	}

	if got := q.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	if got := q.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}

	v, err := q.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if v != 1 {
		t.Errorf("Receive() = %d, want the first item", v)
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[string]("test", 3, nil)
	for _, s := range []string{"a", "b", "c", "d"} {
		q.Offer(s)
	}

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
		if got != want {
			t.Errorf("Receive() = %q, want %q", got, want)
		}
	}
}

func TestQueueReceiveCancelled(t *testing.T) {
	q := NewQueue[int]("test", 1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := q.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Receive() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestQueueMinimumCapacity(t *testing.T) {
	if got := NewQueue[int]("test", 0, nil).Cap(); got != 1 {
		t.Errorf("Cap() = %d, want 1", got)
	}
}
