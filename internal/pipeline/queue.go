package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrQueueClosed is returned by Receive once a closed queue is empty.
var ErrQueueClosed = errors.New("queue closed")

// Queue is a bounded hand-off between two stages. Producers never block:
// when the queue is full the item is dropped and counted. Items that are
// not dropped are received in FIFO order.
type Queue[T any] struct {
	name    string
	items   chan T
	dropped atomic.Uint64
	logger  *slog.Logger
	close   sync.Once
}

// NewQueue creates a queue holding at most capacity items. A nil logger
// discards drop warnings.
func NewQueue[T any](name string, capacity int, logger *slog.Logger) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger
	}
	return &Queue[T]{
		name:   name,
		items:  make(chan T, capacity),
		logger: logger,
	}
}

// Offer attempts a non-blocking send and reports whether v was accepted.
func (q *Queue[T]) Offer(v T) bool {
	select {
	case q.items <- v:
		return true
	default:
		dropped := q.dropped.Add(1)
		q.logger.Warn("queue full, item dropped",
			slog.String("queue", q.name),
			slog.Int("capacity", cap(q.items)),
			slog.Uint64("dropped", dropped))
		return false
	}
}

// Receive blocks until an item is available or ctx is done. Items still
// waiting in a closed queue are delivered before ErrQueueClosed.
func (q *Queue[T]) Receive(ctx context.Context) (T, error) {
	var zero T

	select {
	case v, ok := <-q.items:
		if !ok {
			return zero, ErrQueueClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close tells the consumer that no more items will be offered. Only the
// producing stage may close a queue, and it must not Offer afterwards.
func (q *Queue[T]) Close() {
	q.close.Do(func() { close(q.items) })
}

// Name returns the queue name used in log records.
func (q *Queue[T]) Name() string {
	return q.name
}

// Len returns the number of items waiting.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.items)
}

// Dropped returns how many items were rejected by Offer.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}
