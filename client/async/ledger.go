package async

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Work is the signature for async work.
type Work[T any] func(ctx context.Context) (T, error)

// Entry is the resolved form of a drained [Handle].
type Entry[T any] struct {
	ID    uuid.UUID
	Value T
	Err   error
}

// Ledger collects fired-but-unresolved handles in registration order.
type Ledger[T any] struct {
	mu      sync.Mutex
	sem     *semaphore.Weighted
	limit   int
	pending []*Handle[T]
}

// New creates a Ledger. If maxInFlight <= 0, the number of concurrently
// executing handles is unlimited.
func New[T any](maxInFlight int) *Ledger[T] {
	l := &Ledger[T]{limit: maxInFlight}
	if maxInFlight > 0 {
		l.sem = semaphore.NewWeighted(int64(maxInFlight))
	}
	return l
}

// Limit reports the in-flight limit the Ledger was created with.
func (l *Ledger[T]) Limit() int { return l.limit }

// Len reports the number of handles waiting to be drained.
func (l *Ledger[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Start launches fn in a new goroutine and registers its handle.
// Start never blocks on fn.
func (l *Ledger[T]) Start(ctx context.Context, fn Work[T]) *Handle[T] {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle[T]{
		id:     uuid.New(),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	l.mu.Lock()
	l.pending = append(l.pending, h)
	l.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				h.err = fmt.Errorf("async work panicked: %v", r)
			}
			cancel()
			close(h.done)
		}()

		if l.sem != nil {
			if err := l.sem.Acquire(ctx, 1); err != nil {
				h.err = err
				return
			}
			defer l.sem.Release(1)
		}

		h.val, h.err = fn(ctx)
	}()

	return h
}

// Drain empties the Ledger and waits for each handle in FIFO order.
// Handles started while Drain is waiting belong to the next Drain.
func (l *Ledger[T]) Drain() []Entry[T] {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	entries := make([]Entry[T], 0, len(pending))
	for _, h := range pending {
		v, err := h.Result()
		entries = append(entries, Entry[T]{ID: h.id, Value: v, Err: err})
	}

	return entries
}
