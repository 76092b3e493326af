package async

import (
	"context"

	"github.com/google/uuid"
)

// Handle represents an in-flight or completed async exchange.
type Handle[T any] struct {
	id     uuid.UUID
	done   chan struct{}
	val    T
	err    error
	cancel context.CancelFunc
}

// ID identifies the handle in logs.
func (h *Handle[T]) ID() uuid.UUID { return h.id }

// Done returns a channel that is closed when the work completes.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Result blocks until the work completes and returns its outcome.
func (h *Handle[T]) Result() (T, error) {
	<-h.done
	return h.val, h.err
}

// Cancel cancels the handle's context.
func (h *Handle[T]) Cancel() {
	h.cancel()
}
