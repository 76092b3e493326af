package download

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"
)

const chunkSize = 32 << 10 // 32KB

// Chunk is one element of a body stream. Data is only valid until the
// next iteration.
type Chunk struct {
	Data    []byte
	First   bool
	Timeout bool
}

type readResult struct {
	n   int
	err error
}

// Chunks returns a lazy, single-use sequence of reads from body. The
// sequence ends at io.EOF; any other read error is yielded once as the
// final element. When idle > 0, a Timeout chunk is yielded each time idle
// elapses without a read completing.
func Chunks(ctx context.Context, body io.Reader, idle time.Duration) iter.Seq2[Chunk, error] {
	if idle <= 0 {
		return directChunks(ctx, body)
	}
	return idleChunks(ctx, body, idle)
}

func directChunks(ctx context.Context, body io.Reader) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		buf := make([]byte, chunkSize)
		first := true

		for {
			if err := ctx.Err(); err != nil {
				yield(Chunk{}, err)
				return
			}

			n, err := body.Read(buf)
			if n > 0 {
				if !yield(Chunk{Data: buf[:n], First: first}, nil) {
					return
				}
				first = false
			}

			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Chunk{}, err)
				return
			}
		}
	}
}

// idleChunks reads on a separate goroutine so a stalled body can be
// reported without blocking. The reader waits for the consumer before
// reusing its buffer.
func idleChunks(ctx context.Context, body io.Reader, idle time.Duration) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		buf := make([]byte, chunkSize)
		results := make(chan readResult)
		next := make(chan struct{})
		stop := make(chan struct{})
		defer close(stop)

		go func() {
			for {
				n, err := body.Read(buf)
				select {
				case results <- readResult{n: n, err: err}:
				case <-stop:
					return
				}
				if err != nil {
					return
				}
				select {
				case <-next:
				case <-stop:
					return
				}
			}
		}()

		timer := time.NewTimer(idle)
		defer timer.Stop()
		first := true

		for {
			select {
			case <-ctx.Done():
				yield(Chunk{}, ctx.Err())
				return

			case <-timer.C:
				if !yield(Chunk{Timeout: true}, nil) {
					return
				}
				timer.Reset(idle)

			case res := <-results:
				if res.n > 0 {
					if !yield(Chunk{Data: buf[:res.n], First: first}, nil) {
						return
					}
					first = false
				}

				if errors.Is(res.err, io.EOF) {
					return
				}
				if res.err != nil {
					yield(Chunk{}, res.err)
					return
				}

				next <- struct{}{}
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(idle)
			}
		}
	}
}
