package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestHandle_Result(t *testing.T) {
	wantErr := errors.New("boom")
	l := New[int](0)

	h := l.Start(t.Context(), func(ctx context.Context) (int, error) {
		return 0, wantErr
	})

	if _, err := h.Result(); !errors.Is(err, wantErr) {
		t.Errorf("expected %v, got %v", wantErr, err)
	}
}

func TestHandle_Done(t *testing.T) {
	l := New[int](0)

	h := l.Start(t.Context(), func(ctx context.Context) (int, error) {
		return 1, nil
	})

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("Done channel was not closed in time")
	}
}

func TestLedger_DrainFIFO(t *testing.T) {
	l := New[string](0)

	// The first handle finishes last; drain order must still follow registration.
	release := make(chan struct{})
	l.Start(t.Context(), func(ctx context.Context) (string, error) {
		<-release
		return "a", nil
	})
	l.Start(t.Context(), func(ctx context.Context) (string, error) {
		return "b", nil
	})

	time.Sleep(20 * time.Millisecond)
	close(release)

	entries := l.Drain()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Value != "a" || entries[1].Value != "b" {
		t.Errorf("expected [a b], got [%s %s]", entries[0].Value, entries[1].Value)
	}
}

func TestLedger_DrainIsDestructive(t *testing.T) {
	l := New[int](0)
	l.Start(t.Context(), func(ctx context.Context) (int, error) { return 1, nil })

	if got := len(l.Drain()); got != 1 {
		t.Fatalf("first drain: expected 1 entry, got %d", got)
	}
	if got := len(l.Drain()); got != 0 {
		t.Fatalf("second drain: expected 0 entries, got %d", got)
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d", l.Len())
	}
}

func TestLedger_PartialFailureIsolation(t *testing.T) {
	wantErr := errors.New("only failure")
	l := New[int](0)

	l.Start(t.Context(), func(ctx context.Context) (int, error) { return 1, nil })
	l.Start(t.Context(), func(ctx context.Context) (int, error) { return 0, wantErr })
	l.Start(t.Context(), func(ctx context.Context) (int, error) { return 3, nil })

	entries := l.Drain()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Err != nil || entries[0].Value != 1 {
		t.Errorf("entry 0: %+v", entries[0])
	}
	if !errors.Is(entries[1].Err, wantErr) {
		t.Errorf("entry 1: expected %v, got %v", wantErr, entries[1].Err)
	}
	if entries[2].Err != nil || entries[2].Value != 3 {
		t.Errorf("entry 2: %+v", entries[2])
	}
}

func TestLedger_PanicIsCaptured(t *testing.T) {
	l := New[int](0)
	l.Start(t.Context(), func(ctx context.Context) (int, error) { panic("kaboom") })

	entries := l.Drain()
	if len(entries) != 1 || entries[0].Err == nil {
		t.Fatalf("expected captured panic, got %+v", entries)
	}
}

func TestLedger_InFlightLimit(t *testing.T) {
	const limit = 2
	const total = 5

	l := New[int](limit)

	var running atomic.Int32
	var maxRunning atomic.Int32
	barrier := make(chan struct{})

	for range total {
		l.Start(t.Context(), func(ctx context.Context) (int, error) {
			cur := running.Add(1)
			for {
				old := maxRunning.Load()
				if cur <= old || maxRunning.CompareAndSwap(old, cur) {
					break
				}
			}
			<-barrier
			running.Add(-1)
			return 0, nil
		})
	}

	time.Sleep(50 * time.Millisecond)
	close(barrier)

	for _, e := range l.Drain() {
		if e.Err != nil {
			t.Fatalf("unexpected error: %v", e.Err)
		}
	}

	if peak := maxRunning.Load(); peak > limit {
		t.Errorf("max concurrent was %d, want <= %d", peak, limit)
	}
}

func TestHandle_Cancel(t *testing.T) {
	l := New[int](0)

	started := make(chan struct{})
	h := l.Start(t.Context(), func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	<-started
	h.Cancel()

	if _, err := h.Result(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLedger_CancelledWhileWaitingForSlot(t *testing.T) {
	l := New[int](1)

	release := make(chan struct{})
	l.Start(t.Context(), func(ctx context.Context) (int, error) {
		<-release
		return 0, nil
	})

	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	h := l.Start(ctx, func(ctx context.Context) (int, error) {
		t.Error("work function should not have run")
		return 0, nil
	})

	if _, err := h.Result(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	close(release)
	l.Drain()
}
