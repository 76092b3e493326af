package throttle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRoundTripper_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		cfg    Config
		expErr error
	}{
		{name: "Invalid RPS (zero)", cfg: Config{RPS: 0, Burst: 10}, expErr: ErrMustNotBeZero},
		{name: "Invalid RPS (negative)", cfg: Config{RPS: -5, Burst: 10}, expErr: ErrMustNotBeZero},
		{name: "Invalid Burst (zero)", cfg: Config{RPS: 10, Burst: 0}, expErr: ErrMustNotBeZero},
		{name: "Valid input", cfg: Config{RPS: 10, Burst: 20}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rt, err := NewRoundTripper(tc.cfg, http.DefaultTransport)

			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Errorf("exp err %v; got: %v", tc.expErr, err)
				}
				return
			}

			if err != nil {
				t.Errorf("exp nil err, got: %v", err)
			}
			if rt == nil {
				t.Error("exp non-nil RoundTripper")
			}
		})
	}
}

func TestRoundTripper_WithinBurstIsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rt, err := NewRoundTripper(Config{RPS: 5, Burst: 5}, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Transport: rt}

	start := time.Now()
	for range 5 {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()
	}

	if took := time.Since(start); took > 150*time.Millisecond {
		t.Errorf("expected requests within burst to be fast, took %v", took)
	}
	if calls.Load() != 5 {
		t.Errorf("expected 5 server calls, got %d", calls.Load())
	}
	if rt.Delayed() != 0 {
		t.Errorf("expected no delayed dispatches, got %d", rt.Delayed())
	}
}

func TestRoundTripper_ExceedBurstSlowsDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rt, err := NewRoundTripper(Config{RPS: 10, Burst: 5}, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Transport: rt}

	var wg sync.WaitGroup
	errs := make([]error, 8)

	start := time.Now()
	for i := range 8 {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, nil)
			if err != nil {
				errs[idx] = err
				return
			}
			resp, err := client.Do(req)
			if err != nil {
				errs[idx] = err
				return
			}
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d failed: %v", i, err)
		}
	}

	// (8-5) calls / 10 RPS = 0.3 seconds
	if took := time.Since(start); took < 250*time.Millisecond {
		t.Errorf("expected throttled execution, took %v", took)
	}
	if rt.Delayed() == 0 {
		t.Error("expected delayed dispatches")
	}
}

func TestRoundTripper_WaitTimesOut(t *testing.T) {
	rt, err := NewRoundTripper(Config{RPS: 1, Burst: 1}, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}

	// Consume the only token.
	rt.limiter.Allow()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = rt.RoundTrip(req)
	if !errors.Is(err, ErrWaitingFailed) {
		t.Fatalf("expected ErrWaitingFailed, got %v", err)
	}
}

func TestRoundTripper_PreCancelledContext(t *testing.T) {
	rt, err := NewRoundTripper(Config{RPS: 10, Burst: 10}, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = rt.RoundTrip(req)
	if !errors.Is(err, ErrContextEnded) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected ErrContextEnded wrapping context.Canceled, got %v", err)
	}
}
