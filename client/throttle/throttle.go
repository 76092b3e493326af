package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config defines the throttler's requests per second and burst capacity.
type Config struct {
	RPS   int `yaml:"rps" validate:"gt=0"`
	Burst int `yaml:"burst" validate:"gt=0"`
}

// Validate reports whether both limits are positive.
func (c Config) Validate() error {
	if c.RPS <= 0 || c.Burst <= 0 {
		return fmt.Errorf("rps[%d] and burst[%d] %w", c.RPS, c.Burst, ErrMustNotBeZero)
	}
	return nil
}

// Option configures the throttling RoundTripper.
type Option func(*RoundTripper)

// WithLogger lazily resolves the logger at dispatch time, so it can
// follow a logger that is swapped after construction.
func WithLogger(logFn func() *slog.Logger) Option {
	return func(rt *RoundTripper) {
		rt.logFn = logFn
	}
}

// RoundTripper delays outbound dispatches to stay within its [Config].
type RoundTripper struct {
	limiter *rate.Limiter
	cfg     Config
	next    http.RoundTripper
	logFn   func() *slog.Logger
	delayed atomic.Int64
}

// NewRoundTripper wraps next with a limiter built from cfg.
func NewRoundTripper(cfg Config, next http.RoundTripper, opts ...Option) (*RoundTripper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if next == nil {
		next = http.DefaultTransport
	}

	rt := &RoundTripper{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cfg:     cfg,
		next:    next,
		logFn:   func() *slog.Logger { return nil },
	}
	for _, opt := range opts {
		opt(rt)
	}

	return rt, nil
}

// Delayed reports how many dispatches had to wait for a token.
func (t *RoundTripper) Delayed() int64 {
	return t.delayed.Load()
}

func (t *RoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	if t.limiter.Allow() {
		return t.next.RoundTrip(r)
	}

	t.delayed.Add(1)
	logger := t.logFn()
	if logger != nil {
		logger.Info("throttle tokens exhausted", "rate", t.cfg.RPS, "burst", t.cfg.Burst, "url", r.URL.Redacted())
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}
	if logger != nil {
		logger.Info("throttle wait complete", "waited", time.Since(start).String())
	}

	if err := ctx.Err(); err != nil { // Check context hasn't expired again.
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return t.next.RoundTrip(r)
}
