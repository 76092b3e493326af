package client

import (
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/httpchain/client/async"
	"github.com/adamwoolhether/httpchain/client/throttle"
)

// Client owns the transport stack shared by every [Request] it creates.
// It is safe for concurrent use; the Requests it hands out are not.
type Client struct {
	hc          *http.Client
	logger      *slog.Logger
	tracer      trace.Tracer
	requestID   bool
	maxInFlight int
	redirects   int
}

// Build creates a Client from the given options. Without options it uses
// [http.DefaultTransport], follows redirects the way net/http does and logs
// to [slog.Default].
func Build(optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	client := &Client{
		logger:      slog.Default(),
		tracer:      noop.NewTracerProvider().Tracer("httpchain"),
		requestID:   opts.requestID,
		maxInFlight: opts.maxInFlight,
		redirects:   defaultRedirects,
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}
	if opts.tracer != nil {
		client.tracer = opts.tracer
	}
	if opts.noFollowRedirects {
		client.redirects = 0
	}

	hc := &http.Client{}
	if opts.client != nil {
		hc.Timeout = opts.client.Timeout
		hc.Jar = opts.client.Jar
	}
	if opts.timeout != nil {
		hc.Timeout = *opts.timeout
	}

	var base http.RoundTripper
	switch {
	case opts.rt != nil:
		base = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		base = opts.client.Transport
	default:
		base = http.DefaultTransport
	}

	var transport http.RoundTripper = newModeTransport(base, client.logger)
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.throttle, transport,
			throttle.WithLogger(func() *slog.Logger { return client.logger }),
		)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}

	hc.Transport = transport
	hc.CheckRedirect = checkRedirect
	client.hc = hc

	return client, nil
}

// New returns an empty GET [Request] bound to c.
func (c *Client) New() *Request {
	return &Request{
		client: c,
		opts: Options{
			Method: http.MethodGet,
			Header: http.Header{},
		},
		settings: settings{
			redirects: c.redirects,
			verify:    true,
		},
		ledger: async.New[*Response](c.maxInFlight),
	}
}

// To is shorthand for c.New().To(url).
func (c *Client) To(url string) *Request {
	return c.New().To(url)
}

// Logger returns the logger the Client reports to.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}
