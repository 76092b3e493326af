package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpchain/client/errs"
)

// RequestIDHeader is stamped on every dispatch when [WithRequestID] is set.
const RequestIDHeader = "X-Request-Id"

// call is the frozen copy of a Request taken when a terminal verb runs.
// Nothing a caller does to the Request afterwards reaches it.
type call struct {
	client     *Client
	baseURL    string
	url        string
	urls       []string
	opts       Options
	middleware []Middleware
	retry      Retry
	settings   settings
}

// prepare rejects an unusable HTTP version before any attempt runs.
func (c *call) prepare() error {
	if c.opts.HTTPVersion != "" {
		if _, err := parseHTTPVersion(c.opts.HTTPVersion); err != nil {
			return err
		}
	}
	return nil
}

// derive applies the HTTP version override and the multipart transform to
// the options of one dispatch, after middleware has run.
func (c *call) derive(opts Options) (Options, settings, error) {
	s := c.settings
	if opts.HTTPVersion != "" {
		mode, err := parseHTTPVersion(opts.HTTPVersion)
		if err != nil {
			return opts, s, err
		}
		s.mode = mode
	}

	if len(opts.Multipart) > 0 {
		body, contentType, err := encodeMultipart(opts.Multipart)
		if err != nil {
			return opts, s, err
		}
		opts.Body, opts.ContentType, opts.JSON = body, contentType, nil
		opts.Multipart = nil
		if opts.Header == nil {
			opts.Header = http.Header{}
		}
		opts.Header.Set("Content-Type", contentType)
	}

	return opts, s, nil
}

// buildError marks a request that could not be constructed. It is never
// retried.
type buildError struct {
	err error
}

func (e *buildError) Error() string { return e.err.Error() }
func (e *buildError) Unwrap() error { return e.err }

func parseHTTPVersion(v string) (HTTPMode, error) {
	switch v {
	case "1.1", "1":
		return HTTP1Only, nil
	case "2.0", "2":
		return HTTP2Attempt, nil
	default:
		return HTTPDefault, fmt.Errorf("unsupported http version %q", v)
	}
}

// resolve joins a relative target onto the base URL.
func resolve(base, target string) string {
	if base == "" {
		return target
	}
	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		return target
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(target, "/")
}

// dispatch performs one exchange and returns the response with its body
// unread. Closing the body releases the per-attempt timeout.
func (c *call) dispatch(ctx context.Context, target string, attempt int) (*http.Response, error) {
	opts := applyMiddleware(c.opts.Clone(), c.middleware)

	var cancel context.CancelFunc = func() {}
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}

	ctx, span := c.client.tracer.Start(ctx, "httpchain.attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", opts.Method),
			attribute.String("url.full", target),
			attribute.Int("httpchain.attempt", attempt),
		),
	)
	defer span.End()

	opts, s, err := c.derive(opts)
	if err != nil {
		cancel()
		span.SetStatus(codes.Error, err.Error())
		return nil, &buildError{err: err}
	}

	req, err := c.newRequest(ctx, target, opts, s)
	if err != nil {
		cancel()
		span.SetStatus(codes.Error, err.Error())
		return nil, &buildError{err: err}
	}

	resp, err := c.client.hc.Do(req)
	if err != nil {
		cancel()
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, resp.Status)
	}

	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}

	return resp, nil
}

func (c *call) newRequest(ctx context.Context, target string, opts Options, s settings) (*http.Request, error) {
	u, err := url.Parse(resolve(c.baseURL, target))
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	if len(opts.Query) > 0 {
		q := u.Query()
		for k, v := range opts.Query {
			q[k] = v
		}
		u.RawQuery = q.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case opts.JSON != nil:
		b, err := json.Marshal(opts.JSON)
		if err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	case opts.Body != nil:
		body, contentType = bytes.NewReader(opts.Body), opts.ContentType
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(withSettings(ctx, s), method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	req.Header = opts.Header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	switch opts.Auth.Kind {
	case AuthBasic:
		req.SetBasicAuth(opts.Auth.User, opts.Auth.Password)
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+opts.Auth.Token)
	}

	for _, cookie := range opts.Cookies {
		req.AddCookie(cookie)
	}

	if c.client.requestID && req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	return req, nil
}

// attempts runs the synchronous retry loop against target. A status below
// 500 ends the loop and is returned with its body unread; 5xx statuses and
// transport failures are retried until MaxRetries is exhausted.
func (c *call) attempts(ctx context.Context, target string) (*http.Response, error) {
	total := c.retry.MaxRetries + 1
	logger := c.client.logger

	var (
		made    int
		lastErr error
	)
	for made < total {
		made++

		resp, err := c.dispatch(ctx, target, made)
		var be *buildError
		if errors.As(err, &be) {
			return nil, be.err
		}
		if err == nil {
			if resp.StatusCode < 500 {
				return resp, nil
			}
			err = c.drainStatus(resp)
		}
		lastErr = err

		if ctx.Err() != nil || made == total {
			break
		}

		logger.Warn("retrying request",
			"method", c.opts.Method,
			"url", target,
			"attempt", made,
			"max_attempts", total,
			"delay", c.retry.Delay,
			"error", err,
		)

		if err := sleep(ctx, c.retry.Delay); err != nil {
			lastErr = fmt.Errorf("waiting to retry: %w", err)
			break
		}
	}

	logger.Error("request failed", "method", c.opts.Method, "url", target, "attempts", made, "error", lastErr)

	return nil, &errs.NetworkError{Attempts: made, Err: lastErr}
}

// once dispatches a single attempt with no retry. 5xx statuses become a
// *errs.StatusError.
func (c *call) once(ctx context.Context, target string) (*Response, error) {
	resp, err := c.dispatch(ctx, target, 1)
	var be *buildError
	if errors.As(err, &be) {
		return nil, be.err
	}
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 500 {
		return nil, c.drainStatus(resp)
	}

	return c.read(resp)
}

// read consumes and closes the body of resp.
func (c *call) read(resp *http.Response) (*Response, error) {
	defer c.close(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", errs.ErrTransport, err)
	}

	return newResponse(resp, body), nil
}

func (c *call) drainStatus(resp *http.Response) error {
	defer c.close(resp)

	b, err := io.ReadAll(io.LimitReader(resp.Body, errs.MaxErrBodySize))
	if err != nil {
		b = []byte("unable to read body")
	}

	return errs.NewStatusError(resp.StatusCode, b)
}

func (c *call) close(resp *http.Response) {
	if _, err := io.Copy(io.Discard, resp.Body); err != nil && !errors.Is(err, context.Canceled) {
		c.client.logger.Error("failed to discard unused body", "error", err)
	}
	if err := resp.Body.Close(); err != nil {
		c.client.logger.Error("failed to close response body", "error", err)
	}
}

// batch dispatches every URL once, in order, and fails on the first
// transport failure or 5xx status.
func (c *call) batch(ctx context.Context) (*Response, error) {
	parts := make([][]byte, 0, len(c.urls))
	for i, target := range c.urls {
		resp, err := c.once(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("batch url[%d] %s: %w", i, target, err)
		}
		parts = append(parts, resp.body)
	}

	return newBatchResponse(parts), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cancelBody releases the attempt context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
