package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"
	"gocloud.dev/blob"

	"github.com/adamwoolhether/httpchain/client/async"
	"github.com/adamwoolhether/httpchain/client/download"
)

// Request accumulates the configuration of an exchange through chained
// setters and runs it with a terminal verb. Setters mutate the Request in
// place; the With* scope methods return an independent clone. A Request is
// not safe for concurrent use.
//
// Setter failures are recorded and reported by the next terminal verb.
type Request struct {
	client *Client

	baseURL string
	url     string
	batch   []string

	opts       Options
	retry      Retry
	async      bool
	middleware []Middleware
	progress   download.ProgressFunc
	settings   settings

	onSuccess []func(*Response)
	onFailure []func(error)

	ledger *async.Ledger[*Response]
	resp   *Response
	err    error
}

func (r *Request) fail(err error) *Request {
	if r.err == nil {
		r.err = err
	}
	return r
}

// =============================================================================
// Targets and payload

// To targets a single URL, clearing any batch.
func (r *Request) To(url string) *Request {
	r.url, r.batch = url, nil
	return r
}

// ToBatch targets an ordered list of URLs dispatched with shared options.
func (r *Request) ToBatch(urls ...string) *Request {
	r.url, r.batch = "", slices.Clone(urls)
	return r
}

// WithMethod sets the HTTP method used by [Request.Send].
func (r *Request) WithMethod(method string) *Request {
	r.opts.Method = method
	return r
}

// WithHeaders merges headers, replacing existing values of the same name.
func (r *Request) WithHeaders(headers map[string]string) *Request {
	mergeHeader(r.opts.Header, headers)
	return r
}

// WithHeader sets a single header.
func (r *Request) WithHeader(key, value string) *Request {
	r.opts.Header.Set(key, value)
	return r
}

// WithCookie attaches a cookie to every dispatch.
func (r *Request) WithCookie(cookie *http.Cookie) *Request {
	r.opts.Cookies = append(r.opts.Cookies, cookie)
	return r
}

// WithQuery replaces the query parameters wholesale.
func (r *Request) WithQuery(query map[string]string) *Request {
	q := make(url.Values, len(query))
	for k, v := range query {
		q.Set(k, v)
	}
	r.opts.Query = q
	return r
}

// WithBody sets a raw body, clearing any JSON payload. body may be a
// []byte, a string, an io.Reader (read immediately), url.Values or a
// map[string]string; the last two are form encoded.
func (r *Request) WithBody(body any) *Request {
	var (
		b           []byte
		contentType string
	)
	switch v := body.(type) {
	case []byte:
		b = slices.Clone(v)
	case string:
		b, contentType = []byte(v), "text/plain; charset=utf-8"
	case url.Values:
		b, contentType = []byte(v.Encode()), "application/x-www-form-urlencoded"
	case map[string]string:
		form := make(url.Values, len(v))
		for k, val := range v {
			form.Set(k, val)
		}
		b, contentType = []byte(form.Encode()), "application/x-www-form-urlencoded"
	case io.Reader:
		var err error
		if b, err = io.ReadAll(v); err != nil {
			return r.fail(fmt.Errorf("reading body: %w", err))
		}
	default:
		return r.fail(fmt.Errorf("unsupported body type %T", body))
	}

	if b == nil {
		b = []byte{}
	}

	r.opts.Body, r.opts.ContentType, r.opts.JSON = b, contentType, nil
	return r
}

// WithJSON sets a payload encoded as JSON at dispatch, clearing any raw body.
func (r *Request) WithJSON(v any) *Request {
	r.opts.JSON, r.opts.Body, r.opts.ContentType = v, nil, ""
	return r
}

// WithOptions overlays opts: headers and query merge, every other set field
// replaces the current value.
func (r *Request) WithOptions(opts Options) *Request {
	if len(opts.Multipart) > 0 {
		parts, err := bufferParts(opts.Multipart)
		if err != nil {
			return r.fail(err)
		}
		opts.Multipart = parts
	}
	r.opts.overlay(opts)
	return r
}

// WithMultipart sends parts as multipart/form-data, superseding body and JSON.
func (r *Request) WithMultipart(parts ...Part) *Request {
	buffered, err := bufferParts(parts)
	if err != nil {
		return r.fail(err)
	}
	r.opts.Multipart = append(r.opts.Multipart, buffered...)
	return r
}

// =============================================================================
// Execution modifiers

// Async makes terminal verbs dispatch without waiting. Results are
// collected with [Request.Wait].
func (r *Request) Async(enabled bool) *Request {
	r.async = enabled
	return r
}

// Timeout bounds every attempt. Zero removes the bound.
func (r *Request) Timeout(d time.Duration) *Request {
	if d < 0 {
		return r.fail(errors.New("timeout must not be negative"))
	}
	r.opts.Timeout = d
	return r
}

// Retry allows maxRetries further attempts after a 5xx status or transport
// failure, pausing delay between them. Async and batch sends never retry.
func (r *Request) Retry(maxRetries int, delay time.Duration) *Request {
	if maxRetries < 0 || delay < 0 {
		return r.fail(fmt.Errorf("retry[%d, %s]: values must not be negative", maxRetries, delay))
	}
	r.retry = Retry{MaxRetries: maxRetries, Delay: delay}
	return r
}

// RetryDefault is Retry with [DefaultRetryDelay].
func (r *Request) RetryDefault(maxRetries int) *Request {
	return r.Retry(maxRetries, DefaultRetryDelay)
}

// WithBasicAuth sends HTTP basic credentials.
func (r *Request) WithBasicAuth(user, password string) *Request {
	r.opts.Auth = Auth{Kind: AuthBasic, User: user, Password: password}
	return r
}

// WithBearerToken sends an Authorization bearer token.
func (r *Request) WithBearerToken(token string) *Request {
	r.opts.Auth = Auth{Kind: AuthBearer, Token: token}
	return r
}

// WithMiddleware appends to the middleware chain.
func (r *Request) WithMiddleware(mw ...Middleware) *Request {
	for _, m := range mw {
		if m == nil {
			return r.fail(errors.New("middleware must not be nil"))
		}
	}
	r.middleware = append(r.middleware, mw...)
	return r
}

// WithProgress registers a callback invoked for every chunk written by
// [Request.Download].
func (r *Request) WithProgress(fn download.ProgressFunc) *Request {
	r.progress = fn
	return r
}

// WithHTTPVersion pins the protocol: "1.1" disables HTTP/2, "2.0" attempts it.
func (r *Request) WithHTTPVersion(version string) *Request {
	if _, err := parseHTTPVersion(version); err != nil {
		return r.fail(err)
	}
	r.opts.HTTPVersion = version
	return r
}

// OnSuccess registers fn to run after every successful send, and for every
// successful entry drained by [Request.Wait].
func (r *Request) OnSuccess(fn func(*Response)) *Request {
	r.onSuccess = append(r.onSuccess, fn)
	return r
}

// OnFailure registers fn to run after every failed send, and for every
// failed entry drained by [Request.Wait].
func (r *Request) OnFailure(fn func(error)) *Request {
	r.onFailure = append(r.onFailure, fn)
	return r
}

// =============================================================================
// Scoped clones

func (r *Request) clone() *Request {
	return &Request{
		client:     r.client,
		baseURL:    r.baseURL,
		url:        r.url,
		batch:      slices.Clone(r.batch),
		opts:       r.opts.Clone(),
		retry:      r.retry,
		async:      r.async,
		middleware: slices.Clone(r.middleware),
		progress:   r.progress,
		settings:   r.settings,
		onSuccess:  slices.Clone(r.onSuccess),
		onFailure:  slices.Clone(r.onFailure),
		ledger:     async.New[*Response](r.ledger.Limit()),
		err:        r.err,
	}
}

// WithScope returns a clone of r with s overlaid. r is left untouched.
func (r *Request) WithScope(s Scope) *Request {
	cpy := r.clone()
	if s.BaseURL != "" {
		cpy.baseURL = s.BaseURL
	}
	if len(s.Options.Multipart) > 0 {
		parts, err := bufferParts(s.Options.Multipart)
		if err != nil {
			return cpy.fail(err)
		}
		s.Options.Multipart = parts
	}
	cpy.opts.overlay(s.Options)
	if s.Retry != nil {
		cpy.retry = *s.Retry
	}
	if s.FollowRedirects != nil {
		cpy.settings.redirects = *s.FollowRedirects
	}
	if s.VerifyPeer != nil {
		cpy.settings.verify = *s.VerifyPeer
	}
	if s.HTTPMode != nil {
		cpy.settings.mode = *s.HTTPMode
	}
	return cpy
}

// WithBaseURL returns a clone resolving relative targets against base.
func (r *Request) WithBaseURL(base string) *Request {
	return r.WithScope(Scope{BaseURL: base})
}

// WithFollowRedirects returns a clone following up to limit redirects.
// A limit of 0 returns redirect responses as-is.
func (r *Request) WithFollowRedirects(limit int) *Request {
	return r.WithScope(Scope{FollowRedirects: &limit})
}

// WithVerifyPeer returns a clone that does or does not verify TLS peers.
func (r *Request) WithVerifyPeer(verify bool) *Request {
	return r.WithScope(Scope{VerifyPeer: &verify})
}

// WithHTTP2 returns a clone that attempts HTTP/2, or with force speaks it
// unconditionally, including h2c over plain http://.
func (r *Request) WithHTTP2(force bool) *Request {
	mode := HTTP2Attempt
	if force {
		mode = HTTP2Force
	}
	return r.WithScope(Scope{HTTPMode: &mode})
}

// WithoutHTTP2 returns a clone restricted to HTTP/1.1.
func (r *Request) WithoutHTTP2() *Request {
	mode := HTTP1Only
	return r.WithScope(Scope{HTTPMode: &mode})
}

// =============================================================================
// Terminal verbs

// Get sends a GET. data may be a map[string]string or url.Values used as the query.
func (r *Request) Get(ctx context.Context, data ...any) (*Response, error) {
	return r.verb(ctx, http.MethodGet, data)
}

// Head sends a HEAD. data is handled as for [Request.Get].
func (r *Request) Head(ctx context.Context, data ...any) (*Response, error) {
	return r.verb(ctx, http.MethodHead, data)
}

// Delete sends a DELETE. Map data becomes the query; anything else the body.
func (r *Request) Delete(ctx context.Context, data ...any) (*Response, error) {
	return r.verb(ctx, http.MethodDelete, data)
}

// Post sends a POST. data of a type accepted by [Request.WithBody] becomes
// the raw body; anything else is sent as JSON.
func (r *Request) Post(ctx context.Context, data ...any) (*Response, error) {
	return r.verb(ctx, http.MethodPost, data)
}

// Put sends a PUT with data handled as for [Request.Post].
func (r *Request) Put(ctx context.Context, data ...any) (*Response, error) {
	return r.verb(ctx, http.MethodPut, data)
}

// Patch sends a PATCH with data handled as for [Request.Post].
func (r *Request) Patch(ctx context.Context, data ...any) (*Response, error) {
	return r.verb(ctx, http.MethodPatch, data)
}

func (r *Request) verb(ctx context.Context, method string, data []any) (*Response, error) {
	r.opts.Method = method

	switch len(data) {
	case 0:
	case 1:
		r.payload(method, data[0])
	default:
		r.fail(fmt.Errorf("%s accepts at most one data argument, got %d", method, len(data)))
	}

	return r.Send(ctx)
}

func (r *Request) payload(method string, data any) {
	queryVerb := method == http.MethodGet || method == http.MethodHead || method == http.MethodDelete

	switch v := data.(type) {
	case map[string]string:
		if queryVerb {
			r.WithQuery(v)
			return
		}
	case url.Values:
		if queryVerb {
			r.opts.Query = cloneValues(v)
			return
		}
	}

	if method == http.MethodGet || method == http.MethodHead {
		r.fail(fmt.Errorf("%s data must be a query map, got %T", method, data))
		return
	}

	switch data.(type) {
	case []byte, string, io.Reader, url.Values, map[string]string:
		r.WithBody(data)
	default:
		r.WithJSON(data)
	}
}

func (r *Request) snapshot() (*call, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.url == "" && len(r.batch) == 0 {
		return nil, ErrMissingURL
	}

	c := &call{
		client:     r.client,
		baseURL:    r.baseURL,
		url:        r.url,
		urls:       slices.Clone(r.batch),
		opts:       r.opts.Clone(),
		middleware: slices.Clone(r.middleware),
		retry:      r.retry,
		settings:   r.settings,
	}

	if err := c.prepare(); err != nil {
		return nil, err
	}

	return c, nil
}

// Send runs the request with its configured method. A single synchronous
// target is retried per [Request.Retry]; any status below 500, 4xx included,
// is returned as a response without an error. In async mode Send returns
// (nil, nil) once the handles are registered.
func (r *Request) Send(ctx context.Context) (*Response, error) {
	c, err := r.snapshot()
	if err != nil {
		return nil, r.finish(nil, err)
	}

	if r.async {
		r.resp = nil
		targets := c.urls
		if len(targets) == 0 {
			targets = []string{c.url}
		}
		for _, target := range targets {
			r.ledger.Start(ctx, func(ctx context.Context) (*Response, error) {
				return c.once(ctx, target)
			})
		}
		return nil, nil
	}

	if len(c.urls) > 0 {
		resp, err := c.batch(ctx)
		return resp, r.finish(resp, err)
	}

	raw, err := c.attempts(ctx, c.url)
	if err != nil {
		return nil, r.finish(nil, err)
	}

	resp, err := c.read(raw)
	return resp, r.finish(resp, err)
}

// finish stores the outcome and fires callbacks.
func (r *Request) finish(resp *Response, err error) error {
	r.resp = resp
	r.notify(resp, err)
	return err
}

func (r *Request) notify(resp *Response, err error) {
	if err != nil {
		for _, fn := range r.onFailure {
			fn(err)
		}
		return
	}
	for _, fn := range r.onSuccess {
		fn(resp)
	}
}

// Response returns the outcome of the last synchronous send, or nil.
func (r *Request) Response() *Response {
	return r.resp
}

// Result is one drained async entry.
type Result struct {
	ID       uuid.UUID
	Response *Response

	// Value holds the body bytes, or the decoded JSON when Wait was asked to decode.
	Value any
	Err   error
}

// Wait blocks for every pending async handle and returns their results in
// dispatch order. Failures stay on their entry. Draining empties the
// ledger, so a second Wait without new dispatches returns nothing.
func (r *Request) Wait(asJSON bool) []Result {
	entries := r.ledger.Drain()

	results := make([]Result, len(entries))
	for i, e := range entries {
		res := Result{ID: e.ID, Response: e.Value, Err: e.Err}

		if res.Err == nil {
			if asJSON {
				var v any
				if err := res.Response.JSON(&v); err != nil {
					res.Err = err
				} else {
					res.Value = v
				}
			} else {
				res.Value, res.Err = res.Response.Body()
			}
		}

		r.notify(res.Response, res.Err)
		results[i] = res
	}

	return results
}

// Pending returns the number of async handles awaiting [Request.Wait].
func (r *Request) Pending() int {
	return r.ledger.Len()
}

// =============================================================================
// Downloads

// Download sends the request, retrying as for [Request.Send], and streams the
// body into path. Responses of 400 and above create no file. Async mode
// does not apply.
func (r *Request) Download(ctx context.Context, path string, opts ...download.Option) error {
	return r.stream(ctx, opts, func(raw *http.Response, opts []download.Option) error {
		return download.Handle(ctx, raw, path, r.client.logger, opts...)
	})
}

// DownloadToBucket is [Request.Download] with a blob bucket object as the
// destination.
func (r *Request) DownloadToBucket(ctx context.Context, bucket *blob.Bucket, key string, opts ...download.Option) error {
	return r.stream(ctx, opts, func(raw *http.Response, opts []download.Option) error {
		return download.ToBucket(ctx, raw, bucket, key, r.client.logger, opts...)
	})
}

func (r *Request) stream(ctx context.Context, opts []download.Option, sink func(*http.Response, []download.Option) error) error {
	c, err := r.snapshot()
	if err != nil {
		return r.finish(nil, err)
	}
	if len(c.urls) > 0 {
		return r.finish(nil, errors.New("download needs a single url"))
	}

	raw, err := c.attempts(ctx, c.url)
	if err != nil {
		return r.finish(nil, err)
	}
	defer func() {
		if err := raw.Body.Close(); err != nil {
			r.client.logger.Error("failed to close response body", "error", err)
		}
	}()

	if r.progress != nil {
		opts = append([]download.Option{download.WithProgress(r.progress)}, opts...)
	}

	resp := newResponse(raw, nil)
	if err := sink(raw, opts); err != nil {
		return r.finish(resp, fmt.Errorf("download: %w", err))
	}

	return r.finish(resp, nil)
}
