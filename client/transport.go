package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"

	"golang.org/x/net/http2"
)

// defaultRedirects is the redirect limit used unless a scope or option changes it.
const defaultRedirects = 10

// HTTPMode selects the protocol negotiation a request uses.
type HTTPMode int

const (
	// HTTPDefault leaves negotiation to the base transport.
	HTTPDefault HTTPMode = iota
	// HTTP1Only disables HTTP/2 entirely.
	HTTP1Only
	// HTTP2Attempt offers HTTP/2 over TLS and falls back to HTTP/1.1.
	HTTP2Attempt
	// HTTP2Force speaks HTTP/2 unconditionally, using prior knowledge (h2c)
	// for plain http:// URLs.
	HTTP2Force
)

func (m HTTPMode) String() string {
	switch m {
	case HTTP1Only:
		return "http1"
	case HTTP2Attempt:
		return "http2"
	case HTTP2Force:
		return "http2-force"
	default:
		return "default"
	}
}

// settings are the per-request transport knobs a scope can change.
type settings struct {
	redirects int
	verify    bool
	mode      HTTPMode
}

type settingsKey struct{}

func withSettings(ctx context.Context, s settings) context.Context {
	return context.WithValue(ctx, settingsKey{}, s)
}

func settingsFrom(ctx context.Context) (settings, bool) {
	s, ok := ctx.Value(settingsKey{}).(settings)
	return s, ok
}

// checkRedirect enforces the redirect limit carried by the request context.
func checkRedirect(req *http.Request, via []*http.Request) error {
	limit := defaultRedirects
	if s, ok := settingsFrom(req.Context()); ok {
		limit = s.redirects
	}

	if limit <= 0 {
		return http.ErrUseLastResponse
	}
	if len(via) > limit {
		return fmt.Errorf("stopped after %d redirects", limit)
	}

	return nil
}

type variantKey struct {
	mode     HTTPMode
	insecure bool
}

// modeTransport routes each request to a transport variant matching its
// settings. Variants are derived from base once and reused.
type modeTransport struct {
	base   http.RoundTripper
	logger *slog.Logger

	mu       sync.Mutex
	variants map[variantKey]http.RoundTripper
}

func newModeTransport(base http.RoundTripper, logger *slog.Logger) *modeTransport {
	return &modeTransport{
		base:     base,
		logger:   logger,
		variants: make(map[variantKey]http.RoundTripper),
	}
}

func (m *modeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s, ok := settingsFrom(req.Context())
	if !ok || (s.mode == HTTPDefault && s.verify) {
		return m.base.RoundTrip(req)
	}

	rt, err := m.variant(variantKey{mode: s.mode, insecure: !s.verify})
	if err != nil {
		return nil, err
	}

	return rt.RoundTrip(req)
}

func (m *modeTransport) variant(key variantKey) (http.RoundTripper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rt, ok := m.variants[key]; ok {
		return rt, nil
	}

	base, ok := m.base.(*http.Transport)
	if !ok {
		m.logger.Warn("transport settings need an *http.Transport, using base as-is",
			"mode", key.mode, "insecure", key.insecure)
		m.variants[key] = m.base
		return m.base, nil
	}

	t := base.Clone()
	if key.insecure {
		if t.TLSClientConfig == nil {
			t.TLSClientConfig = &tls.Config{}
		}
		t.TLSClientConfig.InsecureSkipVerify = true
	}

	var rt http.RoundTripper = t
	switch key.mode {
	case HTTP1Only:
		t.ForceAttemptHTTP2 = false
		t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
		var p http.Protocols
		p.SetHTTP1(true)
		t.Protocols = &p
		if t.TLSClientConfig != nil {
			t.TLSClientConfig.NextProtos = slices.DeleteFunc(slices.Clone(t.TLSClientConfig.NextProtos), func(proto string) bool {
				return proto == "h2"
			})
		}
	case HTTP2Attempt:
		t.ForceAttemptHTTP2 = true
		if _, err := http2.ConfigureTransports(t); err != nil {
			return nil, fmt.Errorf("configuring http2: %w", err)
		}
	case HTTP2Force:
		rt = newForcedH2(t)
	}

	m.variants[key] = rt

	return rt, nil
}

// forcedH2 speaks HTTP/2 on every connection: h2c with prior knowledge for
// http:// and HTTP/2 over TLS for https://.
type forcedH2 struct {
	plain  *http2.Transport
	secure *http2.Transport
}

func newForcedH2(t *http.Transport) *forcedH2 {
	dialer := &net.Dialer{}

	return &forcedH2{
		plain: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
		},
		secure: &http2.Transport{
			TLSClientConfig: t.TLSClientConfig,
		},
	}
}

func (f *forcedH2) RoundTrip(req *http.Request) (*http.Response, error) {
	switch req.URL.Scheme {
	case "http":
		return f.plain.RoundTrip(req)
	case "https":
		return f.secure.RoundTrip(req)
	default:
		return nil, errors.New("unsupported scheme for http2: " + req.URL.Scheme)
	}
}

type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}
