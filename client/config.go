package client

import (
	"net/http"
	"net/url"
	"slices"
	"time"
)

// AuthKind identifies the credential scheme of an [Auth].
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthBasic
	AuthBearer
)

// Auth holds the credentials applied to every dispatch of a request.
type Auth struct {
	Kind     AuthKind
	User     string
	Password string
	Token    string
}

// Options is the part of a request that middleware can observe and rewrite.
// Body and JSON are exclusive; the last setter wins. Multipart parts replace
// both at send time.
type Options struct {
	Method      string
	Header      http.Header
	Query       url.Values
	Body        []byte
	ContentType string
	JSON        any
	Auth        Auth
	Timeout     time.Duration
	HTTPVersion string
	Multipart   []Part
	Cookies     []*http.Cookie
}

// Clone returns a deep copy of o. JSON payloads are shared.
func (o Options) Clone() Options {
	cpy := o
	cpy.Header = o.Header.Clone()
	if cpy.Header == nil {
		cpy.Header = http.Header{}
	}
	cpy.Query = cloneValues(o.Query)
	cpy.Body = slices.Clone(o.Body)
	cpy.Multipart = slices.Clone(o.Multipart)
	cpy.Cookies = slices.Clone(o.Cookies)
	return cpy
}

// overlay merges Header and Query key-wise and overwrites every other field
// that is set on src.
func (o *Options) overlay(src Options) {
	if src.Method != "" {
		o.Method = src.Method
	}
	if o.Header == nil {
		o.Header = http.Header{}
	}
	for k, v := range src.Header {
		o.Header[http.CanonicalHeaderKey(k)] = slices.Clone(v)
	}
	if len(src.Query) > 0 {
		if o.Query == nil {
			o.Query = url.Values{}
		}
		for k, v := range src.Query {
			o.Query[k] = slices.Clone(v)
		}
	}
	switch {
	case src.JSON != nil:
		o.JSON, o.Body, o.ContentType = src.JSON, nil, ""
	case src.Body != nil:
		o.Body, o.ContentType, o.JSON = slices.Clone(src.Body), src.ContentType, nil
	}
	if src.Auth.Kind != AuthNone {
		o.Auth = src.Auth
	}
	if src.Timeout > 0 {
		o.Timeout = src.Timeout
	}
	if src.HTTPVersion != "" {
		o.HTTPVersion = src.HTTPVersion
	}
	if len(src.Multipart) > 0 {
		o.Multipart = slices.Clone(src.Multipart)
	}
	if len(src.Cookies) > 0 {
		o.Cookies = append(o.Cookies, src.Cookies...)
	}
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	cpy := make(url.Values, len(v))
	for k, vals := range v {
		cpy[k] = slices.Clone(vals)
	}
	return cpy
}

// DefaultRetryDelay is the pause between attempts used by [Request.RetryDefault].
const DefaultRetryDelay = 100 * time.Millisecond

// Retry bounds the synchronous attempt loop: MaxRetries+1 attempts with Delay
// between them.
type Retry struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultFollowRedirects is the conventional limit for [Request.WithFollowRedirects].
const DefaultFollowRedirects = 5

// Scope is overlaid onto a clone of a [Request] by [Request.WithScope].
// Zero fields leave the clone's value untouched; Header and Query merge.
type Scope struct {
	BaseURL string
	Options Options
	Retry   *Retry

	// FollowRedirects is the redirect limit; 0 disables following.
	FollowRedirects *int
	VerifyPeer      *bool
	HTTPMode        *HTTPMode
}

func mergeHeader(dst http.Header, src map[string]string) {
	for k, v := range src {
		dst.Set(k, v)
	}
}
