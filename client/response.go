package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/adamwoolhether/httpchain/client/errs"
)

// Response is a completed outcome: a single exchange or the ordered bodies
// of a batch. Every method is safe on a nil *Response and then reports
// [ErrNoResponse].
type Response struct {
	status int
	proto  string
	header http.Header
	body   []byte

	batch bool
	parts [][]byte
}

func newResponse(resp *http.Response, body []byte) *Response {
	return &Response{
		status: resp.StatusCode,
		proto:  resp.Proto,
		header: resp.Header.Clone(),
		body:   body,
	}
}

func newBatchResponse(parts [][]byte) *Response {
	return &Response{batch: true, parts: parts}
}

func (r *Response) single() error {
	if r == nil {
		return errs.ErrNoResponse
	}
	if r.batch {
		return errs.ErrBatchOutcome
	}
	return nil
}

// Status returns the status code.
func (r *Response) Status() (int, error) {
	if err := r.single(); err != nil {
		return 0, err
	}
	return r.status, nil
}

// Proto returns the protocol the response was received over, e.g. "HTTP/2.0".
func (r *Response) Proto() (string, error) {
	if err := r.single(); err != nil {
		return "", err
	}
	return r.proto, nil
}

func (r *Response) within(lo, hi int) (bool, error) {
	code, err := r.Status()
	if err != nil {
		return false, err
	}
	return code >= lo && code < hi, nil
}

// Successful reports a 2xx status.
func (r *Response) Successful() (bool, error) { return r.within(200, 300) }

// Redirect reports a 3xx status.
func (r *Response) Redirect() (bool, error) { return r.within(300, 400) }

// ClientError reports a 4xx status.
func (r *Response) ClientError() (bool, error) { return r.within(400, 500) }

// Failed reports a status of 400 or above.
func (r *Response) Failed() (bool, error) { return r.within(400, 1000) }

// Header returns the first value of the named header. Names are matched
// case-insensitively.
func (r *Response) Header(name string) (string, error) {
	if err := r.single(); err != nil {
		return "", err
	}

	vals := r.header.Values(name)
	if len(vals) == 0 {
		return "", errs.NotFound("header", name)
	}

	return vals[0], nil
}

// Headers returns a copy of all response headers.
func (r *Response) Headers() (http.Header, error) {
	if err := r.single(); err != nil {
		return nil, err
	}
	return r.header.Clone(), nil
}

// Body returns a copy of the raw body.
func (r *Response) Body() ([]byte, error) {
	if err := r.single(); err != nil {
		return nil, err
	}
	return bytes.Clone(r.body), nil
}

// Text returns the body as a string.
func (r *Response) Text() (string, error) {
	if err := r.single(); err != nil {
		return "", err
	}
	return string(r.body), nil
}

// Parts returns the ordered bodies of a batch outcome.
func (r *Response) Parts() ([][]byte, error) {
	if r == nil {
		return nil, errs.ErrNoResponse
	}
	if !r.batch {
		return nil, fmt.Errorf("parts: not a batch outcome")
	}

	parts := make([][]byte, len(r.parts))
	for i, p := range r.parts {
		parts[i] = bytes.Clone(p)
	}
	return parts, nil
}

// JSON decodes the body into dest. For a batch outcome each body is decoded
// independently and dest receives the ordered sequence, so dest should be a
// pointer to a slice.
func (r *Response) JSON(dest any) error {
	if r == nil {
		return errs.ErrNoResponse
	}

	if !r.batch {
		return decode(r.body, dest)
	}

	raw := make([]json.RawMessage, len(r.parts))
	for i, p := range r.parts {
		if !json.Valid(p) {
			return fmt.Errorf("batch part[%d]: %w", i, errs.ErrDecode)
		}
		raw[i] = p
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return errs.Decode(err)
	}

	return decode(b, dest)
}

// Collect decodes the body and wraps it, or its top-level key when key is
// not empty, in a [Collection]. A JSON array becomes the collection's
// elements; any other value becomes a single element.
func (r *Response) Collect(key string) (Collection, error) {
	var v any
	if err := r.JSON(&v); err != nil {
		return nil, err
	}

	if key != "" {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, errs.NotFound("key", key)
		}
		if v, ok = obj[key]; !ok {
			return nil, errs.NotFound("key", key)
		}
	}

	if list, ok := v.([]any); ok {
		return Collection(list), nil
	}

	return Collection{v}, nil
}

func decode(b []byte, dest any) error {
	if err := json.Unmarshal(b, dest); err != nil {
		return errs.Decode(err)
	}

	return nil
}

// Collection is an ordered view over decoded JSON values.
type Collection []any

// Len returns the number of elements.
func (c Collection) Len() int { return len(c) }

// First returns the first element, or nil when empty.
func (c Collection) First() any {
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

// Last returns the last element, or nil when empty.
func (c Collection) Last() any {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// Pluck returns the value of key from every object element that has it.
func (c Collection) Pluck(key string) Collection {
	var out Collection
	for _, v := range c {
		if obj, ok := v.(map[string]any); ok {
			if val, ok := obj[key]; ok {
				out = append(out, val)
			}
		}
	}
	return out
}

// Filter returns the elements keep accepts, in order.
func (c Collection) Filter(keep func(any) bool) Collection {
	return slices.DeleteFunc(slices.Clone(c), func(v any) bool { return !keep(v) })
}
