// Package errs defines the failure taxonomy shared by the client packages.
//
// Callers match failures with [errors.Is] against the sentinels and use
// [errors.As] to reach the typed errors for detail.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MaxErrBodySize caps the amount of response body kept on a [StatusError].
const MaxErrBodySize = 4 << 10 // 4KB

var (
	// ErrNoResponse is returned when a response view is read before a terminal verb ran.
	ErrNoResponse = errors.New("no response available")
	// ErrTransport marks a low-level connection, DNS or TLS failure.
	ErrTransport = errors.New("transport failure")
	// ErrNetwork is returned once a request could not be completed, after
	// retries are exhausted or when a download cannot be written.
	ErrNetwork = errors.New("network failure")
	// ErrClientError marks a 4xx status.
	ErrClientError = errors.New("client error")
	// ErrServerError marks a 5xx status.
	ErrServerError = errors.New("server error")
	// ErrAuthFailure is joined with [ErrClientError] for 401 Unauthorized and 403 Forbidden.
	ErrAuthFailure = errors.New("auth failure")
	// ErrDecode marks a malformed JSON body.
	ErrDecode = errors.New("decode failure")
	// ErrNotFound marks a missing header or key.
	ErrNotFound = errors.New("not found")
	// ErrBatchOutcome is returned by single-response views invoked on a batch outcome.
	ErrBatchOutcome = errors.New("not available on a batch outcome")
)

// StatusError carries the status code and a capped copy of the body
// of a response classified as a client or server error.
type StatusError struct {
	StatusCode int
	Body       string
	Err        error
}

// NewStatusError classifies code and builds the matching [StatusError].
func NewStatusError(code int, body []byte) *StatusError {
	if len(body) > MaxErrBodySize {
		body = body[:MaxErrBodySize]
	}

	var err error
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		err = fmt.Errorf("%w: %w", ErrAuthFailure, ErrClientError)
	case code >= 500:
		err = ErrServerError
	default:
		err = ErrClientError
	}

	return &StatusError{
		StatusCode: code,
		Body:       string(body),
		Err:        err,
	}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// NetworkError is the terminal failure of a synchronous send. Err is the
// cause recorded on the final attempt.
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%v after %d attempt(s): %v", ErrNetwork, e.Attempts, e.Err)
}

// Unwrap exposes both [ErrNetwork] and the underlying cause.
func (e *NetworkError) Unwrap() []error {
	return []error{ErrNetwork, e.Err}
}

// NotFound reports a missing item of the given kind (e.g. "header", "key").
func NotFound(kind, name string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
}

// Decode wraps a JSON decoding failure.
func Decode(err error) error {
	return fmt.Errorf("%w: %w", ErrDecode, err)
}

// FieldError is used to indicate an error with a specific configuration field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// NewFieldsError creates a fields error.
func NewFieldsError(field string, err error) error {
	return FieldErrors{
		{
			Field: field,
			Err:   err.Error(),
		},
	}
}

// Error implements the error interface, returning a human-readable
// summary of all field errors.
func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

// JSON renders the field errors as a JSON array.
func (fe FieldErrors) JSON() string {
	d, err := json.Marshal(fe)
	if err != nil {
		return err.Error()
	}
	return string(d)
}

// Fields returns the fields that failed validation
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string)
	for _, fld := range fe {
		m[fld.Field] = fld.Err
	}
	return m
}

// IsFieldErrors checks if an error of type FieldErrors exists.
func IsFieldErrors(err error) bool {
	var fe FieldErrors
	return errors.As(err, &fe)
}

// GetFieldErrors returns the FieldErrors in err's chain, if any.
func GetFieldErrors(err error) FieldErrors {
	var fe FieldErrors
	if !errors.As(err, &fe) {
		return nil
	}
	return fe
}
