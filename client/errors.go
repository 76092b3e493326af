package client

import (
	"errors"

	"github.com/adamwoolhether/httpchain/client/download"
	"github.com/adamwoolhether/httpchain/client/errs"
)

// ErrMissingURL is returned by terminal verbs invoked before [Request.To]
// or [Request.ToBatch].
var ErrMissingURL = errors.New("request has no url")

// Failure taxonomy, re-exported from [errs] and [download] so callers can
// match on a single package.
var (
	ErrNoResponse   = errs.ErrNoResponse
	ErrTransport    = errs.ErrTransport
	ErrNetwork      = errs.ErrNetwork
	ErrClientError  = errs.ErrClientError
	ErrServerError  = errs.ErrServerError
	ErrAuthFailure  = errs.ErrAuthFailure
	ErrDecode       = errs.ErrDecode
	ErrNotFound     = errs.ErrNotFound
	ErrBatchOutcome = errs.ErrBatchOutcome

	ErrContentLengthMismatch = download.ErrContentLengthMismatch
	ErrChecksumMismatch      = download.ErrChecksumMismatch
	ErrUnexpectedHTML        = download.ErrUnexpectedHTML
	ErrDownloadCancelled     = download.ErrDownloadCancelled
)

type (
	// StatusError carries a 4xx or 5xx status and a capped body.
	StatusError = errs.StatusError
	// NetworkError reports a request that failed after every attempt.
	NetworkError = errs.NetworkError
	// DownloadError wraps a download sentinel with detail.
	DownloadError = download.Error
)
