package download

import (
	"errors"
	"fmt"
)

// Sentinels carried by every failed download. Match them with errors.Is.
var (
	ErrContentLengthMismatch = errors.New("content length mismatch")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrUnexpectedHTML        = errors.New("unexpected html response")
	ErrDownloadCancelled     = errors.New("download cancelled")
)

// Error is a rejected download. Dest names the destination that was
// discarded; Detail says what was observed.
type Error struct {
	Dest   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Dest == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %v: %s", e.Dest, e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func lengthError(dest string, want, got int64) *Error {
	return &Error{
		Dest:   dest,
		Err:    ErrContentLengthMismatch,
		Detail: fmt.Sprintf("expected %d bytes, got %d", want, got),
	}
}
