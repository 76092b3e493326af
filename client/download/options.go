package download

import (
	"errors"
	"hash"
	"time"
)

// ProgressFunc receives the running byte count after every written chunk.
// total is -1 when the response declared no positive Content-Length.
type ProgressFunc func(downloaded, total int64)

// Option defines optional settings for downloading files.
type Option func(*options) error

type options struct {
	checksum     *digest
	progress     ProgressFunc
	progressLog  bool
	skipExisting bool
	idle         time.Duration
}

// WithChecksum enables checksum validation of the downloaded file.
// h is a hash.Hash instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		d, err := newDigest(h, expected)
		if err != nil {
			return err
		}
		opts.checksum = d
		return nil
	}
}

// WithProgress registers fn to be called after each non-empty chunk is written.
// A nil fn is ignored.
func WithProgress(fn ProgressFunc) Option {
	return func(opts *options) error {
		if fn != nil {
			opts.progress = fn
		}
		return nil
	}
}

// WithProgressLog enables periodic progress logging via the logger
// supplied to Handle.
func WithProgressLog() Option {
	return func(opts *options) error {
		opts.progressLog = true
		return nil
	}
}

// WithSkipExisting returns nil immediately when the destination already
// exists, avoiding a redundant download.
func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}

// WithIdle makes the body stream yield a timeout chunk whenever d elapses
// without data. Timeout chunks are not written and do not fail the download.
func WithIdle(d time.Duration) Option {
	return func(opts *options) error {
		if d < 0 {
			return errors.New("idle interval must not be negative")
		}
		opts.idle = d
		return nil
	}
}
