package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"gocloud.dev/blob"

	"github.com/adamwoolhether/httpchain/client/errs"
)

// sink is a download destination. Exactly one of commit or abort is
// called, and both release the underlying handle.
type sink interface {
	io.Writer
	name() string
	commit() error
	abort() error
}

type fileSink struct {
	file *os.File
	path string
}

func newFileSink(path string) (*fileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating directory for %s: %w", errs.ErrNetwork, path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", errs.ErrNetwork, path, err)
	}

	return &fileSink{file: file, path: path}, nil
}

func (s *fileSink) Write(p []byte) (int, error) { return s.file.Write(p) }

func (s *fileSink) name() string { return s.path }

func (s *fileSink) commit() error {
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("syncing file: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}
	return nil
}

func (s *fileSink) abort() error {
	var closeErr error
	if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		closeErr = fmt.Errorf("closing file: %w", err)
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Join(closeErr, fmt.Errorf("removing file: %w", err))
	}
	return closeErr
}

// blobSink writes through a blob.Writer whose context is cancelled to
// discard the object on abort.
type blobSink struct {
	w      *blob.Writer
	key    string
	cancel context.CancelFunc
}

func newBlobSink(ctx context.Context, bucket *blob.Bucket, key, contentType string) (*blobSink, error) {
	ctx, cancel := context.WithCancel(ctx)

	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: opening object %s: %w", errs.ErrNetwork, key, err)
	}

	return &blobSink{w: w, key: key, cancel: cancel}, nil
}

func (s *blobSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *blobSink) name() string { return s.key }

func (s *blobSink) commit() error {
	defer s.cancel()
	return s.w.Close()
}

func (s *blobSink) abort() error {
	s.cancel()
	_ = s.w.Close() // Close reports the cancellation; the object is not written.
	return nil
}

// ToBucket streams resp's body into the object key of bucket. The object
// only becomes visible once every check has passed. ToBucket does not
// close resp.Body.
func ToBucket(ctx context.Context, resp *http.Response, bucket *blob.Bucket, key string, logger *slog.Logger, optFns ...Option) error {
	if bucket == nil {
		return errors.New("bucket must not be nil")
	}
	if key == "" {
		return errors.New("key must not be empty")
	}

	opts, err := apply(optFns)
	if err != nil {
		return err
	}

	if err := preflight(resp); err != nil {
		return err
	}

	if opts.skipExisting {
		exists, err := bucket.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("%w: checking object %s: %w", errs.ErrNetwork, key, err)
		}
		if exists {
			logger.Info("skipping existing object", "key", key)
			return nil
		}
	}

	sink, err := newBlobSink(ctx, bucket, key, resp.Header.Get("Content-Type"))
	if err != nil {
		return err
	}

	return stream(ctx, resp, sink, opts, logger)
}
