package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"time"

	"github.com/adamwoolhether/httpchain/client/errs"
)

// Handle streams resp's body into destPath. Missing parent directories are
// created. The destination is closed on every path and removed on failure.
// Handle does not close resp.Body.
func Handle(ctx context.Context, resp *http.Response, destPath string, logger *slog.Logger, optFns ...Option) error {
	if destPath == "" {
		return errors.New("destPath must not be empty")
	}

	opts, err := apply(optFns)
	if err != nil {
		return err
	}

	if err := preflight(resp); err != nil {
		return err
	}

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.Info("skipping existing file", "path", destPath)
			return nil
		}
	}

	sink, err := newFileSink(destPath)
	if err != nil {
		return err
	}

	return stream(ctx, resp, sink, opts, logger)
}

func apply(optFns []Option) (options, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return options{}, fmt.Errorf("applying option: %w", err)
		}
	}
	return opts, nil
}

// preflight rejects responses that must not reach the destination.
func preflight(resp *http.Response) error {
	if resp == nil {
		return errs.ErrNoResponse
	}

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}

	if resp.StatusCode == http.StatusOK {
		mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		if mediaType == "text/html" {
			return &Error{
				Err:    fmt.Errorf("%w: %w", errs.ErrNetwork, ErrUnexpectedHTML),
				Detail: fmt.Sprintf("got %s from %s, possibly an unfollowed redirect", mediaType, requestURL(resp)),
			}
		}
	}

	return nil
}

func statusError(resp *http.Response) error {
	b, err := io.ReadAll(io.LimitReader(resp.Body, errs.MaxErrBodySize))
	if err != nil {
		b = []byte("unable to read body")
	}
	return errs.NewStatusError(resp.StatusCode, b)
}

func requestURL(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return "unknown url"
	}
	return resp.Request.URL.Redacted()
}

// declaredTotal is the positive Content-Length, or -1.
func declaredTotal(resp *http.Response) int64 {
	if resp.ContentLength > 0 {
		return resp.ContentLength
	}
	return -1
}

// stream copies the body chunk by chunk into sink. sink is committed only
// when every check passes and aborted otherwise.
func stream(ctx context.Context, resp *http.Response, sink sink, opts options, logger *slog.Logger) error {
	committed := false
	defer func() {
		if committed {
			return
		}
		if abortErr := sink.abort(); abortErr != nil {
			logger.Error("failed to discard partial download", "dest", sink.name(), "error", abortErr)
		}
	}()

	total := declaredTotal(resp)

	var writer io.Writer = sink
	if opts.checksum != nil {
		writer = io.MultiWriter(writer, opts.checksum)
	}

	pw := &progressWriter{
		w:         writer,
		fn:        opts.progress,
		total:     total,
		startTime: time.Now(),
	}
	if opts.progressLog {
		pw.logger = logger
	}

	for chunk, readErr := range Chunks(ctx, resp.Body, opts.idle) {
		if readErr != nil {
			if errors.Is(readErr, context.Canceled) || errors.Is(readErr, context.DeadlineExceeded) {
				return fmt.Errorf("%w: %w", ErrDownloadCancelled, readErr)
			}
			if errors.Is(readErr, io.ErrUnexpectedEOF) && total > 0 {
				break // Reported as a length mismatch below.
			}
			return fmt.Errorf("%w: reading body: %w", errs.ErrNetwork, readErr)
		}

		if chunk.Timeout {
			continue
		}

		if chunk.First && resp.StatusCode >= 400 {
			return statusError(resp)
		}

		if len(chunk.Data) == 0 {
			continue
		}

		if _, err := pw.Write(chunk.Data); err != nil {
			return fmt.Errorf("%w: writing %s: %w", errs.ErrNetwork, sink.name(), err)
		}
	}

	if total > 0 && pw.transferred != total {
		lerr := lengthError(sink.name(), total, pw.transferred)
		lerr.Err = fmt.Errorf("%w: %w", errs.ErrNetwork, lerr.Err)
		return lerr
	}

	if err := opts.checksum.check(sink.name()); err != nil {
		return err
	}

	if err := sink.commit(); err != nil {
		return fmt.Errorf("%w: finalizing %s: %w", errs.ErrNetwork, sink.name(), err)
	}
	committed = true

	return nil
}
