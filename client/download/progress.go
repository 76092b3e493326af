package download

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// progressWriter counts written bytes, reports them to an optional
// callback on every write and, if logging is enabled, logs at most
// once per second.
type progressWriter struct {
	w           io.Writer
	fn          ProgressFunc
	logger      *slog.Logger
	transferred int64
	total       int64
	startTime   time.Time
	lastLog     time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.transferred += int64(n)

	if n > 0 && pw.fn != nil {
		pw.fn(pw.transferred, pw.total)
	}

	if pw.logger != nil {
		if time.Since(pw.lastLog) >= time.Second {
			pw.lastLog = time.Now()
			pw.log("downloading")
		}

		if pw.total > 0 && pw.transferred == pw.total {
			pw.log("download complete")
		}
	}

	return n, err
}

func (pw *progressWriter) log(msg string) {
	elapsed := time.Since(pw.startTime)
	attrs := []any{
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", pw.transferred,
		"total", pw.total,
		"mbps", fmt.Sprintf("%.2f", float64(pw.transferred)/elapsed.Seconds()/(1024*1024)),
	}
	if pw.total > 0 {
		attrs = append(attrs, "progress", fmt.Sprintf("%.1f%%", float64(pw.transferred)/float64(pw.total)*100))
	}
	pw.logger.Info(msg, attrs...)
}
