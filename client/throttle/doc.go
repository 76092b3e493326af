// Package throttle provides an [http.RoundTripper] that spaces out
// dispatches using a token-bucket limiter from [golang.org/x/time/rate].
//
// Every attempt counts: a request retried three times takes four tokens.
//
//	rt, err := throttle.NewRoundTripper(
//		throttle.Config{RPS: 10, Burst: 5},
//		http.DefaultTransport,
//		throttle.WithLogger(func() *slog.Logger { return slog.Default() }),
//	)
//
// When tokens run out, the dispatch blocks until one is available or the
// request context ends.
package throttle
