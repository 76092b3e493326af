package client

// Middleware rewrites the options of a single dispatch. It runs once per
// attempt and once per batch URL, in registration order, on a private copy.
// HTTPVersion and Multipart are read after the chain runs, so middleware may
// set them too. Reader parts added here are consumed by the first attempt.
type Middleware func(Options) Options

func applyMiddleware(opts Options, chain []Middleware) Options {
	for _, mw := range chain {
		opts = mw(opts)
	}
	return opts
}
