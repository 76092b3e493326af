// Package httpchain exposes the client factory and an explicit registry of
// named clients that call sites receive by reference or through a context.
package httpchain

import (
	"context"

	"github.com/adamwoolhether/httpchain/client"
)

// NewClient instantiates a new *client.Client with the provided options.
// If not specified, http.DefaultTransport and slog.Default are used.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}

type registryKey struct{}

// WithRegistry returns a copy of ctx carrying reg.
func WithRegistry(ctx context.Context, reg *Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, reg)
}

// FromContext returns the registry stored by [WithRegistry].
func FromContext(ctx context.Context) (*Registry, bool) {
	reg, ok := ctx.Value(registryKey{}).(*Registry)
	return reg, ok && reg != nil
}
