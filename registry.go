package httpchain

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync"

	"github.com/adamwoolhether/httpchain/client"
	"github.com/adamwoolhether/httpchain/client/errs"
	"github.com/adamwoolhether/httpchain/config"
)

// ErrDuplicateClient is returned when a name is registered twice.
var ErrDuplicateClient = errors.New("client already registered")

type entry struct {
	client *client.Client
	scope  client.Scope
}

// Registry maps names to clients and the scope their requests start from.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds c under name. Requests obtained through [Registry.Request]
// start from scope.
func (r *Registry) Register(name string, c *client.Client, scope client.Scope) error {
	if name == "" {
		return errors.New("name must not be empty")
	}
	if c == nil {
		return errors.New("client must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateClient, name)
	}

	r.entries[name] = entry{client: c, scope: scope}
	return nil
}

// Client returns the client registered under name.
func (r *Registry) Client(name string) (*client.Client, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.client, nil
}

// Request returns a fresh request from the named client with its scope applied.
func (r *Registry) Request(name string) (*client.Request, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.client.New().WithScope(e.scope), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.entries))
}

func (r *Registry) lookup(name string) (entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return entry{}, errs.NotFound("client", name)
	}
	return e, nil
}

// LoadRegistry builds a registry with one client per profile in the YAML
// file at path. opts apply to every client before the profile's own settings.
func LoadRegistry(path string, opts ...client.Option) (*Registry, error) {
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	return FromConfig(f, opts...)
}

// FromConfig builds a registry from already loaded profiles.
func FromConfig(f config.File, opts ...client.Option) (*Registry, error) {
	reg := NewRegistry()

	for _, name := range f.Names() {
		p := f.Clients[name]

		c, err := client.Build(append(slices.Clone(opts), clientOptions(p)...)...)
		if err != nil {
			return nil, fmt.Errorf("building client %s: %w", name, err)
		}

		if err := reg.Register(name, c, scope(p)); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func clientOptions(p config.Profile) []client.Option {
	var opts []client.Option

	if p.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(p.UserAgent))
	}
	if p.Throttle != nil {
		opts = append(opts, client.WithThrottle(p.Throttle.RPS, p.Throttle.Burst))
	}
	if p.RequestID {
		opts = append(opts, client.WithRequestID())
	}
	if p.MaxInFlight > 0 {
		opts = append(opts, client.WithMaxInFlight(p.MaxInFlight))
	}

	return opts
}

func scope(p config.Profile) client.Scope {
	s := client.Scope{
		BaseURL:         p.BaseURL,
		FollowRedirects: p.FollowRedirects,
		VerifyPeer:      p.VerifyPeer,
		Options: client.Options{
			Timeout:     p.Timeout.Std(),
			HTTPVersion: p.HTTPVersion,
		},
	}

	if len(p.Headers) > 0 {
		s.Options.Header = make(http.Header, len(p.Headers))
		for k, v := range p.Headers {
			s.Options.Header.Set(k, v)
		}
	}

	if p.Retry.Attempts > 0 || p.Retry.Delay > 0 {
		s.Retry = &client.Retry{MaxRetries: p.Retry.Attempts, Delay: p.Retry.Delay.Std()}
	}

	var mode client.HTTPMode
	switch p.HTTP2 {
	case "off":
		mode = client.HTTP1Only
	case "attempt":
		mode = client.HTTP2Attempt
	case "force":
		mode = client.HTTP2Force
	}
	if p.HTTP2 != "" {
		s.HTTPMode = &mode
	}

	return s
}
