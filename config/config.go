package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/httpchain/client/throttle"
	"github.com/adamwoolhether/httpchain/internal/validate"
)

// File is the top level of a profile file.
type File struct {
	Clients map[string]Profile `yaml:"clients" validate:"required,min=1,dive"`
}

// Profile configures one named client and the scope its requests start from.
type Profile struct {
	BaseURL     string            `yaml:"base_url" validate:"omitempty,url"`
	Timeout     Duration          `yaml:"timeout" validate:"min=0"`
	Headers     map[string]string `yaml:"headers"`
	Retry       Retry             `yaml:"retry"`
	UserAgent   string            `yaml:"user_agent"`
	RequestID   bool              `yaml:"request_id"`
	MaxInFlight int               `yaml:"max_in_flight" validate:"min=0"`

	// FollowRedirects is the redirect limit; 0 disables following. Unset
	// keeps the client default.
	FollowRedirects *int `yaml:"follow_redirects" validate:"omitempty,min=0"`
	VerifyPeer      *bool `yaml:"verify_peer"`

	// HTTP2 is one of off, attempt or force.
	HTTP2       string `yaml:"http2" validate:"omitempty,oneof=off attempt force"`
	HTTPVersion string `yaml:"http_version" validate:"omitempty,oneof=1.1 2.0"`

	Throttle *throttle.Config `yaml:"throttle"`
}

// Retry configures the synchronous attempt loop. Attempts counts the
// retries made after the first dispatch.
type Retry struct {
	Attempts int      `yaml:"attempts" validate:"min=0"`
	Delay    Duration `yaml:"delay" validate:"min=0"`
}

// Duration decodes from a time.ParseDuration string such as "250ms".
type Duration time.Duration

// UnmarshalYAML implements [yaml.Unmarshaler].
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}

	*d = Duration(parsed)
	return nil
}

// Std returns d as a [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads and validates the profile file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config file: %w", err)
	}

	return Parse(bytes.NewReader(data))
}

// Parse decodes and validates a profile file. Unknown keys are rejected.
func Parse(r io.Reader) (File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parse config file: %w", err)
	}

	if err := validate.Struct(f); err != nil {
		return File{}, fmt.Errorf("validate config file: %w", err)
	}

	return f, nil
}

// Names returns the profile names in sorted order.
func (f File) Names() []string {
	return slices.Sorted(maps.Keys(f.Clients))
}
