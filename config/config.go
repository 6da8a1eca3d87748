// Package config loads client settings from a YAML file.
package config

import (
	"bytes"
	"io"
	"mycurl/application/http"
	"mycurl/application/http/actor/client"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

type Config struct {
	UserAgent string   `yaml:"user_agent"`
	Port      uint16   `yaml:"port"`
	Timeouts  Timeouts `yaml:"timeouts"`
	Limits    Limits   `yaml:"limits"`
	Body      Body     `yaml:"body"`
	Loop      Loop     `yaml:"loop"`
}

type Timeouts struct {
	Resolve Duration `yaml:"resolve"`
	Connect Duration `yaml:"connect"`
	Write   Duration `yaml:"write"`
	Read    Duration `yaml:"read"`
}

type Limits struct {
	MaxHeaderBytes uint `yaml:"max_header_bytes"`
	MaxBodyBytes   uint `yaml:"max_body_bytes"`
}

const (
	ChunkedDecode     = "decode"
	ChunkedSingleRead = "single-read"
)

type Body struct {
	Chunked     string `yaml:"chunked"`      // ChunkedDecode or ChunkedSingleRead
	PostTrailer string `yaml:"post_trailer"` // legacy, crlf or none
}

type Loop struct {
	MaxConcurrent int64   `yaml:"max_concurrent"`
	StartRate     float64 `yaml:"start_rate"` // exchanges started per second
}

// Duration is a [time.Duration] written as "5s", "300ms" and so on.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "line %d", node.Line)
	}

	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

// Default returns settings equal to [client.DefaultOptions].
func Default() Config {
	opts := client.DefaultOptions
	return Config{
		UserAgent: http.DefaultUserAgent,
		Port:      client.DefaultPort,
		Timeouts: Timeouts{
			Resolve: Duration(opts.Timeout.Resolve),
			Connect: Duration(opts.Timeout.Connect),
			Write:   Duration(opts.Timeout.Write),
			Read:    Duration(opts.Timeout.Read),
		},
		Limits: Limits{
			MaxHeaderBytes: opts.Receive.MaxHeaderBytes,
			MaxBodyBytes:   opts.Receive.MaxBodyBytes,
		},
		Body: Body{
			Chunked:     ChunkedDecode,
			PostTrailer: opts.Send.Encode.PostTrailer.String(),
		},
	}
}

// Load reads the file at path over [Default].
// Empty path gives the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "opening config")
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, errors.Wrapf(err, "loading %s", path)
	}

	return cfg, nil
}

// Decode reads YAML from r over [Default]. Unknown keys are rejected.
func Decode(r io.Reader) (Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}

	cfg := Default()
	if len(bytes.TrimSpace(b)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

var ErrInvalid = errors.New("invalid config")

func invalid(key, format string, args ...any) error {
	return errors.Wrapf(ErrInvalid, "%s: "+format, append([]any{key}, args...)...)
}

func (c Config) Validate() error {
	if c.Port == 0 {
		return invalid("port", "must not be zero")
	}

	durations := []struct {
		key string
		d   Duration
	}{
		{"timeouts.resolve", c.Timeouts.Resolve},
		{"timeouts.connect", c.Timeouts.Connect},
		{"timeouts.write", c.Timeouts.Write},
		{"timeouts.read", c.Timeouts.Read},
	}
	for _, d := range durations {
		if d.d < 0 {
			return invalid(d.key, "must not be negative, got %s", time.Duration(d.d))
		}
	}

	switch c.Body.Chunked {
	case ChunkedDecode, ChunkedSingleRead:
	default:
		return invalid("body.chunked", "unknown mode %q", c.Body.Chunked)
	}

	if _, err := http.ParseTrailer(c.Body.PostTrailer); err != nil {
		return invalid("body.post_trailer", "%s", err)
	}

	if c.Loop.MaxConcurrent < 0 {
		return invalid("loop.max_concurrent", "must not be negative")
	}
	if c.Loop.StartRate < 0 {
		return invalid("loop.start_rate", "must not be negative")
	}

	return nil
}

// ExchangeOptions converts c into options of a client.
// c must be valid.
func (c Config) ExchangeOptions() client.Options {
	trailer, _ := http.ParseTrailer(c.Body.PostTrailer)

	return client.Options{
		UserAgent: c.UserAgent,
		Send: client.SendOptions{
			Encode: http.EncodeOptions{PostTrailer: trailer},
		},
		Receive: client.ReceiveOptions{
			MaxHeaderBytes:  c.Limits.MaxHeaderBytes,
			MaxBodyBytes:    c.Limits.MaxBodyBytes,
			SingleChunkRead: c.Body.Chunked == ChunkedSingleRead,
		},
		Timeout: client.TimeoutOptions{
			Resolve: time.Duration(c.Timeouts.Resolve),
			Connect: time.Duration(c.Timeouts.Connect),
			Write:   time.Duration(c.Timeouts.Write),
			Read:    time.Duration(c.Timeouts.Read),
		},
		Loop: client.LoopOptions{
			MaxConcurrent: c.Loop.MaxConcurrent,
			StartRate:     rate.Limit(c.Loop.StartRate),
		},
	}
}
