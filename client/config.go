package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"google.golang.org/grpc/encoding/gzip"

	"github.com/ozontech/tritonclient/client/channel"
	"github.com/ozontech/tritonclient/client/zstd"
	"github.com/ozontech/tritonclient/consts"
)

var ErrInvalidConfig = errors.New("client: invalid config")

const (
	CompressionNone = ""
	CompressionGzip = gzip.Name
	CompressionZstd = zstd.Name
)

// Config describes how to reach one inference server. It is a value, a
// client copies it on construction.
type Config struct {
	URI               string
	TLS               bool
	Timeout           time.Duration
	ConnectTimeout    time.Duration
	KeepAlive         bool
	KeepAliveTimeout  time.Duration
	// KeepAliveInterval is the ping period, zero sends no pings.
	KeepAliveInterval time.Duration
	Compression       string

	TLSConfig *tls.Config
}

func DefaultConfig() Config {
	return Config{
		URI:              consts.DefaultURI,
		Timeout:          consts.DefaultTimeout,
		ConnectTimeout:   consts.DefaultConnectTimeout,
		KeepAlive:        consts.DefaultKeepAlive,
		KeepAliveTimeout: consts.DefaultKeepAliveTimeout,
	}
}

type ConfigOption func(*Config)

func NewConfig(uri string, opts ...ConfigOption) Config {
	conf := DefaultConfig()
	conf.URI = uri
	for _, o := range opts {
		o(&conf)
	}
	return conf
}

func WithTLS(tlsConf *tls.Config) ConfigOption {
	return func(c *Config) {
		c.TLS = true
		c.TLSConfig = tlsConf
	}
}

func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

func WithConnectTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.ConnectTimeout = d
	}
}

// WithKeepAlive sets whether pings may be sent without active calls and how
// long to wait for a ping ack. Pings are only sent with WithKeepAliveInterval.
func WithKeepAlive(enabled bool, timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.KeepAlive = enabled
		c.KeepAliveTimeout = timeout
	}
}

func WithKeepAliveInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.KeepAliveInterval = d
	}
}

func WithCompression(name string) ConfigOption {
	return func(c *Config) {
		c.Compression = name
	}
}

// Validate reports every problem of c at once.
func (c Config) Validate() error {
	var err error
	if _, perr := channel.ParseEndpoint(c.URI, c.TLS); perr != nil {
		err = multierr.Append(err, perr)
	}
	if c.Timeout < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: negative timeout %s", ErrInvalidConfig, c.Timeout))
	}
	if c.ConnectTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: negative connect timeout %s", ErrInvalidConfig, c.ConnectTimeout))
	}
	if c.KeepAliveTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: negative keep-alive timeout %s", ErrInvalidConfig, c.KeepAliveTimeout))
	}
	if c.KeepAliveInterval < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: negative keep-alive interval %s", ErrInvalidConfig, c.KeepAliveInterval))
	}
	switch c.Compression {
	case CompressionNone, CompressionGzip, CompressionZstd:
	default:
		err = multierr.Append(err, fmt.Errorf("%w: unknown compression %q", ErrInvalidConfig, c.Compression))
	}
	return err
}

func (c Config) channelConfig() channel.Config {
	return channel.Config{
		URI:               c.URI,
		TLS:               c.TLS,
		TLSConfig:         c.TLSConfig,
		Timeout:           c.Timeout,
		ConnectTimeout:    c.ConnectTimeout,
		KeepAlive:         c.KeepAlive,
		KeepAliveTimeout:  c.KeepAliveTimeout,
		KeepAliveInterval: c.KeepAliveInterval,
		Compression:       c.Compression,
	}
}
