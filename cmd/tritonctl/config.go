package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/ozontech/tritonclient/client"
)

type fileConfig struct {
	URI              string `toml:"uri" yaml:"uri"`
	TLS              bool   `toml:"tls" yaml:"tls"`
	Timeout          string `toml:"timeout" yaml:"timeout"`
	ConnectTimeout   string `toml:"connect_timeout" yaml:"connect_timeout"`
	KeepAlive        bool   `toml:"keep_alive" yaml:"keep_alive"`
	KeepAliveTimeout string `toml:"keep_alive_timeout" yaml:"keep_alive_timeout"`
	KeepAlivePeriod  string `toml:"keep_alive_interval" yaml:"keep_alive_interval"`
	Compression      string `toml:"compression" yaml:"compression"`
}

// loadConfig overlays the keys present in a TOML or YAML file onto the
// defaults.
func loadConfig(path string) (client.Config, error) {
	var (
		raw     fileConfig
		defined func(key string) bool
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return client.Config{}, fmt.Errorf("load config: %w", err)
		}
		defined = func(key string) bool { return meta.IsDefined(key) }
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return client.Config{}, fmt.Errorf("load config: %w", err)
		}
		var keys map[string]yaml.Node
		if err := yaml.Unmarshal(b, &keys); err != nil {
			return client.Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return client.Config{}, fmt.Errorf("load config: %w", err)
		}
		defined = func(key string) bool {
			_, ok := keys[key]
			return ok
		}
	default:
		return client.Config{}, fmt.Errorf("load config: unsupported file type %q", ext)
	}
	return raw.apply(client.DefaultConfig(), defined)
}

func (raw fileConfig) apply(cfg client.Config, defined func(string) bool) (client.Config, error) {
	if defined("uri") {
		cfg.URI = strings.TrimSpace(raw.URI)
	}
	if defined("tls") {
		cfg.TLS = raw.TLS
	}
	if defined("keep_alive") {
		cfg.KeepAlive = raw.KeepAlive
	}
	if defined("compression") {
		cfg.Compression = strings.TrimSpace(raw.Compression)
	}

	var err error
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"timeout", raw.Timeout, &cfg.Timeout},
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"keep_alive_timeout", raw.KeepAliveTimeout, &cfg.KeepAliveTimeout},
		{"keep_alive_interval", raw.KeepAlivePeriod, &cfg.KeepAliveInterval},
	}
	for _, d := range durations {
		if !defined(d.key) {
			continue
		}
		v, perr := time.ParseDuration(strings.TrimSpace(d.raw))
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("parse %s: %w", d.key, perr))
			continue
		}
		*d.dst = v
	}
	if err != nil {
		return client.Config{}, err
	}
	return cfg, nil
}
