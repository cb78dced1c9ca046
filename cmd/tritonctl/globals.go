package main

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ozontech/tritonclient/client"
	"github.com/ozontech/tritonclient/pb"
)

// Globals are the connection flags shared by every command. Flags that are
// set win over the config file, which wins over the defaults.
type Globals struct {
	Config           string        `group:"connection" type:"existingfile" placeholder:"triton.toml" help:"TOML or YAML connection config."`
	URI              string        `group:"connection" placeholder:"localhost:8001" help:"Server address. An http:// or https:// scheme selects the transport."`
	TLS              bool          `group:"connection" help:"Use TLS for addresses without a scheme."`
	Timeout          time.Duration `group:"connection" help:"Request timeout (30s, 2m...)."`
	ConnectTimeout   time.Duration `group:"connection" help:"Connect timeout."`
	KeepAliveTimeout time.Duration `group:"connection" help:"Keep-alive ping ack timeout."`
	KeepAlivePeriod  time.Duration `group:"connection" help:"Keep-alive ping interval, unset sends no pings."`
	NoKeepAlive      bool          `group:"connection" help:"Don't ping idle connections."`
	Compression      string        `group:"connection" placeholder:"gzip" help:"Call compression, gzip or zstd."`

	Verbose bool `short:"v" help:"Verbose output."`
}

func (g *Globals) config() (client.Config, error) {
	conf := client.DefaultConfig()
	if g.Config != "" {
		var err error
		if conf, err = loadConfig(g.Config); err != nil {
			return client.Config{}, err
		}
	}

	if g.URI != "" {
		conf.URI = g.URI
	}
	if g.TLS {
		conf.TLS = true
	}
	if g.Timeout != 0 {
		conf.Timeout = g.Timeout
	}
	if g.ConnectTimeout != 0 {
		conf.ConnectTimeout = g.ConnectTimeout
	}
	if g.KeepAliveTimeout != 0 {
		conf.KeepAliveTimeout = g.KeepAliveTimeout
	}
	if g.KeepAlivePeriod != 0 {
		conf.KeepAliveInterval = g.KeepAlivePeriod
	}
	if g.NoKeepAlive {
		conf.KeepAlive = false
	}
	if g.Compression != "" {
		conf.Compression = g.Compression
	}
	return conf, nil
}

func (g *Globals) logger() *zap.Logger {
	if g.Verbose {
		return zap.Must(zap.NewDevelopment())
	}
	return zap.NewNop()
}

func (g *Globals) client(opts ...client.Option) (*client.Client, error) {
	conf, err := g.config()
	if err != nil {
		return nil, err
	}
	c, err := client.New(conf, append([]client.Option{client.WithLogger(g.logger())}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("client setup: %w", err)
	}
	return c, nil
}

// printMessage writes m as indented protojson.
func printMessage(w io.Writer, name string, m pb.Message) error {
	schema, err := pb.DefaultSchema()
	if err != nil {
		return err
	}
	wire, err := pb.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	js, err := schema.JSON(name, wire)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(js))
	return err
}
