package channel

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var ErrInvalidEndpoint = errors.New("channel: invalid endpoint")

// Endpoint is the resolved address of the inference server.
type Endpoint struct {
	Host string
	Port string
	TLS  bool
}

// ParseEndpoint reads "[scheme://]host[:port]". An explicit http or https
// scheme decides TLS, otherwise defaultTLS applies. Other schemes are
// rejected.
func ParseEndpoint(raw string, defaultTLS bool) (Endpoint, error) {
	if raw == "" {
		return Endpoint{}, fmt.Errorf("%w: empty uri", ErrInvalidEndpoint)
	}

	tls := defaultTLS
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	} else {
		scheme := strings.ToLower(raw[:strings.Index(raw, "://")])
		switch scheme {
		case "https":
			tls = true
		case "http":
			tls = false
		default:
			return Endpoint{}, fmt.Errorf("%w: scheme %q", ErrInvalidEndpoint, scheme)
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w: no host in %q", ErrInvalidEndpoint, raw)
	}
	if net.ParseIP(host) == nil {
		host, err = idna.Lookup.ToASCII(host)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: host: %w", ErrInvalidEndpoint, err)
		}
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if tls {
			port = "443"
		}
	}
	return Endpoint{Host: host, Port: port, TLS: tls}, nil
}

// Address is the dial target.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, e.Port)
}

func (e Endpoint) String() string {
	if e.TLS {
		return "https://" + e.Address()
	}
	return "http://" + e.Address()
}
