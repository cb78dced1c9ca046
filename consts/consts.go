package consts

import (
	"math"
	"time"
)

const (
	DefaultURI              = "localhost:8001"
	DefaultTimeout          = 30 * time.Second
	DefaultConnectTimeout   = 5 * time.Second
	DefaultKeepAlive        = true
	DefaultKeepAliveTimeout = 20 * time.Second

	// MaxMessageSize - inference payloads are not bounded by the client.
	MaxMessageSize = math.MaxInt32

	DefaultMetadataCacheSize = 64
	DefaultBenchClients      = 1
)
