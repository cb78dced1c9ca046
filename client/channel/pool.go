package channel

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/ozontech/tritonclient/consts"
)

var ErrClosed = errors.New("channel: pool is closed")

// Conn is a connection the pool hands out.
type Conn interface {
	grpc.ClientConnInterface
	Close() error
}

// DialFunc establishes a ready connection to addr or fails within ctx.
type DialFunc func(ctx context.Context, ep Endpoint, opts ...grpc.DialOption) (Conn, error)

// Op is one call made over a pooled connection.
type Op func(ctx context.Context, cc grpc.ClientConnInterface) error

type Config struct {
	URI              string
	TLS              bool
	TLSConfig        *tls.Config
	Timeout          time.Duration
	ConnectTimeout   time.Duration
	KeepAlive        bool
	KeepAliveTimeout time.Duration

	// KeepAliveInterval is the ping period, zero sends no pings. Servers
	// answer pings more frequent than their policy allows with GOAWAY.
	KeepAliveInterval time.Duration
	// Compression is a registered grpc compressor name, empty for none.
	Compression string
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

type Option func(*Pool)

func WithLogger(log *zap.Logger) Option {
	return func(p *Pool) {
		p.log = log.Named("channel")
	}
}

// WithDial replaces grpc dialing, tests use it to inject connections.
func WithDial(dial DialFunc) Option {
	return func(p *Pool) {
		p.dial = dial
	}
}

// WithDialOptions appends grpc dial options to the ones derived from Config.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(p *Pool) {
		p.extra = append(p.extra, opts...)
	}
}

// Pool keeps at most one live connection to a single endpoint. It connects
// lazily, drops the connection on transient failures and retries a call
// once when asked to.
type Pool struct {
	conf     Config
	endpoint Endpoint
	dial     DialFunc
	extra    []grpc.DialOption
	log      *zap.Logger

	mu      sync.RWMutex
	conn    Conn
	retired map[Conn]*time.Timer
	closed  bool
}

func NewPool(conf Config, opts ...Option) (*Pool, error) {
	ep, err := ParseEndpoint(conf.URI, conf.TLS)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		conf:     conf,
		endpoint: ep,
		dial:     dialGRPC,
		log:      zap.NewNop(),
		retired:  make(map[Conn]*time.Timer),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Pool) Endpoint() Endpoint { return p.endpoint }

// Connected reports whether a connection is cached.
func (p *Pool) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conn != nil
}

// Conn returns the cached connection or dials a new one. Concurrent callers
// may dial in parallel, the last connection to finish replaces the others.
func (p *Pool) Conn(ctx context.Context) (Conn, error) {
	p.mu.RLock()
	conn, closed := p.conn, p.closed
	p.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if conn != nil {
		return conn, nil
	}
	return p.connect(ctx)
}

func (p *Pool) connect(ctx context.Context) (Conn, error) {
	if p.conf.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.conf.ConnectTimeout)
		defer cancel()
	}

	start := time.Now()
	conn, err := p.dial(ctx, p.endpoint, p.dialOptions()...)
	if err != nil {
		p.log.Warn("connect failed", zap.Stringer("endpoint", p.endpoint), zap.Error(err))
		if _, ok := status.FromError(err); !ok {
			err = status.Errorf(codes.Unavailable, "connecting to %s: %v", p.endpoint, err)
		}
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, multierr.Append(ErrClosed, conn.Close())
	}
	prev := p.conn
	p.conn = conn
	p.mu.Unlock()

	if prev != nil {
		p.retire(prev)
	}
	p.log.Info("connected",
		zap.Stringer("endpoint", p.endpoint),
		zap.Duration("took", time.Since(start)),
	)
	return conn, nil
}

// Invalidate drops the cached connection. Calls still running on it finish
// within the request timeout before it is closed.
func (p *Pool) Invalidate() {
	p.mu.Lock()
	prev := p.conn
	p.conn = nil
	p.mu.Unlock()

	if prev != nil {
		p.retire(prev)
	}
}

// invalidate drops stale only if it is still the cached connection.
func (p *Pool) invalidate(stale Conn) {
	p.mu.Lock()
	if p.conn != stale {
		p.mu.Unlock()
		return
	}
	p.conn = nil
	p.mu.Unlock()

	p.retire(stale)
}

func (p *Pool) retire(conn Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.retired[conn]; ok {
		return
	}
	p.retired[conn] = time.AfterFunc(p.conf.Timeout, func() {
		p.mu.Lock()
		delete(p.retired, conn)
		p.mu.Unlock()

		if err := conn.Close(); err != nil {
			p.log.Debug("closing retired connection", zap.Error(err))
		}
	})
}

// Do runs op over a pooled connection with the request timeout applied.
// When op fails with a transient status the connection is dropped and, if
// allowRetry is set, op runs once more over a fresh connection. Its result
// is returned as is. Failures after ctx is done are returned without
// touching the connection.
func (p *Pool) Do(ctx context.Context, allowRetry bool, op Op) error {
	conn, err := p.Conn(ctx)
	if err != nil {
		return err
	}

	err = p.attempt(ctx, conn, op)
	// a caller that gave up says nothing about the connection
	if !IsTransient(err) || ctx.Err() != nil {
		return err
	}
	p.invalidate(conn)
	if !allowRetry {
		return err
	}

	p.log.Info("reconnecting after transient failure", zap.Error(err))
	conn, err = p.Conn(ctx)
	if err != nil {
		return err
	}
	err = p.attempt(ctx, conn, op)
	if IsTransient(err) {
		p.invalidate(conn)
	}
	return err
}

func (p *Pool) attempt(ctx context.Context, conn Conn, op Op) error {
	if p.conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.conf.Timeout)
		defer cancel()
	}
	return op(ctx, conn)
}

// Close closes the cached and all retired connections.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if p.conn != nil {
		err = multierr.Append(err, p.conn.Close())
		p.conn = nil
	}
	for conn, timer := range p.retired {
		if timer.Stop() {
			err = multierr.Append(err, conn.Close())
		}
		delete(p.retired, conn)
	}
	return err
}

// IsTransient reports whether err is a grpc status worth reconnecting for.
func IsTransient(err error) bool {
	s, ok := status.FromError(err)
	if !ok || err == nil {
		return false
	}
	switch s.Code() {
	case codes.Internal, codes.Unavailable, codes.Canceled, codes.Unknown:
		return true
	}
	return false
}

func (p *Pool) dialOptions() []grpc.DialOption {
	var creds credentials.TransportCredentials = insecure.NewCredentials()
	if p.endpoint.TLS {
		creds = credentials.NewTLS(p.conf.TLSConfig)
	}

	callOpts := []grpc.CallOption{
		grpc.MaxCallRecvMsgSize(consts.MaxMessageSize),
		grpc.MaxCallSendMsgSize(consts.MaxMessageSize),
	}
	if p.conf.Compression != "" {
		callOpts = append(callOpts, grpc.UseCompressor(p.conf.Compression))
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepaliveParams(p.conf)),
		grpc.WithDefaultCallOptions(callOpts...),
		grpc.WithChainUnaryInterceptor(logCalls(p.log)),
	}
	if p.conf.ConnectTimeout > 0 {
		opts = append(opts, grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoff.DefaultConfig,
			MinConnectTimeout: p.conf.ConnectTimeout,
		}))
	}
	return append(opts, p.extra...)
}

// noPings disables client pings, grpc clamps a zero Time up to 10s.
const noPings = time.Duration(math.MaxInt64)

func keepaliveParams(conf Config) keepalive.ClientParameters {
	kp := keepalive.ClientParameters{
		Time:                noPings,
		Timeout:             conf.KeepAliveTimeout,
		PermitWithoutStream: conf.KeepAlive,
	}
	if conf.KeepAliveInterval > 0 {
		kp.Time = conf.KeepAliveInterval
	}
	return kp
}

func logCalls(log *zap.Logger) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply any,
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		if ce := log.Check(zap.DebugLevel, "call"); ce != nil {
			ce.Write(
				zap.String("method", method),
				zap.Duration("took", time.Since(start)),
				zap.Stringer("code", status.Code(err)),
			)
		}
		return err
	}
}

// dialGRPC creates a client connection and waits until it is ready. The
// address is resolved at dial time, so a reconnect follows DNS changes.
func dialGRPC(ctx context.Context, ep Endpoint, opts ...grpc.DialOption) (Conn, error) {
	conn, err := grpc.NewClient("passthrough:///"+ep.Address(), opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client: %w", err)
	}

	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return conn, nil
		case connectivity.TransientFailure, connectivity.Shutdown:
			return nil, multierr.Append(
				fmt.Errorf("connection to %s is %s", ep, state),
				conn.Close(),
			)
		}
		if !conn.WaitForStateChange(ctx, state) {
			return nil, multierr.Append(
				fmt.Errorf("waiting for %s: %w", ep, ctx.Err()),
				conn.Close(),
			)
		}
	}
}
