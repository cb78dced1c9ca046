package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeConn struct {
	id     int32
	closed atomic.Bool
}

func (c *fakeConn) Invoke(context.Context, string, any, any, ...grpc.CallOption) error {
	return errors.New("not implemented")
}

func (c *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

type fakeDialer struct {
	dials atomic.Int32
	err   error
}

func (d *fakeDialer) dial(context.Context, Endpoint, ...grpc.DialOption) (Conn, error) {
	n := d.dials.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return &fakeConn{id: n}, nil
}

func newTestPool(t *testing.T, d *fakeDialer) *Pool {
	t.Helper()
	conf := DefaultConfig()
	conf.Timeout = 50 * time.Millisecond
	p, err := NewPool(conf, WithDial(d.dial), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// failOnce fails the first call with code and succeeds afterwards.
func failOnce(code codes.Code, seen *[]int32) Op {
	var calls atomic.Int32
	return func(_ context.Context, cc grpc.ClientConnInterface) error {
		*seen = append(*seen, cc.(*fakeConn).id)
		if calls.Add(1) == 1 {
			return status.Error(code, "boom")
		}
		return nil
	}
}

func TestDoRetriesTransient(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	for _, code := range []codes.Code{codes.Unavailable, codes.Internal, codes.Canceled, codes.Unknown} {
		d := new(fakeDialer)
		p := newTestPool(t, d)

		var seen []int32
		err := p.Do(context.Background(), true, failOnce(code, &seen))
		a.NoError(err, code.String())
		a.True(p.Connected())
		a.Equal(int32(2), d.dials.Load())
		a.Equal([]int32{1, 2}, seen)
	}
}

func TestDoWithoutRetry(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	d := new(fakeDialer)
	p := newTestPool(t, d)

	var seen []int32
	err := p.Do(context.Background(), false, failOnce(codes.Unavailable, &seen))
	a.Equal(codes.Unavailable, status.Code(err))
	a.False(p.Connected())
	a.Equal([]int32{1}, seen)

	// next call reconnects
	a.NoError(p.Do(context.Background(), false, func(context.Context, grpc.ClientConnInterface) error { return nil }))
	a.Equal(int32(2), d.dials.Load())
}

func TestDoKeepsConnectionOnPermanentError(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	d := new(fakeDialer)
	p := newTestPool(t, d)

	before, err := p.Conn(context.Background())
	a.NoError(err)

	var seen []int32
	err = p.Do(context.Background(), true, failOnce(codes.InvalidArgument, &seen))
	a.Equal(codes.InvalidArgument, status.Code(err))
	a.True(p.Connected())
	a.Equal(int32(1), d.dials.Load())
	a.Equal([]int32{1}, seen)

	after, err := p.Conn(context.Background())
	a.NoError(err)
	a.Same(before, after)

	// plain errors are not statuses and never reconnect
	err = p.Do(context.Background(), true, func(context.Context, grpc.ClientConnInterface) error {
		return errors.New("local")
	})
	a.EqualError(err, "local")
	a.True(p.Connected())
}

func TestDoCallerCanceled(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	d := new(fakeDialer)
	p := newTestPool(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Do(ctx, true, func(context.Context, grpc.ClientConnInterface) error {
		calls++
		cancel()
		return status.Error(codes.Canceled, "context canceled")
	})
	a.Equal(codes.Canceled, status.Code(err))
	a.Equal(1, calls)
	a.True(p.Connected())
	a.Equal(int32(1), d.dials.Load())
}

func TestKeepaliveParams(t *testing.T) {
	t.Parallel()

	type testCase struct {
		name     string
		conf     func(*Config)
		interval time.Duration
		timeout  time.Duration
		idle     bool
	}
	makeTests := func() []testCase {
		return []testCase{
			{
				name:     "defaults send no pings",
				conf:     func(*Config) {},
				interval: noPings,
				timeout:  20 * time.Second,
				idle:     true,
			},
			{
				name: "explicit interval",
				conf: func(c *Config) {
					c.KeepAliveInterval = 5 * time.Minute
					c.KeepAliveTimeout = 10 * time.Second
				},
				interval: 5 * time.Minute,
				timeout:  10 * time.Second,
				idle:     true,
			},
			{
				name:     "keep-alive off",
				conf:     func(c *Config) { c.KeepAlive = false },
				interval: noPings,
				timeout:  20 * time.Second,
			},
		}
	}

	for _, tc := range makeTests() {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := assert.New(t)

			conf := DefaultConfig()
			tc.conf(&conf)
			kp := keepaliveParams(conf)
			a.Equal(tc.interval, kp.Time)
			a.Equal(tc.timeout, kp.Timeout)
			a.Equal(tc.idle, kp.PermitWithoutStream)
		})
	}
}

func TestDoSecondFailureReturned(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	d := new(fakeDialer)
	p := newTestPool(t, d)

	var calls atomic.Int32
	err := p.Do(context.Background(), true, func(context.Context, grpc.ClientConnInterface) error {
		if calls.Add(1) == 1 {
			return status.Error(codes.Unavailable, "first")
		}
		return status.Error(codes.Internal, "second")
	})
	a.Equal(codes.Internal, status.Code(err))
	a.Equal("second", status.Convert(err).Message())
	a.Equal(int32(2), calls.Load())
	a.False(p.Connected())
}

func TestDoAppliesTimeout(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	p := newTestPool(t, new(fakeDialer))
	err := p.Do(context.Background(), false, func(ctx context.Context, _ grpc.ClientConnInterface) error {
		deadline, ok := ctx.Deadline()
		a.True(ok)
		a.WithinDuration(time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		return nil
	})
	a.NoError(err)
}

func TestConnectFailure(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	d := &fakeDialer{err: errors.New("connection refused")}
	p := newTestPool(t, d)

	called := false
	err := p.Do(context.Background(), true, func(context.Context, grpc.ClientConnInterface) error {
		called = true
		return nil
	})
	a.Equal(codes.Unavailable, status.Code(err))
	a.Contains(err.Error(), "connection refused")
	a.False(called)
	a.False(p.Connected())
	a.True(IsTransient(err))
}

func TestInvalidateRetiresConnection(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	p := newTestPool(t, new(fakeDialer))
	c, err := p.Conn(context.Background())
	a.NoError(err)
	conn := c.(*fakeConn)

	p.Invalidate()
	a.False(p.Connected())
	a.False(conn.closed.Load())
	a.Eventually(conn.closed.Load, time.Second, 5*time.Millisecond)

	// invalidating an empty pool is a no-op
	p.Invalidate()
}

func TestClose(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	p := newTestPool(t, new(fakeDialer))
	c, err := p.Conn(context.Background())
	a.NoError(err)

	a.NoError(p.Close())
	a.True(c.(*fakeConn).closed.Load())
	a.False(p.Connected())

	_, err = p.Conn(context.Background())
	a.ErrorIs(err, ErrClosed)
	a.NoError(p.Close())
}

func TestConcurrentDo(t *testing.T) {
	t.Parallel()

	d := new(fakeDialer)
	p := newTestPool(t, d)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = p.Do(context.Background(), true, func(context.Context, grpc.ClientConnInterface) error {
				if i%4 == 0 {
					return status.Error(codes.Unavailable, "flaky")
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	assert.GreaterOrEqual(t, d.dials.Load(), int32(2))
}

func TestIsTransient(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	a.False(IsTransient(nil))
	a.False(IsTransient(errors.New("plain")))
	a.False(IsTransient(status.Error(codes.DeadlineExceeded, "")))
	a.False(IsTransient(status.Error(codes.NotFound, "")))
	a.True(IsTransient(status.Error(codes.Unknown, "")))
}
