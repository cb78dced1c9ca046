package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ozontech/tritonclient/client/channel"
	"github.com/ozontech/tritonclient/input"
	"github.com/ozontech/tritonclient/output"
	"github.com/ozontech/tritonclient/pb"
	"github.com/ozontech/tritonclient/tensor"
	"github.com/ozontech/tritonclient/testserver"
)

func newServer(t *testing.T) *testserver.Server {
	return testserver.New(zaptest.NewLogger(t), &testserver.Model{
		Name:     "echo",
		Versions: []string{"1"},
		Platform: "echo",
		Inputs: []*pb.TensorMetadata{
			{Name: "INPUT0", Datatype: "FP32", Shape: []int64{-1, 3}},
			{Name: "INPUT1", Datatype: "BYTES", Shape: []int64{-1}},
		},
		Outputs: []*pb.TensorMetadata{
			{Name: "OUTPUT0", Datatype: "FP32", Shape: []int64{-1, 3}},
			{Name: "OUTPUT1", Datatype: "BYTES", Shape: []int64{-1}},
		},
		Ready: true,
	})
}

func newTestClient(t *testing.T, srv *testserver.Server, opts ...ConfigOption) *Client {
	t.Helper()

	lis, stop := srv.Bufconn()
	t.Cleanup(stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	c, err := New(NewConfig("bufnet", opts...),
		WithLogger(zaptest.NewLogger(t)),
		WithMetadataCache(8),
		WithChannelOptions(channel.WithDialOptions(dialer)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func echoInput() *input.ModelInput {
	return input.NewModelInput("echo").
		ID("req-1").
		Input(
			input.New("INPUT0", tensor.Must(tensor.New([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6}))),
			input.New("INPUT1", tensor.Vector([]byte("a"), []byte("bc"))),
		)
}

func TestInfer(t *testing.T) {
	t.Parallel()

	for _, raw := range []bool{false, true} {
		raw := raw
		t.Run(map[bool]string{false: "inline", true: "raw"}[raw], func(t *testing.T) {
			t.Parallel()
			a := assert.New(t)
			r := require.New(t)

			c := newTestClient(t, newServer(t))
			out, err := c.Infer(context.Background(), echoInput().Raw(raw))
			r.NoError(err)

			a.Equal("echo", out.ModelName)
			a.Equal("req-1", out.ID)
			a.Equal([]string{"OUTPUT0", "OUTPUT1"}, out.Names())

			f, err := output.Typed[float32](out, "OUTPUT0")
			r.NoError(err)
			a.Equal([]int{2, 3}, f.Shape())
			a.Equal([]float32{1, 2, 3, 4, 5, 6}, f.Data())

			b, err := output.Typed[[]byte](out, "OUTPUT1")
			r.NoError(err)
			a.Equal([][]byte{[]byte("a"), []byte("bc")}, b.Data())
		})
	}
}

func TestInferEncoded(t *testing.T) {
	t.Parallel()
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()

	c := newTestClient(t, newServer(t))
	req, err := echoInput().Raw(true).Build()
	r.NoError(err)
	wire, err := pb.Marshal(req)
	r.NoError(err)

	want, err := c.InferRaw(ctx, req)
	r.NoError(err)
	got, err := c.InferEncoded(ctx, pb.Encoded(wire))
	r.NoError(err)
	a.Equal(want, got)
}

func TestInferCompression(t *testing.T) {
	t.Parallel()

	for _, name := range []string{CompressionGzip, CompressionZstd} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, newServer(t), WithCompression(name))
			out, err := c.Infer(context.Background(), echoInput().Raw(true))
			require.NoError(t, err)
			assert.Equal(t, 2, out.Len())
		})
	}
}

func TestInferRetriesTransient(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	srv := newServer(t)
	c := newTestClient(t, srv)

	srv.FailNext(codes.Unavailable)
	out, err := c.Infer(context.Background(), echoInput())
	a.NoError(err)
	a.Equal(2, out.Len())
	a.Equal(2, srv.Calls(pb.MethodModelInfer))

	// the retry failing too is returned as is
	srv.FailNext(codes.Internal, codes.Internal)
	_, err = c.Infer(context.Background(), echoInput())
	a.Equal(codes.Internal, status.Code(err))
	a.Equal(4, srv.Calls(pb.MethodModelInfer))
}

func TestInferPermanentError(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	srv := newServer(t)
	c := newTestClient(t, srv)

	srv.FailNext(codes.InvalidArgument)
	_, err := c.Infer(context.Background(), echoInput())
	a.Equal(codes.InvalidArgument, status.Code(err))
	a.Equal(1, srv.Calls(pb.MethodModelInfer))
	a.True(c.pool.Connected())

	_, err = c.Infer(context.Background(), input.NewModelInput("missing").Input(input.New("x", tensor.Vector[int32](1))))
	a.Equal(codes.NotFound, status.Code(err))
}

func TestInferTimeout(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	srv := newServer(t)
	c := newTestClient(t, srv, WithTimeout(50*time.Millisecond))

	srv.Delay(time.Second)
	_, err := c.Infer(context.Background(), echoInput())
	a.Equal(codes.DeadlineExceeded, status.Code(err))
	a.Equal(1, srv.Calls(pb.MethodModelInfer))
}

func TestInferBuildError(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := newTestClient(t, srv)

	_, err := c.Infer(context.Background(), input.NewModelInput("echo"))
	assert.ErrorIs(t, err, input.ErrNoInputs)
	assert.Zero(t, srv.Calls(pb.MethodModelInfer))
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	srv := newServer(t)
	c := newTestClient(t, srv)

	ok, err := c.HealthCheck(context.Background())
	a.NoError(err)
	a.True(ok)

	srv.FailNext(codes.Unavailable)
	_, err = c.HealthCheck(context.Background())
	a.Equal(codes.Unavailable, status.Code(err))
	a.False(c.pool.Connected())

	ok, err = c.HealthCheck(context.Background())
	a.NoError(err)
	a.True(ok)
}

func TestServerCalls(t *testing.T) {
	t.Parallel()
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()

	c := newTestClient(t, newServer(t))

	live, err := c.ServerLive(ctx)
	r.NoError(err)
	a.True(live)

	ready, err := c.ServerReady(ctx)
	r.NoError(err)
	a.True(ready)

	meta, err := c.ServerMetadata(ctx)
	r.NoError(err)
	a.Equal("echo", meta.Name)
	a.Contains(meta.Extensions, "model_repository")

	conf, err := c.ModelConfig(ctx, "echo", "")
	r.NoError(err)
	a.Equal("echo", conf.Name)
	r.Len(conf.Inputs, 2)
	a.Equal(pb.TypeFP32, conf.Inputs[0].DataType)
	a.Equal([]int64{-1, 3}, conf.Inputs[0].Dims)
	a.Equal(pb.TypeString, conf.Outputs[1].DataType)

	_, err = c.Infer(ctx, echoInput())
	r.NoError(err)
	stats, err := c.ModelStatistics(ctx, "echo", "")
	r.NoError(err)
	r.Len(stats, 1)
	a.Equal(uint64(1), stats[0].InferenceCount)
	a.Equal(uint64(1), stats[0].InferenceStats.Success.Count)

	_, err = c.ModelStatistics(ctx, "missing", "")
	a.Equal(codes.NotFound, status.Code(err))
}

func TestRepository(t *testing.T) {
	t.Parallel()
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()

	srv := newServer(t)
	c := newTestClient(t, srv)

	meta, err := c.ModelMetadata(ctx, "echo", "")
	r.NoError(err)
	a.Equal([]string{"1"}, meta.Versions)
	_, err = c.ModelMetadata(ctx, "echo", "")
	r.NoError(err)
	a.Equal(1, srv.Calls(pb.MethodModelMetadata))

	r.NoError(c.UnloadModel(ctx, "echo", map[string]pb.Parameter{"unload_dependents": pb.BoolParam(true)}))
	ready, err := c.ModelReady(ctx, "echo", "")
	r.NoError(err)
	a.False(ready)

	index, err := c.RepositoryIndex(ctx, false)
	r.NoError(err)
	r.Len(index, 1)
	a.Equal("UNAVAILABLE", index[0].State)
	index, err = c.RepositoryIndex(ctx, true)
	r.NoError(err)
	a.Empty(index)

	_, err = c.Infer(ctx, echoInput())
	a.Equal(codes.Unavailable, status.Code(err))

	r.NoError(c.LoadModel(ctx, "echo", nil))
	ready, err = c.ModelReady(ctx, "echo", "")
	r.NoError(err)
	a.True(ready)

	// unload and load dropped the cached metadata
	_, err = c.ModelMetadata(ctx, "echo", "")
	r.NoError(err)
	a.Equal(2, srv.Calls(pb.MethodModelMetadata))

	a.Equal(codes.NotFound, status.Code(c.LoadModel(ctx, "missing", nil)))
}

func TestLoadModelDropsMetadataCachedDuringCall(t *testing.T) {
	t.Parallel()
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()

	srv := newServer(t)
	lis, stop := srv.Bufconn()
	t.Cleanup(stop)

	var c *Client
	// fills the cache while the load is in flight
	refill := grpc.WithChainUnaryInterceptor(func(
		ctx context.Context, method string, req, reply any,
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		if method == pb.MethodRepositoryModelLoad {
			_, err := c.ModelMetadata(ctx, "echo", "")
			r.NoError(err)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	})
	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	c, err := New(NewConfig("bufnet"),
		WithLogger(zaptest.NewLogger(t)),
		WithMetadataCache(8),
		WithChannelOptions(channel.WithDialOptions(dialer, refill)),
	)
	r.NoError(err)
	t.Cleanup(func() { c.Close() })

	r.NoError(c.LoadModel(ctx, "echo", nil))
	a.Equal(1, srv.Calls(pb.MethodModelMetadata))

	_, err = c.ModelMetadata(ctx, "echo", "")
	r.NoError(err)
	a.Equal(2, srv.Calls(pb.MethodModelMetadata))
}

func TestSharedMemory(t *testing.T) {
	t.Parallel()
	a := assert.New(t)
	r := require.New(t)
	ctx := context.Background()

	c := newTestClient(t, newServer(t))

	region := &pb.SharedMemoryRegion{Name: "input", Key: "/input_shm", ByteSize: 64}
	r.NoError(c.SharedMemoryRegister(ctx, region))
	a.Equal(codes.AlreadyExists, status.Code(c.SharedMemoryRegister(ctx, region)))

	regions, err := c.SharedMemoryStatus(ctx, "")
	r.NoError(err)
	a.Equal(map[string]*pb.SharedMemoryRegion{"input": region}, regions)

	r.NoError(c.SharedMemoryUnregister(ctx, "input"))
	_, err = c.SharedMemoryStatus(ctx, "input")
	a.Equal(codes.NotFound, status.Code(err))
}

func TestNewInvalidConfig(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	conf := NewConfig("grpc://triton", WithTimeout(-time.Second), WithCompression("lz4"))
	_, err := New(conf)
	a.ErrorIs(err, channel.ErrInvalidEndpoint)
	a.ErrorIs(err, ErrInvalidConfig)
	a.Contains(err.Error(), "lz4")
	a.Contains(err.Error(), "negative timeout")

	a.NoError(DefaultConfig().Validate())
	a.False(errors.Is(DefaultConfig().Validate(), ErrInvalidConfig))
}
