// Package client submits requests to a KServe v2 inference server over a
// single pooled grpc connection.
package client

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ozontech/tritonclient/client/channel"
	"github.com/ozontech/tritonclient/input"
	"github.com/ozontech/tritonclient/output"
	"github.com/ozontech/tritonclient/pb"
	"github.com/ozontech/tritonclient/tensor"
	"github.com/ozontech/tritonclient/utils/lru"
)

type Option func(*Client)

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithMetadataCache keeps up to size model metadata responses. Loading or
// unloading a model drops its entries.
func WithMetadataCache(size int) Option {
	return func(c *Client) {
		c.metadata = lru.New[string, *pb.ModelMetadataResponse](size)
	}
}

// WithChannelOptions passes options to the underlying connection pool.
func WithChannelOptions(opts ...channel.Option) Option {
	return func(c *Client) {
		c.channelOpts = append(c.channelOpts, opts...)
	}
}

type Client struct {
	conf        Config
	log         *zap.Logger
	pool        *channel.Pool
	channelOpts []channel.Option
	metadata    *lru.LRU[string, *pb.ModelMetadataResponse]
}

// New validates conf and prepares a client. No connection is made until the
// first call.
func New(conf Config, opts ...Option) (*Client, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	c := &Client{conf: conf, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}

	pool, err := channel.NewPool(conf.channelConfig(),
		append([]channel.Option{channel.WithLogger(c.log)}, c.channelOpts...)...)
	if err != nil {
		return nil, err
	}
	c.pool = pool
	return c, nil
}

func (c *Client) Endpoint() channel.Endpoint { return c.pool.Endpoint() }

func (c *Client) Close() error { return c.pool.Close() }

func (c *Client) invoke(ctx context.Context, method string, req, resp pb.Message) error {
	return c.pool.Do(ctx, true, func(ctx context.Context, cc grpc.ClientConnInterface) error {
		resp.Reset()
		return cc.Invoke(ctx, method, req, resp, grpc.ForceCodec(pb.Codec{}))
	})
}

// Infer builds the request, submits it and decodes every output.
func (c *Client) Infer(ctx context.Context, in *input.ModelInput, opts ...tensor.DecoderOption) (*output.ModelOutput, error) {
	req, err := in.Build()
	if err != nil {
		return nil, err
	}
	resp, err := c.InferRaw(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := output.New(resp, opts...)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", req.ModelName, err)
	}
	return out, nil
}

// InferRaw submits a prepared request and returns the undecoded response.
func (c *Client) InferRaw(ctx context.Context, req *pb.ModelInferRequest) (*pb.ModelInferResponse, error) {
	resp := new(pb.ModelInferResponse)
	if err := c.invoke(ctx, pb.MethodModelInfer, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// InferEncoded submits a request already in wire form, see pb.Encoded.
func (c *Client) InferEncoded(ctx context.Context, req pb.Encoded) (*pb.ModelInferResponse, error) {
	resp := new(pb.ModelInferResponse)
	if err := c.invoke(ctx, pb.MethodModelInfer, &req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// HealthCheck asks the standard grpc health service. It is never retried, a
// failed check drops the connection.
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	var serving bool
	err := c.pool.Do(ctx, false, func(ctx context.Context, cc grpc.ClientConnInterface) error {
		resp, err := healthpb.NewHealthClient(cc).Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			return err
		}
		serving = resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
		return nil
	})
	return serving, err
}

func (c *Client) ServerLive(ctx context.Context) (bool, error) {
	resp := new(pb.ServerLiveResponse)
	if err := c.invoke(ctx, pb.MethodServerLive, new(pb.Empty), resp); err != nil {
		return false, err
	}
	return resp.Live, nil
}

func (c *Client) ServerReady(ctx context.Context) (bool, error) {
	resp := new(pb.ReadyResponse)
	if err := c.invoke(ctx, pb.MethodServerReady, new(pb.Empty), resp); err != nil {
		return false, err
	}
	return resp.Ready, nil
}

func (c *Client) ModelReady(ctx context.Context, name, version string) (bool, error) {
	resp := new(pb.ReadyResponse)
	req := &pb.ModelRequest{Name: name, Version: version}
	if err := c.invoke(ctx, pb.MethodModelReady, req, resp); err != nil {
		return false, err
	}
	return resp.Ready, nil
}

func (c *Client) ServerMetadata(ctx context.Context) (*pb.ServerMetadataResponse, error) {
	resp := new(pb.ServerMetadataResponse)
	if err := c.invoke(ctx, pb.MethodServerMetadata, new(pb.Empty), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func metadataKey(name, version string) string {
	return name + "/" + version
}

// ModelMetadata is served from the metadata cache when one is configured.
func (c *Client) ModelMetadata(ctx context.Context, name, version string) (*pb.ModelMetadataResponse, error) {
	key := metadataKey(name, version)
	if c.metadata != nil {
		if resp, ok := c.metadata.Get(key); ok {
			return resp, nil
		}
	}

	resp := new(pb.ModelMetadataResponse)
	req := &pb.ModelRequest{Name: name, Version: version}
	if err := c.invoke(ctx, pb.MethodModelMetadata, req, resp); err != nil {
		return nil, err
	}
	if c.metadata != nil {
		c.metadata.Add(key, resp)
	}
	return resp, nil
}

func (c *Client) ModelConfig(ctx context.Context, name, version string) (*pb.ModelConfig, error) {
	resp := new(pb.ModelConfigResponse)
	req := &pb.ModelRequest{Name: name, Version: version}
	if err := c.invoke(ctx, pb.MethodModelConfig, req, resp); err != nil {
		return nil, err
	}
	return resp.Config, nil
}

// ModelStatistics returns the statistics of one model, or of all models when
// name is empty.
func (c *Client) ModelStatistics(ctx context.Context, name, version string) ([]*pb.ModelStatistics, error) {
	resp := new(pb.ModelStatisticsResponse)
	req := &pb.ModelRequest{Name: name, Version: version}
	if err := c.invoke(ctx, pb.MethodModelStatistics, req, resp); err != nil {
		return nil, err
	}
	return resp.ModelStats, nil
}

func (c *Client) RepositoryIndex(ctx context.Context, readyOnly bool) ([]*pb.ModelIndex, error) {
	resp := new(pb.RepositoryIndexResponse)
	req := &pb.RepositoryIndexRequest{Ready: readyOnly}
	if err := c.invoke(ctx, pb.MethodRepositoryIndex, req, resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

func (c *Client) LoadModel(ctx context.Context, name string, params map[string]pb.Parameter) error {
	return c.repositoryCall(ctx, pb.MethodRepositoryModelLoad, name, params)
}

func (c *Client) UnloadModel(ctx context.Context, name string, params map[string]pb.Parameter) error {
	return c.repositoryCall(ctx, pb.MethodRepositoryModelUnload, name, params)
}

// repositoryCall drops the model's cached metadata once the call is over,
// including entries a concurrent ModelMetadata added meanwhile.
func (c *Client) repositoryCall(ctx context.Context, method, name string, params map[string]pb.Parameter) error {
	defer c.forgetMetadata(name)

	req := &pb.RepositoryModelRequest{ModelName: name, Parameters: params}
	if err := c.invoke(ctx, method, req, new(pb.Empty)); err != nil {
		return err
	}
	c.log.Info("repository call done", zap.String("method", method), zap.String("model", name))
	return nil
}

func (c *Client) forgetMetadata(name string) {
	if c.metadata == nil {
		return
	}
	prefix := metadataKey(name, "")
	c.metadata.Remove(func(key string) bool { return strings.HasPrefix(key, prefix) })
}

// SharedMemoryStatus lists registered system shared memory regions, all of
// them when name is empty.
func (c *Client) SharedMemoryStatus(ctx context.Context, name string) (map[string]*pb.SharedMemoryRegion, error) {
	resp := new(pb.SharedMemoryStatusResponse)
	if err := c.invoke(ctx, pb.MethodSystemSharedMemoryStatus, &pb.SharedMemoryName{Name: name}, resp); err != nil {
		return nil, err
	}
	return resp.Regions, nil
}

func (c *Client) SharedMemoryRegister(ctx context.Context, region *pb.SharedMemoryRegion) error {
	return c.invoke(ctx, pb.MethodSystemSharedMemoryRegister, region, new(pb.Empty))
}

// SharedMemoryUnregister drops one region, or every region when name is empty.
func (c *Client) SharedMemoryUnregister(ctx context.Context, name string) error {
	return c.invoke(ctx, pb.MethodSystemSharedMemoryUnregister, &pb.SharedMemoryName{Name: name}, new(pb.Empty))
}
