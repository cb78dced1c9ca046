// Package testserver is an in-memory inference server. Inference echoes the
// request inputs back as raw outputs.
package testserver

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ozontech/tritonclient/pb"
)

// Model is a model served by the echo server.
type Model struct {
	Name     string
	Versions []string
	Platform string
	// Inputs and Outputs are matched by position, echoed data of input i is
	// returned under the name of output i.
	Inputs  []*pb.TensorMetadata
	Outputs []*pb.TensorMetadata
	Ready   bool

	stats modelStats
}

type modelStats struct {
	inferences uint64
	failures   uint64
	successNs  uint64
	last       uint64
}

type Server struct {
	log *zap.Logger

	mu      sync.Mutex
	models  map[string]*Model
	regions map[string]*pb.SharedMemoryRegion
	faults  []codes.Code
	calls   map[string]int
	delay   time.Duration
}

func New(log *zap.Logger, models ...*Model) *Server {
	s := &Server{
		log:     log.Named("testserver"),
		models:  make(map[string]*Model, len(models)),
		regions: make(map[string]*pb.SharedMemoryRegion),
		calls:   make(map[string]int),
	}
	for _, m := range models {
		s.models[m.Name] = m
	}
	return s
}

// FailNext makes the next len(codes) calls fail with the given codes.
func (s *Server) FailNext(codes ...codes.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, codes...)
}

// Delay holds every inference call for d.
func (s *Server) Delay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls counts the calls of a full method name, failed ones included.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Server) intercept(
	ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
) (any, error) {
	s.mu.Lock()
	s.calls[info.FullMethod]++
	var fault codes.Code
	if len(s.faults) > 0 {
		fault, s.faults = s.faults[0], s.faults[1:]
	}
	s.mu.Unlock()

	if fault != codes.OK {
		s.log.Debug("injected fault", zap.String("method", info.FullMethod), zap.Stringer("code", fault))
		return nil, status.Error(fault, "injected fault")
	}
	return handler(ctx, req)
}

// NewGRPCServer builds a grpc server exposing the inference and health services.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(pb.Codec{}),
		grpc.ChainUnaryInterceptor(s.intercept),
	}, opts...)
	gs := grpc.NewServer(opts...)
	gs.RegisterService(s.serviceDesc(), s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

// Serve serves on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener, opts ...grpc.ServerOption) error {
	gs := s.NewGRPCServer(opts...)
	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()
	return gs.Serve(lis)
}

// Bufconn serves over an in-memory listener. stop shuts the server down.
func (s *Server) Bufconn(opts ...grpc.ServerOption) (lis *bufconn.Listener, stop func()) {
	lis = bufconn.Listen(1 << 20)
	gs := s.NewGRPCServer(opts...)
	go gs.Serve(lis) //nolint:errcheck
	return lis, gs.Stop
}

func (s *Server) serviceDesc() *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: pb.ServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			unary("ServerLive", s.serverLive),
			unary("ServerReady", s.serverReady),
			unary("ModelReady", s.modelReady),
			unary("ServerMetadata", s.serverMetadata),
			unary("ModelMetadata", s.modelMetadata),
			unary("ModelInfer", s.modelInfer),
			unary("ModelConfig", s.modelConfig),
			unary("ModelStatistics", s.modelStatistics),
			unary("RepositoryIndex", s.repositoryIndex),
			unary("RepositoryModelLoad", s.repositoryModelLoad),
			unary("RepositoryModelUnload", s.repositoryModelUnload),
			unary("SystemSharedMemoryStatus", s.sharedMemoryStatus),
			unary("SystemSharedMemoryRegister", s.sharedMemoryRegister),
			unary("SystemSharedMemoryUnregister", s.sharedMemoryUnregister),
		},
		Metadata: "inference.proto",
	}
}

func unary[Req any, PReq interface {
	*Req
	pb.Message
}](name string, h func(ctx context.Context, req PReq) (pb.Message, error)) grpc.MethodDesc {
	fullMethod := "/" + pb.ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := PReq(new(Req))
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return h(ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return h(ctx, req.(PReq))
			})
		},
	}
}

func (s *Server) serverLive(context.Context, *pb.Empty) (pb.Message, error) {
	return &pb.ServerLiveResponse{Live: true}, nil
}

func (s *Server) serverReady(context.Context, *pb.Empty) (pb.Message, error) {
	return &pb.ReadyResponse{Ready: true}, nil
}

func (s *Server) serverMetadata(context.Context, *pb.Empty) (pb.Message, error) {
	return &pb.ServerMetadataResponse{
		Name:       "echo",
		Version:    "0.1.0",
		Extensions: []string{"model_repository", "statistics", "system_shared_memory"},
	}, nil
}

// model must be called with s.mu held.
func (s *Server) model(name string) (*Model, error) {
	m, ok := s.models[name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "model %q not found", name)
	}
	return m, nil
}

func (s *Server) modelReady(_ context.Context, req *pb.ModelRequest) (pb.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[req.Name]
	return &pb.ReadyResponse{Ready: ok && m.Ready}, nil
}

func (s *Server) modelMetadata(_ context.Context, req *pb.ModelRequest) (pb.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(req.Name)
	if err != nil {
		return nil, err
	}
	return &pb.ModelMetadataResponse{
		Name:     m.Name,
		Versions: m.Versions,
		Platform: m.Platform,
		Inputs:   m.Inputs,
		Outputs:  m.Outputs,
	}, nil
}

func (s *Server) modelConfig(_ context.Context, req *pb.ModelRequest) (pb.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(req.Name)
	if err != nil {
		return nil, err
	}

	conf := &pb.ModelConfig{Name: m.Name, Platform: m.Platform, Backend: "echo"}
	for _, in := range m.Inputs {
		conf.Inputs = append(conf.Inputs, pb.NewInputConfig(in.Name, configDataType(in.Datatype), in.Shape...))
	}
	for _, out := range m.Outputs {
		conf.Outputs = append(conf.Outputs, pb.NewOutputConfig(out.Name, configDataType(out.Datatype), out.Shape...))
	}
	return &pb.ModelConfigResponse{Config: conf}, nil
}

func configDataType(datatype string) pb.ConfigDataType {
	if datatype == "BYTES" {
		return pb.TypeString
	}
	for t := pb.TypeBool; t <= pb.TypeBF16; t++ {
		if t.String() == "TYPE_"+datatype {
			return t
		}
	}
	return pb.TypeInvalid
}

func (s *Server) modelStatistics(_ context.Context, req *pb.ModelRequest) (pb.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := []string{req.Name}
	if req.Name == "" {
		names = s.modelNames()
	}
	resp := new(pb.ModelStatisticsResponse)
	for _, name := range names {
		m, err := s.model(name)
		if err != nil {
			return nil, err
		}
		resp.ModelStats = append(resp.ModelStats, &pb.ModelStatistics{
			Name:           m.Name,
			Version:        req.Version,
			LastInference:  m.stats.last,
			InferenceCount: m.stats.inferences,
			ExecutionCount: m.stats.inferences,
			InferenceStats: &pb.InferStatistics{
				Success: &pb.StatisticDuration{Count: m.stats.inferences, Ns: m.stats.successNs},
				Fail:    &pb.StatisticDuration{Count: m.stats.failures},
			},
		})
	}
	return resp, nil
}

func (s *Server) modelNames() []string {
	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) repositoryIndex(_ context.Context, req *pb.RepositoryIndexRequest) (pb.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := new(pb.RepositoryIndexResponse)
	for _, name := range s.modelNames() {
		m := s.models[name]
		if req.Ready && !m.Ready {
			continue
		}
		idx := &pb.ModelIndex{Name: m.Name, State: "READY"}
		if len(m.Versions) > 0 {
			idx.Version = m.Versions[len(m.Versions)-1]
		}
		if !m.Ready {
			idx.State, idx.Reason = "UNAVAILABLE", "unloaded"
		}
		resp.Models = append(resp.Models, idx)
	}
	return resp, nil
}

func (s *Server) setReady(name string, ready bool) (pb.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(name)
	if err != nil {
		return nil, err
	}
	m.Ready = ready
	s.log.Info("model state changed", zap.String("model", name), zap.Bool("ready", ready))
	return new(pb.Empty), nil
}

func (s *Server) repositoryModelLoad(_ context.Context, req *pb.RepositoryModelRequest) (pb.Message, error) {
	return s.setReady(req.ModelName, true)
}

func (s *Server) repositoryModelUnload(_ context.Context, req *pb.RepositoryModelRequest) (pb.Message, error) {
	return s.setReady(req.ModelName, false)
}

func (s *Server) sharedMemoryStatus(_ context.Context, req *pb.SharedMemoryName) (pb.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &pb.SharedMemoryStatusResponse{Regions: make(map[string]*pb.SharedMemoryRegion)}
	if req.Name != "" {
		r, ok := s.regions[req.Name]
		if !ok {
			return nil, status.Errorf(codes.NotFound, "region %q not registered", req.Name)
		}
		resp.Regions[req.Name] = r
		return resp, nil
	}
	for name, r := range s.regions {
		resp.Regions[name] = r
	}
	return resp, nil
}

func (s *Server) sharedMemoryRegister(_ context.Context, req *pb.SharedMemoryRegion) (pb.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Name == "" || req.Key == "" || req.ByteSize == 0 {
		return nil, status.Error(codes.InvalidArgument, "name, key and byte size are required")
	}
	if _, ok := s.regions[req.Name]; ok {
		return nil, status.Errorf(codes.AlreadyExists, "region %q already registered", req.Name)
	}
	s.regions[req.Name] = req
	return new(pb.Empty), nil
}

func (s *Server) sharedMemoryUnregister(_ context.Context, req *pb.SharedMemoryName) (pb.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Name == "" {
		s.regions = make(map[string]*pb.SharedMemoryRegion)
	} else {
		delete(s.regions, req.Name)
	}
	return new(pb.Empty), nil
}

func (s *Server) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("testserver(%d models)", len(s.models))
}
