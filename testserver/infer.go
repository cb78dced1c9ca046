package testserver

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ozontech/tritonclient/pb"
	"github.com/ozontech/tritonclient/tensor"
)

func (s *Server) modelInfer(ctx context.Context, req *pb.ModelInferRequest) (pb.Message, error) {
	start := time.Now()

	s.mu.Lock()
	m, err := s.model(req.ModelName)
	if err == nil && !m.Ready {
		err = status.Errorf(codes.Unavailable, "model %q is not ready", req.ModelName)
	}
	var outputs []*pb.TensorMetadata
	if m != nil {
		outputs = m.Outputs
	}
	delay := s.delay
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, status.FromContextError(ctx.Err()).Err()
		}
	}

	resp, err := echo(req, outputs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		m.stats.failures++
		s.log.Debug("inference failed", zap.String("model", req.ModelName), zap.Error(err))
		return nil, err
	}
	m.stats.inferences++
	m.stats.successNs += uint64(time.Since(start))
	m.stats.last = uint64(time.Now().UnixMilli())
	return resp, nil
}

// echo returns every input as a raw output. Output i takes the name of the
// model's output i when the model declares one.
func echo(req *pb.ModelInferRequest, declared []*pb.TensorMetadata) (*pb.ModelInferResponse, error) {
	raw := req.RawInputContents
	if len(raw) > 0 && len(raw) != len(req.Inputs) {
		return nil, status.Errorf(codes.InvalidArgument,
			"%d inputs, %d raw input contents", len(req.Inputs), len(raw))
	}

	var requested []string
	for _, out := range req.Outputs {
		requested = append(requested, out.Name)
	}

	resp := &pb.ModelInferResponse{
		ModelName:    req.ModelName,
		ModelVersion: req.ModelVersion,
		ID:           req.ID,
	}
	for i, in := range req.Inputs {
		name := in.Name
		if i < len(declared) {
			name = declared[i].Name
		}
		if len(requested) > 0 && !slices.Contains(requested, name) {
			continue
		}

		data, err := inputData(in, raw, i)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "input %q: %v", in.Name, err)
		}
		resp.Outputs = append(resp.Outputs, &pb.InferOutputTensor{
			Name:     name,
			Datatype: in.Datatype,
			Shape:    in.Shape,
		})
		resp.RawOutputContents = append(resp.RawOutputContents, data)
	}
	return resp, nil
}

func inputData(in *pb.InferInputTensor, raw [][]byte, i int) ([]byte, error) {
	if len(raw) > 0 {
		return raw[i], nil
	}
	dt, err := tensor.ParseDataType(in.Datatype)
	if err != nil {
		return nil, err
	}
	shape, err := tensor.ShapeFromWire(in.Shape)
	if err != nil {
		return nil, err
	}
	t, err := tensor.FromContents(dt, shape, in.Contents)
	if err != nil {
		return nil, err
	}
	return tensor.MarshalRaw(t)
}
