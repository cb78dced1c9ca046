package input

import (
	"errors"
	"fmt"

	"github.com/ozontech/tritonclient/pb"
	"github.com/ozontech/tritonclient/tensor"
)

var (
	ErrNoModel        = errors.New("input: model name is empty")
	ErrNoName         = errors.New("input: input name is empty")
	ErrDuplicateInput = errors.New("input: duplicate input name")
	ErrNoInputs       = errors.New("input: no inputs")
)

// InferInput is one named input of an inference request. It holds either an
// array or bytes already in raw contents layout.
type InferInput struct {
	name     string
	datatype tensor.DataType
	shape    []int
	tensor   tensor.Tensor
	raw      []byte
	params   map[string]pb.Parameter
}

// New makes an input declared with the array's own data type.
func New(name string, t tensor.Tensor) *InferInput {
	return &InferInput{name: name, datatype: t.DataType(), shape: t.Shape(), tensor: t}
}

// NewRaw makes an input from pre-encoded raw contents, for instance FP16
// data the caller packed itself. Requests holding one are sent in raw mode.
func NewRaw(name string, dt tensor.DataType, shape []int, raw []byte) *InferInput {
	return &InferInput{name: name, datatype: dt, shape: shape, raw: raw}
}

// DataType overrides the declared type. Building fails when it differs
// from the array's.
func (in *InferInput) DataType(dt tensor.DataType) *InferInput {
	in.datatype = dt
	return in
}

func (in *InferInput) Parameter(key string, p pb.Parameter) *InferInput {
	if in.params == nil {
		in.params = make(map[string]pb.Parameter)
	}
	in.params[key] = p
	return in
}

func (in *InferInput) Name() string { return in.name }

func (in *InferInput) descriptor() *pb.InferInputTensor {
	return &pb.InferInputTensor{
		Name:       in.name,
		Datatype:   in.datatype.String(),
		Shape:      tensor.ShapeToWire(in.shape),
		Parameters: in.params,
	}
}

func (in *InferInput) rawContents() ([]byte, error) {
	if in.tensor == nil {
		n, err := tensor.NumElements(in.shape)
		if err != nil {
			return nil, err
		}
		if size := in.datatype.Size(); size != 0 && len(in.raw) != n*size {
			return nil, fmt.Errorf(
				"%w: %d bytes for %d %s elements",
				tensor.ErrShapeMismatch, len(in.raw), n, in.datatype,
			)
		}
		return in.raw, nil
	}
	if got := in.tensor.DataType(); got != in.datatype {
		return nil, fmt.Errorf("%w: declared %s, array holds %s", tensor.ErrTypeMismatch, in.datatype, got)
	}
	return tensor.MarshalRaw(in.tensor)
}

// ModelInput collects everything of one inference request.
type ModelInput struct {
	model   string
	version string
	id      string
	params  map[string]pb.Parameter
	inputs  []*InferInput
	outputs []*pb.InferRequestedOutputTensor
	raw     bool
}

func NewModelInput(model string) *ModelInput {
	return &ModelInput{model: model}
}

func (m *ModelInput) Model() string { return m.model }

func (m *ModelInput) Version(v string) *ModelInput {
	m.version = v
	return m
}

func (m *ModelInput) ID(id string) *ModelInput {
	m.id = id
	return m
}

func (m *ModelInput) Parameter(key string, p pb.Parameter) *ModelInput {
	if m.params == nil {
		m.params = make(map[string]pb.Parameter)
	}
	m.params[key] = p
	return m
}

func (m *ModelInput) Input(in ...*InferInput) *ModelInput {
	m.inputs = append(m.inputs, in...)
	return m
}

// Output requests an output by name. Without requested outputs the server
// returns all of them.
func (m *ModelInput) Output(name string, params map[string]pb.Parameter) *ModelInput {
	m.outputs = append(m.outputs, &pb.InferRequestedOutputTensor{Name: name, Parameters: params})
	return m
}

// Raw sends every input in raw_input_contents instead of typed contents.
func (m *ModelInput) Raw(raw bool) *ModelInput {
	m.raw = raw
	return m
}

// Build validates the request and encodes all inputs.
func (m *ModelInput) Build() (*pb.ModelInferRequest, error) {
	if m.model == "" {
		return nil, ErrNoModel
	}
	if len(m.inputs) == 0 {
		return nil, ErrNoInputs
	}

	raw := m.raw
	seen := make(map[string]struct{}, len(m.inputs))
	for _, in := range m.inputs {
		if in.name == "" {
			return nil, ErrNoName
		}
		if _, ok := seen[in.name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateInput, in.name)
		}
		seen[in.name] = struct{}{}
		raw = raw || in.tensor == nil
	}

	req := &pb.ModelInferRequest{
		ModelName:    m.model,
		ModelVersion: m.version,
		ID:           m.id,
		Parameters:   m.params,
		Inputs:       make([]*pb.InferInputTensor, 0, len(m.inputs)),
		Outputs:      m.outputs,
	}
	for _, in := range m.inputs {
		desc := in.descriptor()
		if raw {
			b, err := in.rawContents()
			if err != nil {
				return nil, fmt.Errorf("input %q: %w", in.name, err)
			}
			req.RawInputContents = append(req.RawInputContents, b)
		} else {
			c, err := tensor.Encode(in.datatype, in.tensor)
			if err != nil {
				return nil, fmt.Errorf("input %q: %w", in.name, err)
			}
			desc.Contents = c
		}
		req.Inputs = append(req.Inputs, desc)
	}
	return req, nil
}
