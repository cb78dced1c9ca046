package output

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ozontech/tritonclient/pb"
	"github.com/ozontech/tritonclient/tensor"
)

var (
	ErrCountMismatch = fmt.Errorf("%w: outputs and raw contents count differ", tensor.ErrMalformed)
	ErrNoResponse    = fmt.Errorf("%w: no response", tensor.ErrMalformed)
	ErrNotFound      = errors.New("output: no such output")
	ErrElementType   = errors.New("output: element type mismatch")
)

// ModelOutput is the decoded set of named outputs of one inference response.
type ModelOutput struct {
	ModelName    string
	ModelVersion string
	ID           string
	Parameters   map[string]pb.Parameter

	outputs map[string]tensor.Tensor
}

// New decodes every output of resp. Raw contents are paired with outputs by
// position; a response without raw contents is read from inline contents.
// The first failing output aborts decoding. Of outputs sharing a name the
// last one wins.
func New(resp *pb.ModelInferResponse, opts ...tensor.DecoderOption) (*ModelOutput, error) {
	if resp == nil {
		return nil, ErrNoResponse
	}
	raw := resp.RawOutputContents
	inline := len(raw) == 0 && len(resp.Outputs) > 0
	if !inline && len(raw) != len(resp.Outputs) {
		return nil, fmt.Errorf("%w: %d outputs, %d raw contents", ErrCountMismatch, len(resp.Outputs), len(raw))
	}

	dec := tensor.NewDecoder(opts...)
	outputs := make(map[string]tensor.Tensor, len(resp.Outputs))
	for i, out := range resp.Outputs {
		if out == nil {
			return nil, fmt.Errorf("%w: output %d is empty", tensor.ErrMalformed, i)
		}
		t, err := decodeOne(dec, out, raw, i, inline)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", out.Name, err)
		}
		outputs[out.Name] = t
	}

	return &ModelOutput{
		ModelName:    resp.ModelName,
		ModelVersion: resp.ModelVersion,
		ID:           resp.ID,
		Parameters:   resp.Parameters,
		outputs:      outputs,
	}, nil
}

func decodeOne(dec *tensor.Decoder, out *pb.InferOutputTensor, raw [][]byte, i int, inline bool) (tensor.Tensor, error) {
	dt, err := tensor.ParseDataType(out.Datatype)
	if err != nil {
		return nil, err
	}
	shape, err := tensor.ShapeFromWire(out.Shape)
	if err != nil {
		return nil, err
	}
	if inline {
		return tensor.FromContents(dt, shape, out.Contents)
	}
	return dec.Decode(dt, shape, raw[i])
}

// Get borrows an output, the set keeps it.
func (o *ModelOutput) Get(name string) (tensor.Tensor, bool) {
	t, ok := o.outputs[name]
	return t, ok
}

// Pop removes an output from the set and hands it to the caller.
func (o *ModelOutput) Pop(name string) (tensor.Tensor, bool) {
	t, ok := o.outputs[name]
	if ok {
		delete(o.outputs, name)
	}
	return t, ok
}

// Into transfers the whole set to the caller, leaving o empty.
func (o *ModelOutput) Into() map[string]tensor.Tensor {
	res := o.outputs
	o.outputs = make(map[string]tensor.Tensor)
	return res
}

func (o *ModelOutput) Len() int { return len(o.outputs) }

// Names lists the outputs in lexical order.
func (o *ModelOutput) Names() []string {
	names := make([]string, 0, len(o.outputs))
	for name := range o.outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Typed borrows an output asserting its element type.
func Typed[T tensor.Element](o *ModelOutput, name string) (*tensor.Array[T], error) {
	t, ok := o.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	a, ok := tensor.As[T](t)
	if !ok {
		return nil, fmt.Errorf("%w: %q holds %s", ErrElementType, name, t.DataType())
	}
	return a, nil
}
