package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozontech/tritonclient/pb"
	"github.com/ozontech/tritonclient/tensor"
)

func TestBuildInline(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	ids := tensor.Must(tensor.New([]int{1, 2}, []int16{7, -7}))
	req, err := NewModelInput("bert").
		Version("2").
		ID("r1").
		Parameter("priority", pb.Uint64Param(1)).
		Input(New("ids", ids).Parameter("shm", pb.BoolParam(false))).
		Output("logits", nil).
		Build()
	a.NoError(err)

	a.Equal(&pb.ModelInferRequest{
		ModelName:    "bert",
		ModelVersion: "2",
		ID:           "r1",
		Parameters:   map[string]pb.Parameter{"priority": pb.Uint64Param(1)},
		Inputs: []*pb.InferInputTensor{{
			Name:       "ids",
			Datatype:   "INT16",
			Shape:      []int64{1, 2},
			Parameters: map[string]pb.Parameter{"shm": pb.BoolParam(false)},
			Contents:   &pb.InferTensorContents{IntContents: []int32{7, -7}},
		}},
		Outputs: []*pb.InferRequestedOutputTensor{{Name: "logits"}},
	}, req)
}

func TestBuildRaw(t *testing.T) {
	t.Parallel()
	r := require.New(t)

	half := NewRaw("h", tensor.FP16, []int{2}, []byte{0x00, 0x3C, 0x00, 0xC0})
	text := New("text", tensor.Vector([]byte("hi")))

	req, err := NewModelInput("m").Input(text, half).Build()
	r.NoError(err)
	r.Len(req.RawInputContents, 2)
	r.Nil(req.Inputs[0].Contents)
	r.Equal("BYTES", req.Inputs[0].Datatype)
	r.Equal("FP16", req.Inputs[1].Datatype)
	r.Equal([]byte{0, 0, 0, 2, 'h', 'i'}, req.RawInputContents[0])

	back, err := tensor.Decode(tensor.Bytes, []int{1}, req.RawInputContents[0])
	r.NoError(err)
	r.Equal(text.tensor, back)

	req, err = NewModelInput("m").Raw(true).Input(New("f", tensor.Vector[float64](1.5))).Build()
	r.NoError(err)
	r.Len(req.RawInputContents, 1)
	r.Len(req.RawInputContents[0], 8)
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	type testCase struct {
		name  string
		input *ModelInput
		err   error
	}
	makeTests := func() []testCase {
		v := tensor.Vector[int32](1)
		return []testCase{
			{"no model", NewModelInput("").Input(New("a", v)), ErrNoModel},
			{"no inputs", NewModelInput("m"), ErrNoInputs},
			{"no name", NewModelInput("m").Input(New("", v)), ErrNoName},
			{"duplicate", NewModelInput("m").Input(New("a", v), New("a", v)), ErrDuplicateInput},
			{"type mismatch", NewModelInput("m").Input(New("a", v).DataType(tensor.Int64)), tensor.ErrTypeMismatch},
			{"raw type mismatch", NewModelInput("m").Raw(true).Input(New("a", v).DataType(tensor.FP32)), tensor.ErrTypeMismatch},
			{"raw length", NewModelInput("m").Input(NewRaw("a", tensor.FP32, []int{2}, make([]byte, 4))), tensor.ErrShapeMismatch},
			{"half inline", NewModelInput("m").Input(New("a", tensor.Vector[float32](1)).DataType(tensor.FP16)), tensor.ErrUnsupportedType},
		}
	}

	for _, tc := range makeTests() {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := assert.New(t)

			req, err := tc.input.Build()
			a.Nil(req)
			a.ErrorIs(err, tc.err)
		})
	}
}
