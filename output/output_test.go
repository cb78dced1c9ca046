package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozontech/tritonclient/pb"
	"github.com/ozontech/tritonclient/tensor"
)

func rawOf(t *testing.T, tt tensor.Tensor) []byte {
	t.Helper()
	raw, err := tensor.MarshalRaw(tt)
	require.NoError(t, err)
	return raw
}

func TestNew(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	scores := tensor.Must(tensor.New([]int{1, 2}, []float32{0.25, 0.75}))
	labels := tensor.Vector([]byte("cat"), []byte("dog"))
	resp := &pb.ModelInferResponse{
		ModelName:    "classifier",
		ModelVersion: "3",
		ID:           "42",
		Outputs: []*pb.InferOutputTensor{
			{Name: "scores", Datatype: "FP32", Shape: []int64{1, 2}},
			{Name: "labels", Datatype: "BYTES", Shape: []int64{2}},
		},
		RawOutputContents: [][]byte{rawOf(t, scores), rawOf(t, labels)},
	}

	o, err := New(resp)
	a.NoError(err)
	a.Equal("classifier", o.ModelName)
	a.Equal("3", o.ModelVersion)
	a.Equal("42", o.ID)
	a.Equal([]string{"labels", "scores"}, o.Names())

	got, err := Typed[float32](o, "scores")
	a.NoError(err)
	a.Equal(scores, got)

	_, err = Typed[int32](o, "scores")
	a.ErrorIs(err, ErrElementType)
	_, err = Typed[int32](o, "missing")
	a.ErrorIs(err, ErrNotFound)

	l, ok := o.Pop("labels")
	a.True(ok)
	a.Equal(labels, l)
	_, ok = o.Get("labels")
	a.False(ok)
	a.Equal(1, o.Len())

	all := o.Into()
	a.Len(all, 1)
	a.Equal(0, o.Len())
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	type testCase struct {
		name string
		resp *pb.ModelInferResponse
		err  error
	}
	makeTests := func() []testCase {
		return []testCase{
			{
				name: "nil response",
				err:  ErrNoResponse,
			},
			{
				name: "nil output",
				resp: &pb.ModelInferResponse{
					Outputs:           []*pb.InferOutputTensor{nil},
					RawOutputContents: [][]byte{{1}},
				},
				err: tensor.ErrMalformed,
			},
			{
				name: "count mismatch",
				resp: &pb.ModelInferResponse{
					Outputs: []*pb.InferOutputTensor{
						{Name: "a", Datatype: "INT8", Shape: []int64{1}},
						{Name: "b", Datatype: "INT8", Shape: []int64{1}},
					},
					RawOutputContents: [][]byte{{1}},
				},
				err: ErrCountMismatch,
			},
			{
				name: "negative dim",
				resp: &pb.ModelInferResponse{
					Outputs:           []*pb.InferOutputTensor{{Name: "a", Datatype: "INT8", Shape: []int64{-1}}},
					RawOutputContents: [][]byte{{1}},
				},
				err: tensor.ErrNegativeDim,
			},
			{
				name: "unknown type",
				resp: &pb.ModelInferResponse{
					Outputs:           []*pb.InferOutputTensor{{Name: "a", Datatype: "COMPLEX64", Shape: []int64{1}}},
					RawOutputContents: [][]byte{{1}},
				},
				err: tensor.ErrUnknownType,
			},
			{
				name: "second output broken",
				resp: &pb.ModelInferResponse{
					Outputs: []*pb.InferOutputTensor{
						{Name: "a", Datatype: "INT8", Shape: []int64{1}},
						{Name: "b", Datatype: "INT32", Shape: []int64{2}},
					},
					RawOutputContents: [][]byte{{1}, {1, 2, 3}},
				},
				err: tensor.ErrShapeMismatch,
			},
		}
	}

	for _, tc := range makeTests() {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := assert.New(t)

			o, err := New(tc.resp)
			a.Nil(o)
			a.ErrorIs(err, tc.err)
		})
	}
}

func TestDuplicateNamesLastWins(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	o, err := New(&pb.ModelInferResponse{
		Outputs: []*pb.InferOutputTensor{
			{Name: "x", Datatype: "UINT8", Shape: []int64{1}},
			{Name: "x", Datatype: "UINT8", Shape: []int64{1}},
		},
		RawOutputContents: [][]byte{{1}, {2}},
	})
	a.NoError(err)
	x, err := Typed[uint8](o, "x")
	a.NoError(err)
	a.Equal([]uint8{2}, x.Data())
}

func TestInlineContents(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	o, err := New(&pb.ModelInferResponse{
		Outputs: []*pb.InferOutputTensor{{
			Name:     "ids",
			Datatype: "INT16",
			Shape:    []int64{3},
			Contents: &pb.InferTensorContents{IntContents: []int32{-1, 0, 300}},
		}},
	})
	a.NoError(err)
	ids, err := Typed[int16](o, "ids")
	a.NoError(err)
	a.Equal([]int16{-1, 0, 300}, ids.Data())
}

func TestHalfPrecisionOption(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	resp := &pb.ModelInferResponse{
		Outputs:           []*pb.InferOutputTensor{{Name: "h", Datatype: "FP16", Shape: []int64{1}}},
		RawOutputContents: [][]byte{{0x00, 0x3C}},
	}
	o, err := New(resp, tensor.WithHalfPrecision(tensor.HalfIEEE))
	a.NoError(err)
	h, err := Typed[float32](o, "h")
	a.NoError(err)
	a.Equal([]float32{1}, h.Data())

	a.Equal(0, must(New(&pb.ModelInferResponse{})).Len())
}

func must(o *ModelOutput, err error) *ModelOutput {
	if err != nil {
		panic(err)
	}
	return o
}
