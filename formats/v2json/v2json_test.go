package v2json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozontech/tritonclient/output"
	"github.com/ozontech/tritonclient/pb"
	"github.com/ozontech/tritonclient/tensor"
)

func TestUnmarshalRequest(t *testing.T) {
	t.Parallel()
	a := assert.New(t)
	r := require.New(t)

	body := []byte(`{
		"id": "42",
		"parameters": {"priority": 2, "scale": 0.5, "trace": true, "tag": "x"},
		"inputs": [
			{"data": [[1, 2, 3], [4, 5, 6]], "name": "INPUT0", "shape": [2, 3], "datatype": "INT32"},
			{"name": "INPUT1", "shape": [2], "datatype": "BYTES", "data": ["a", "bc"], "parameters": {"binary_data_size": 11}},
			{"name": "INPUT2", "shape": [], "datatype": "BOOL", "data": true}
		],
		"outputs": [{"name": "OUTPUT0", "parameters": {"binary_data": false}}],
		"unknown": {"nested": [1, {"a": null}]}
	}`)

	in, err := UnmarshalRequest("echo", body)
	r.NoError(err)
	req, err := in.Build()
	r.NoError(err)

	a.Equal("echo", req.ModelName)
	a.Equal("42", req.ID)
	a.Equal(map[string]pb.Parameter{
		"priority": pb.Int64Param(2),
		"scale":    pb.DoubleParam(0.5),
		"trace":    pb.BoolParam(true),
		"tag":      pb.StringParam("x"),
	}, req.Parameters)

	r.Len(req.Inputs, 3)
	a.Equal("INT32", req.Inputs[0].Datatype)
	a.Equal([]int64{2, 3}, req.Inputs[0].Shape)
	a.Equal([]int32{1, 2, 3, 4, 5, 6}, req.Inputs[0].Contents.IntContents)
	a.Equal([][]byte{[]byte("a"), []byte("bc")}, req.Inputs[1].Contents.BytesContents)
	a.Equal(map[string]pb.Parameter{"binary_data_size": pb.Int64Param(11)}, req.Inputs[1].Parameters)
	a.Equal([]bool{true}, req.Inputs[2].Contents.BoolContents)
	a.Empty(req.Inputs[2].Shape)

	r.Len(req.Outputs, 1)
	a.Equal("OUTPUT0", req.Outputs[0].Name)
	a.Equal(pb.BoolParam(false), req.Outputs[0].Parameters["binary_data"])
}

func TestUnmarshalRequestErrors(t *testing.T) {
	t.Parallel()

	type testCase struct {
		name string
		body string
		err  error
	}
	makeTests := func() []testCase {
		return []testCase{
			{"not json", `{"id":`, ErrFormat},
			{"bad element", `{"inputs":[{"name":"a","shape":[1],"datatype":"INT8","data":["x"]}]}`, ErrFormat},
			{"overflow", `{"inputs":[{"name":"a","shape":[1],"datatype":"UINT8","data":[300]}]}`, ErrFormat},
			{"no data", `{"inputs":[{"name":"a","shape":[1],"datatype":"INT8"}]}`, ErrFormat},
			{"shape", `{"inputs":[{"name":"a","shape":[3],"datatype":"INT8","data":[1,2]}]}`, tensor.ErrShapeMismatch},
			{"datatype", `{"inputs":[{"name":"a","shape":[1],"datatype":"INT7","data":[1]}]}`, tensor.ErrUnknownType},
			{"half", `{"inputs":[{"name":"a","shape":[1],"datatype":"FP16","data":[1]}]}`, tensor.ErrUnsupportedType},
			{"nested parameter", `{"parameters":{"a":{"b":1}}}`, ErrFormat},
		}
	}

	for _, tc := range makeTests() {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := UnmarshalRequest("m", []byte(tc.body))
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestMarshalResponse(t *testing.T) {
	t.Parallel()
	r := require.New(t)

	f := tensor.Must(tensor.New([]int{2, 2}, []float32{1.5, -2, 0, 4}))
	s := tensor.Vector([]byte("ok"), []byte(`"q"`))
	fRaw, err := tensor.MarshalRaw(f)
	r.NoError(err)
	sRaw, err := tensor.MarshalRaw(s)
	r.NoError(err)

	out, err := output.New(&pb.ModelInferResponse{
		ModelName:    "echo",
		ModelVersion: "1",
		ID:           "42",
		Parameters:   map[string]pb.Parameter{"z": pb.Uint64Param(7), "a": pb.StringParam("v")},
		Outputs: []*pb.InferOutputTensor{
			{Name: "scores", Datatype: "FP32", Shape: []int64{2, 2}},
			{Name: "labels", Datatype: "BYTES", Shape: []int64{2}},
		},
		RawOutputContents: [][]byte{fRaw, sRaw},
	})
	r.NoError(err)

	b, err := MarshalResponse(out)
	r.NoError(err)
	assert.JSONEq(t, `{
		"model_name": "echo",
		"model_version": "1",
		"id": "42",
		"parameters": {"a": "v", "z": 7},
		"outputs": [
			{"name": "labels", "datatype": "BYTES", "shape": [2], "data": ["ok", "\"q\""]},
			{"name": "scores", "datatype": "FP32", "shape": [2, 2], "data": [1.5, -2, 0, 4]}
		]
	}`, string(b))
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	r := require.New(t)

	body := []byte(`{"inputs":[{"name":"x","shape":[3],"datatype":"UINT16","data":[1,2,65535]}]}`)
	in, err := UnmarshalRequest("m", body)
	r.NoError(err)
	req, err := in.Raw(true).Build()
	r.NoError(err)

	out, err := output.New(&pb.ModelInferResponse{
		ModelName: "m",
		Outputs: []*pb.InferOutputTensor{{
			Name: "x", Datatype: req.Inputs[0].Datatype, Shape: req.Inputs[0].Shape,
		}},
		RawOutputContents: req.RawInputContents,
	})
	r.NoError(err)

	b, err := MarshalResponse(out)
	r.NoError(err)
	assert.JSONEq(t,
		`{"model_name":"m","outputs":[{"name":"x","datatype":"UINT16","shape":[3],"data":[1,2,65535]}]}`,
		string(b))
}
