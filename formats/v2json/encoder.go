package v2json

import (
	"fmt"
	"sort"

	"github.com/mailru/easyjson/jwriter"

	"github.com/ozontech/tritonclient/output"
	"github.com/ozontech/tritonclient/pb"
	"github.com/ozontech/tritonclient/tensor"
)

// MarshalResponse renders decoded outputs as a v2 inference response body.
// Output data is flat, in row-major order; BYTES elements are strings.
func MarshalResponse(out *output.ModelOutput) ([]byte, error) {
	w := jwriter.Writer{}

	w.RawString(`{"model_name":`)
	w.String(out.ModelName)
	if out.ModelVersion != "" {
		w.RawString(`,"model_version":`)
		w.String(out.ModelVersion)
	}
	if out.ID != "" {
		w.RawString(`,"id":`)
		w.String(out.ID)
	}
	if len(out.Parameters) > 0 {
		w.RawString(`,"parameters":`)
		if err := writeParams(&w, out.Parameters); err != nil {
			return nil, err
		}
	}

	w.RawString(`,"outputs":[`)
	for i, name := range out.Names() {
		if i > 0 {
			w.RawByte(',')
		}
		t, _ := out.Get(name)
		if err := writeTensor(&w, name, t); err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
	}
	w.RawString(`]}`)
	return w.BuildBytes()
}

func writeTensor(w *jwriter.Writer, name string, t tensor.Tensor) error {
	w.RawString(`{"name":`)
	w.String(name)
	w.RawString(`,"datatype":`)
	w.String(t.DataType().String())
	w.RawString(`,"shape":[`)
	for i, d := range t.Shape() {
		if i > 0 {
			w.RawByte(',')
		}
		w.Int(d)
	}
	w.RawString(`],"data":`)

	switch a := t.(type) {
	case *tensor.Array[bool]:
		writeArray(w, a, w.Bool)
	case *tensor.Array[int8]:
		writeArray(w, a, w.Int8)
	case *tensor.Array[int16]:
		writeArray(w, a, w.Int16)
	case *tensor.Array[int32]:
		writeArray(w, a, w.Int32)
	case *tensor.Array[int64]:
		writeArray(w, a, w.Int64)
	case *tensor.Array[uint8]:
		writeArray(w, a, w.Uint8)
	case *tensor.Array[uint16]:
		writeArray(w, a, w.Uint16)
	case *tensor.Array[uint32]:
		writeArray(w, a, w.Uint32)
	case *tensor.Array[uint64]:
		writeArray(w, a, w.Uint64)
	case *tensor.Array[float32]:
		writeArray(w, a, w.Float32)
	case *tensor.Array[float64]:
		writeArray(w, a, w.Float64)
	case *tensor.Array[[]byte]:
		writeArray(w, a, func(b []byte) { w.String(string(b)) })
	default:
		return fmt.Errorf("%w: %T", tensor.ErrUnsupportedType, t)
	}
	w.RawByte('}')
	return nil
}

func writeArray[T tensor.Element](w *jwriter.Writer, a *tensor.Array[T], write func(T)) {
	w.RawByte('[')
	for i, v := range a.Data() {
		if i > 0 {
			w.RawByte(',')
		}
		write(v)
	}
	w.RawByte(']')
}

func writeParams(w *jwriter.Writer, params map[string]pb.Parameter) error {
	w.RawByte('{')
	first := true
	for _, k := range sortedKeys(params) {
		if !first {
			w.RawByte(',')
		}
		first = false
		w.String(k)
		w.RawByte(':')
		switch v := params[k].(type) {
		case pb.BoolParam:
			w.Bool(bool(v))
		case pb.Int64Param:
			w.Int64(int64(v))
		case pb.Uint64Param:
			w.Uint64(uint64(v))
		case pb.DoubleParam:
			w.Float64(float64(v))
		case pb.StringParam:
			w.String(string(v))
		case pb.BytesParam:
			w.Base64Bytes(v)
		default:
			return fmt.Errorf("%w: parameter %q of type %T", pb.ErrParameterType, k, v)
		}
	}
	w.RawByte('}')
	return nil
}

func sortedKeys(params map[string]pb.Parameter) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
