// Package v2json reads and writes the JSON inference bodies of the KServe v2
// REST protocol, so that requests can be kept in files and replayed over grpc.
package v2json

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mailru/easyjson/jlexer"

	"github.com/ozontech/tritonclient/input"
	"github.com/ozontech/tritonclient/pb"
	"github.com/ozontech/tritonclient/tensor"
)

var ErrFormat = errors.New("v2json: bad request body")

type jsonInput struct {
	name     string
	datatype string
	shape    []int
	params   map[string]pb.Parameter
	data     []byte
}

// UnmarshalRequest parses a v2 inference request body into a request for
// model. Tensor data may be flat or nested row-major arrays.
func UnmarshalRequest(model string, b []byte) (*input.ModelInput, error) {
	req := input.NewModelInput(model)
	in := jlexer.Lexer{Data: b}

	var inputs []jsonInput
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		switch key {
		case "id":
			req.ID(in.String())
		case "parameters":
			for k, v := range readParams(&in) {
				req.Parameter(k, v)
			}
		case "inputs":
			in.Delim('[')
			for !in.IsDelim(']') {
				inputs = append(inputs, readInput(&in))
				in.WantComma()
			}
			in.Delim(']')
		case "outputs":
			in.Delim('[')
			for !in.IsDelim(']') {
				name, params := readOutput(&in)
				req.Output(name, params)
				in.WantComma()
			}
			in.Delim(']')
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	in.Consumed()
	if err := in.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	for _, ji := range inputs {
		ii, err := ji.build()
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", ji.name, err)
		}
		req.Input(ii)
	}
	return req, nil
}

func readInput(in *jlexer.Lexer) jsonInput {
	var ji jsonInput
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		switch key {
		case "name":
			ji.name = in.String()
		case "datatype":
			ji.datatype = in.String()
		case "shape":
			in.Delim('[')
			for !in.IsDelim(']') {
				ji.shape = append(ji.shape, in.Int())
				in.WantComma()
			}
			in.Delim(']')
		case "parameters":
			ji.params = readParams(in)
		case "data":
			ji.data = in.Raw()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	return ji
}

func readOutput(in *jlexer.Lexer) (name string, params map[string]pb.Parameter) {
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		switch key {
		case "name":
			name = in.String()
		case "parameters":
			params = readParams(in)
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	return name, params
}

// readParams maps JSON scalars onto parameters. Numbers without a fraction
// or exponent become Int64Param.
func readParams(in *jlexer.Lexer) map[string]pb.Parameter {
	if in.IsNull() {
		in.Skip()
		return nil
	}
	params := make(map[string]pb.Parameter)
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.String()
		in.WantColon()
		switch in.CurrentToken() {
		case jlexer.TokenBool:
			params[key] = pb.BoolParam(in.Bool())
		case jlexer.TokenString:
			params[key] = pb.StringParam(in.String())
		case jlexer.TokenNumber:
			num := in.JsonNumber()
			if strings.ContainsAny(string(num), ".eE") {
				f, err := num.Float64()
				in.AddError(err)
				params[key] = pb.DoubleParam(f)
			} else {
				i, err := num.Int64()
				in.AddError(err)
				params[key] = pb.Int64Param(i)
			}
		default:
			in.AddError(fmt.Errorf("parameter %q: only scalars are supported", key))
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	return params
}

func (ji jsonInput) build() (*input.InferInput, error) {
	dt, err := tensor.ParseDataType(ji.datatype)
	if err != nil {
		return nil, err
	}
	if ji.data == nil {
		return nil, fmt.Errorf("%w: no data", ErrFormat)
	}

	in := jlexer.Lexer{Data: ji.data}
	var t tensor.Tensor
	switch dt {
	case tensor.Bool:
		t, err = readArray(&in, ji.shape, (*jlexer.Lexer).Bool)
	case tensor.Int8:
		t, err = readArray(&in, ji.shape, (*jlexer.Lexer).Int8)
	case tensor.Int16:
		t, err = readArray(&in, ji.shape, (*jlexer.Lexer).Int16)
	case tensor.Int32:
		t, err = readArray(&in, ji.shape, (*jlexer.Lexer).Int32)
	case tensor.Int64:
		t, err = readArray(&in, ji.shape, (*jlexer.Lexer).Int64)
	case tensor.Uint8:
		t, err = readArray(&in, ji.shape, (*jlexer.Lexer).Uint8)
	case tensor.Uint16:
		t, err = readArray(&in, ji.shape, (*jlexer.Lexer).Uint16)
	case tensor.Uint32:
		t, err = readArray(&in, ji.shape, (*jlexer.Lexer).Uint32)
	case tensor.Uint64:
		t, err = readArray(&in, ji.shape, (*jlexer.Lexer).Uint64)
	case tensor.FP32:
		t, err = readArray(&in, ji.shape, (*jlexer.Lexer).Float32)
	case tensor.FP64:
		t, err = readArray(&in, ji.shape, (*jlexer.Lexer).Float64)
	case tensor.Bytes:
		t, err = readArray(&in, ji.shape, func(in *jlexer.Lexer) []byte {
			return []byte(in.String())
		})
	default:
		return nil, fmt.Errorf("%w: %s has no JSON form", tensor.ErrUnsupportedType, dt)
	}
	if err != nil {
		return nil, err
	}

	ii := input.New(ji.name, t)
	for k, v := range ji.params {
		ii.Parameter(k, v)
	}
	return ii, nil
}

func readArray[T tensor.Element](in *jlexer.Lexer, shape []int, read func(*jlexer.Lexer) T) (tensor.Tensor, error) {
	var data []T
	readFlat(in, func(in *jlexer.Lexer) {
		data = append(data, read(in))
	})
	in.Consumed()
	if err := in.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if data == nil {
		data = []T{}
	}
	a, err := tensor.New(shape, data)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// readFlat visits the scalars of arbitrarily nested arrays in order.
func readFlat(in *jlexer.Lexer, elem func(*jlexer.Lexer)) {
	if in.CurrentToken() != jlexer.TokenDelim {
		elem(in)
		return
	}
	in.Delim('[')
	for !in.IsDelim(']') {
		readFlat(in, elem)
		in.WantComma()
	}
	in.Delim(']')
}
