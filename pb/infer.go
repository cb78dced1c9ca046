package pb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// InferTensorContents carries tensor data inline, one typed list per element kind.
type InferTensorContents struct {
	BoolContents   []bool
	IntContents    []int32
	Int64Contents  []int64
	UintContents   []uint32
	Uint64Contents []uint64
	Fp32Contents   []float32
	Fp64Contents   []float64
	BytesContents  [][]byte
}

func (m *InferTensorContents) Reset() { *m = InferTensorContents{} }

func (m *InferTensorContents) MarshalAppend(b []byte) ([]byte, error) {
	b = appendBools(b, 1, m.BoolContents)
	b = appendInt32s(b, 2, m.IntContents)
	b = appendInt64s(b, 3, m.Int64Contents)
	b = appendUint32s(b, 4, m.UintContents)
	b = appendUint64s(b, 5, m.Uint64Contents)
	b = appendFloat32s(b, 6, m.Fp32Contents)
	b = appendFloat64s(b, 7, m.Fp64Contents)
	for _, v := range m.BytesContents {
		b = appendBytes(b, 8, v)
	}
	return b, nil
}

func (m *InferTensorContents) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readBools(typ, b, &m.BoolContents)
		case 2:
			return readInt32s(typ, b, &m.IntContents)
		case 3:
			return readInt64s(typ, b, &m.Int64Contents)
		case 4:
			return readUint32s(typ, b, &m.UintContents)
		case 5:
			return readUint64s(typ, b, &m.Uint64Contents)
		case 6:
			return readFloat32s(typ, b, &m.Fp32Contents)
		case 7:
			return readFloat64s(typ, b, &m.Fp64Contents)
		case 8:
			v, n, err := readBytes(typ, b)
			m.BytesContents = append(m.BytesContents, v)
			return n, err
		}
		return 0, nil
	})
}

// InferInputTensor describes one request input.
type InferInputTensor struct {
	Name       string
	Datatype   string
	Shape      []int64
	Parameters map[string]Parameter
	Contents   *InferTensorContents
}

func (m *InferInputTensor) Reset() { *m = InferInputTensor{} }

func (m *InferInputTensor) MarshalAppend(b []byte) ([]byte, error) {
	return appendTensor(b, m.Name, m.Datatype, m.Shape, m.Parameters, m.Contents)
}

func (m *InferInputTensor) Unmarshal(b []byte) error {
	m.Reset()
	return readTensor(b, &m.Name, &m.Datatype, &m.Shape, &m.Parameters, &m.Contents)
}

// InferOutputTensor describes one response output. Its data is either in
// Contents or in the raw_output_contents entry at the same position.
type InferOutputTensor struct {
	Name       string
	Datatype   string
	Shape      []int64
	Parameters map[string]Parameter
	Contents   *InferTensorContents
}

func (m *InferOutputTensor) Reset() { *m = InferOutputTensor{} }

func (m *InferOutputTensor) MarshalAppend(b []byte) ([]byte, error) {
	return appendTensor(b, m.Name, m.Datatype, m.Shape, m.Parameters, m.Contents)
}

func (m *InferOutputTensor) Unmarshal(b []byte) error {
	m.Reset()
	return readTensor(b, &m.Name, &m.Datatype, &m.Shape, &m.Parameters, &m.Contents)
}

// input and output tensors share the field layout
func appendTensor(
	b []byte, name, datatype string, shape []int64,
	params map[string]Parameter, contents *InferTensorContents,
) ([]byte, error) {
	b = appendString(b, 1, name)
	b = appendString(b, 2, datatype)
	b = appendInt64s(b, 3, shape)
	b, err := inferParams.appendParams(b, 4, params)
	if err != nil {
		return b, err
	}
	if contents != nil {
		return appendMessage(b, 5, contents)
	}
	return b, nil
}

func readTensor(
	b []byte, name, datatype *string, shape *[]int64,
	params *map[string]Parameter, contents **InferTensorContents,
) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, name)
		case 2:
			return readString(typ, b, datatype)
		case 3:
			return readInt64s(typ, b, shape)
		case 4:
			return inferParams.readParams(typ, b, params)
		case 5:
			*contents = new(InferTensorContents)
			return readMessage(typ, b, *contents)
		}
		return 0, nil
	})
}

// InferRequestedOutputTensor names an output the caller wants back.
type InferRequestedOutputTensor struct {
	Name       string
	Parameters map[string]Parameter
}

func (m *InferRequestedOutputTensor) Reset() { *m = InferRequestedOutputTensor{} }

func (m *InferRequestedOutputTensor) MarshalAppend(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.Name)
	return inferParams.appendParams(b, 2, m.Parameters)
}

func (m *InferRequestedOutputTensor) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Name)
		case 2:
			return inferParams.readParams(typ, b, &m.Parameters)
		}
		return 0, nil
	})
}

type ModelInferRequest struct {
	ModelName        string
	ModelVersion     string
	ID               string
	Parameters       map[string]Parameter
	Inputs           []*InferInputTensor
	Outputs          []*InferRequestedOutputTensor
	RawInputContents [][]byte
}

func (m *ModelInferRequest) Reset() { *m = ModelInferRequest{} }

func (m *ModelInferRequest) MarshalAppend(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.ModelName)
	b = appendString(b, 2, m.ModelVersion)
	b = appendString(b, 3, m.ID)
	b, err := inferParams.appendParams(b, 4, m.Parameters)
	if err != nil {
		return b, err
	}
	for _, in := range m.Inputs {
		if b, err = appendMessage(b, 5, in); err != nil {
			return b, fmt.Errorf("input %q: %w", in.Name, err)
		}
	}
	for _, out := range m.Outputs {
		if b, err = appendMessage(b, 6, out); err != nil {
			return b, fmt.Errorf("output %q: %w", out.Name, err)
		}
	}
	for _, raw := range m.RawInputContents {
		b = appendBytes(b, 7, raw)
	}
	return b, nil
}

func (m *ModelInferRequest) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.ModelName)
		case 2:
			return readString(typ, b, &m.ModelVersion)
		case 3:
			return readString(typ, b, &m.ID)
		case 4:
			return inferParams.readParams(typ, b, &m.Parameters)
		case 5:
			in := new(InferInputTensor)
			m.Inputs = append(m.Inputs, in)
			return readMessage(typ, b, in)
		case 6:
			out := new(InferRequestedOutputTensor)
			m.Outputs = append(m.Outputs, out)
			return readMessage(typ, b, out)
		case 7:
			v, n, err := readBytes(typ, b)
			m.RawInputContents = append(m.RawInputContents, v)
			return n, err
		}
		return 0, nil
	})
}

type ModelInferResponse struct {
	ModelName         string
	ModelVersion      string
	ID                string
	Parameters        map[string]Parameter
	Outputs           []*InferOutputTensor
	RawOutputContents [][]byte
}

func (m *ModelInferResponse) Reset() { *m = ModelInferResponse{} }

func (m *ModelInferResponse) MarshalAppend(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.ModelName)
	b = appendString(b, 2, m.ModelVersion)
	b = appendString(b, 3, m.ID)
	b, err := inferParams.appendParams(b, 4, m.Parameters)
	if err != nil {
		return b, err
	}
	for _, out := range m.Outputs {
		if b, err = appendMessage(b, 5, out); err != nil {
			return b, fmt.Errorf("output %q: %w", out.Name, err)
		}
	}
	for _, raw := range m.RawOutputContents {
		b = appendBytes(b, 6, raw)
	}
	return b, nil
}

func (m *ModelInferResponse) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.ModelName)
		case 2:
			return readString(typ, b, &m.ModelVersion)
		case 3:
			return readString(typ, b, &m.ID)
		case 4:
			return inferParams.readParams(typ, b, &m.Parameters)
		case 5:
			out := new(InferOutputTensor)
			m.Outputs = append(m.Outputs, out)
			return readMessage(typ, b, out)
		case 6:
			v, n, err := readBytes(typ, b)
			m.RawOutputContents = append(m.RawOutputContents, v)
			return n, err
		}
		return 0, nil
	})
}
