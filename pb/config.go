package pb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// ConfigDataType is the enum used by model configurations, distinct from the
// string datatypes of the inference calls.
type ConfigDataType int32

const (
	TypeInvalid ConfigDataType = iota
	TypeBool
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFP16
	TypeFP32
	TypeFP64
	TypeString
	TypeBF16
)

var configDataTypeNames = [...]string{
	"TYPE_INVALID", "TYPE_BOOL", "TYPE_UINT8", "TYPE_UINT16", "TYPE_UINT32",
	"TYPE_UINT64", "TYPE_INT8", "TYPE_INT16", "TYPE_INT32", "TYPE_INT64",
	"TYPE_FP16", "TYPE_FP32", "TYPE_FP64", "TYPE_STRING", "TYPE_BF16",
}

func (t ConfigDataType) String() string {
	if t < 0 || int(t) >= len(configDataTypeNames) {
		return "TYPE_INVALID"
	}
	return configDataTypeNames[t]
}

// ModelTensorConfig is an input or output entry of a model configuration.
// Input and output dims live under different field numbers.
type ModelTensorConfig struct {
	Name     string
	DataType ConfigDataType
	Dims     []int64

	dimsField protowire.Number
}

func (m *ModelTensorConfig) Reset() { *m = ModelTensorConfig{dimsField: m.dimsField} }

func (m *ModelTensorConfig) MarshalAppend(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.Name)
	b = appendUvarint(b, 2, uint64(m.DataType))
	return appendInt64s(b, m.dimsField, m.Dims), nil
}

func (m *ModelTensorConfig) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Name)
		case 2:
			v, n, err := readUvarint(typ, b)
			m.DataType = ConfigDataType(v)
			return n, err
		case m.dimsField:
			return readInt64s(typ, b, &m.Dims)
		}
		return 0, nil
	})
}

const (
	inputDimsField  = 4
	outputDimsField = 3
)

func NewInputConfig(name string, dt ConfigDataType, dims ...int64) *ModelTensorConfig {
	return &ModelTensorConfig{Name: name, DataType: dt, Dims: dims, dimsField: inputDimsField}
}

func NewOutputConfig(name string, dt ConfigDataType, dims ...int64) *ModelTensorConfig {
	return &ModelTensorConfig{Name: name, DataType: dt, Dims: dims, dimsField: outputDimsField}
}

// ModelConfig keeps the commonly used part of a model configuration,
// other fields are dropped while decoding.
type ModelConfig struct {
	Name         string
	Platform     string
	MaxBatchSize int32
	Inputs       []*ModelTensorConfig
	Outputs      []*ModelTensorConfig
	Backend      string
}

func (m *ModelConfig) Reset() { *m = ModelConfig{} }

func (m *ModelConfig) MarshalAppend(b []byte) (_ []byte, err error) {
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.Platform)
	b = appendUvarint(b, 4, uint64(int64(m.MaxBatchSize)))
	for _, in := range m.Inputs {
		in.dimsField = inputDimsField
		if b, err = appendMessage(b, 5, in); err != nil {
			return b, err
		}
	}
	for _, out := range m.Outputs {
		out.dimsField = outputDimsField
		if b, err = appendMessage(b, 6, out); err != nil {
			return b, err
		}
	}
	return appendString(b, 17, m.Backend), nil
}

func (m *ModelConfig) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &m.Name)
		case 2:
			return readString(typ, b, &m.Platform)
		case 4:
			v, n, err := readUvarint(typ, b)
			m.MaxBatchSize = int32(v)
			return n, err
		case 5:
			in := &ModelTensorConfig{dimsField: inputDimsField}
			m.Inputs = append(m.Inputs, in)
			return readMessage(typ, b, in)
		case 6:
			out := &ModelTensorConfig{dimsField: outputDimsField}
			m.Outputs = append(m.Outputs, out)
			return readMessage(typ, b, out)
		case 17:
			return readString(typ, b, &m.Backend)
		}
		return 0, nil
	})
}

type ModelConfigResponse struct {
	Config *ModelConfig
}

func (m *ModelConfigResponse) Reset() { *m = ModelConfigResponse{} }

func (m *ModelConfigResponse) MarshalAppend(b []byte) ([]byte, error) {
	if m.Config == nil {
		return b, nil
	}
	return appendMessage(b, 1, m.Config)
}

func (m *ModelConfigResponse) Unmarshal(b []byte) error {
	m.Reset()
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			m.Config = new(ModelConfig)
			return readMessage(typ, b, m.Config)
		}
		return 0, nil
	})
}
