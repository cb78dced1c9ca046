package tensor

import "fmt"

// DataType is a wire datatype tag of the inference protocol.
type DataType uint8

const (
	Invalid DataType = iota
	Bool
	Uint8
	Uint16
	Uint32
	Uint64
	Int8
	Int16
	Int32
	Int64
	FP16
	FP32
	FP64
	Bytes
	BF16
)

var dataTypeNames = [...]string{
	Invalid: "INVALID",
	Bool:    "BOOL",
	Uint8:   "UINT8",
	Uint16:  "UINT16",
	Uint32:  "UINT32",
	Uint64:  "UINT64",
	Int8:    "INT8",
	Int16:   "INT16",
	Int32:   "INT32",
	Int64:   "INT64",
	FP16:    "FP16",
	FP32:    "FP32",
	FP64:    "FP64",
	Bytes:   "BYTES",
	BF16:    "BF16",
}

var dataTypeSizes = [...]int{
	Bool: 1, Uint8: 1, Uint16: 2, Uint32: 4, Uint64: 8,
	Int8: 1, Int16: 2, Int32: 4, Int64: 8,
	FP16: 2, FP32: 4, FP64: 8, BF16: 2,
}

func (dt DataType) String() string {
	if int(dt) < len(dataTypeNames) {
		return dataTypeNames[dt]
	}
	return fmt.Sprintf("DataType(%d)", uint8(dt))
}

// Size is the encoded width of one element, 0 for BYTES and unknown types.
func (dt DataType) Size() int {
	if int(dt) < len(dataTypeSizes) {
		return dataTypeSizes[dt]
	}
	return 0
}

// ParseDataType maps a wire tag ("FP32", "BYTES", ...) onto a DataType.
func ParseDataType(s string) (DataType, error) {
	for dt, name := range dataTypeNames {
		if name == s && DataType(dt) != Invalid {
			return DataType(dt), nil
		}
	}
	return Invalid, fmt.Errorf("%w: %q", ErrUnknownType, s)
}
