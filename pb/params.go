package pb

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Parameter is one value of an inference or repository parameter map.
type Parameter interface {
	isParameter()
}

type (
	BoolParam   bool
	Int64Param  int64
	StringParam string
	DoubleParam float64
	Uint64Param uint64
	// BytesParam is accepted by repository load/unload requests only.
	BytesParam []byte
)

func (BoolParam) isParameter()   {}
func (Int64Param) isParameter()  {}
func (StringParam) isParameter() {}
func (DoubleParam) isParameter() {}
func (Uint64Param) isParameter() {}
func (BytesParam) isParameter()  {}

// paramFields maps the oneof members onto field numbers, 0 means unsupported.
type paramFields struct {
	boolNum, int64Num, stringNum, doubleNum, uint64Num, bytesNum protowire.Number
}

var (
	inferParams      = paramFields{boolNum: 1, int64Num: 2, stringNum: 3, doubleNum: 4, uint64Num: 5}
	repositoryParams = paramFields{boolNum: 1, int64Num: 2, stringNum: 3, bytesNum: 4}
)

func (f paramFields) appendValue(b []byte, p Parameter) ([]byte, error) {
	var num protowire.Number
	switch p.(type) {
	case BoolParam:
		num = f.boolNum
	case Int64Param:
		num = f.int64Num
	case StringParam:
		num = f.stringNum
	case DoubleParam:
		num = f.doubleNum
	case Uint64Param:
		num = f.uint64Num
	case BytesParam:
		num = f.bytesNum
	case nil:
		return b, nil
	}
	if num == 0 {
		return b, fmt.Errorf("%w: %T", ErrParameterType, p)
	}

	switch v := p.(type) {
	case BoolParam:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(bool(v)))
	case Int64Param:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	case StringParam:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, string(v))
	case DoubleParam:
		b = protowire.AppendTag(b, num, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(float64(v)))
	case Uint64Param:
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	case BytesParam:
		b = appendBytes(b, num, v)
	}
	return b, nil
}

func (f paramFields) readValue(b []byte) (Parameter, error) {
	var p Parameter
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case 0:
			return 0, nil
		case f.boolNum:
			var v bool
			n, err = readBool(typ, b, &v)
			p = BoolParam(v)
		case f.int64Num:
			var v int64
			n, err = readInt64(typ, b, &v)
			p = Int64Param(v)
		case f.stringNum:
			var v string
			n, err = readString(typ, b, &v)
			p = StringParam(v)
		case f.doubleNum:
			if typ != protowire.Fixed64Type {
				return 0, ErrWireType
			}
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return 0, parseError(m)
			}
			n, p = m, DoubleParam(math.Float64frombits(v))
		case f.uint64Num:
			var v uint64
			n, err = readUint64(typ, b, &v)
			p = Uint64Param(v)
		case f.bytesNum:
			var v []byte
			v, n, err = readBytes(typ, b)
			p = BytesParam(v)
		}
		return n, err
	})
	return p, err
}

// appendParams writes a map<string, Parameter> field; entries are ordered by key.
func (f paramFields) appendParams(b []byte, num protowire.Number, params map[string]Parameter) ([]byte, error) {
	for _, k := range sortedKeys(params) {
		var (
			entry []byte
			value []byte
			err   error
		)
		entry = appendString(entry, 1, k)
		value, err = f.appendValue(value, params[k])
		if err != nil {
			return b, fmt.Errorf("parameter %q: %w", k, err)
		}
		entry = appendBytes(entry, 2, value)
		b = appendBytes(b, num, entry)
	}
	return b, nil
}

func (f paramFields) readParams(typ protowire.Type, b []byte, dst *map[string]Parameter) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	entry, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, parseError(n)
	}

	var (
		key   string
		value Parameter
	)
	err := walk(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readString(typ, b, &key)
		case 2:
			if typ != protowire.BytesType {
				return 0, ErrWireType
			}
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return 0, parseError(m)
			}
			var err error
			value, err = f.readValue(v)
			return m, err
		}
		return 0, nil
	})
	if err != nil {
		return 0, err
	}

	if *dst == nil {
		*dst = make(map[string]Parameter)
	}
	(*dst)[key] = value
	return n, nil
}
