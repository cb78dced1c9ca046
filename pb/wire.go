package pb

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrWireType      = errors.New("pb: unexpected wire type")
	ErrParameterType = errors.New("pb: parameter type not allowed here")
)

// Message is implemented by every record of the inference service.
// Unmarshal resets the receiver before decoding.
type Message interface {
	MarshalAppend(b []byte) ([]byte, error)
	Unmarshal(b []byte) error
	Reset()
}

// Marshal encodes m into a new buffer.
func Marshal(m Message) ([]byte, error) {
	return m.MarshalAppend(nil)
}

func parseError(n int) error {
	return fmt.Errorf("pb: %w", protowire.ParseError(n))
}

// fieldFunc decodes one field value located at the head of b.
// Returning 0 consumed bytes makes walk skip the field as unknown.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walk(b []byte, f fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseError(n)
		}
		b = b[n:]

		m, err := f(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return parseError(m)
			}
		}
		b = b[m:]
	}
	return nil
}

// encoding

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendUvarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, m Message) ([]byte, error) {
	sub, err := m.MarshalAppend(nil)
	if err != nil {
		return b, err
	}
	return appendBytes(b, num, sub), nil
}

func appendPacked[T any](
	b []byte, num protowire.Number, vs []T,
	size func(T) int, put func([]byte, T) []byte,
) []byte {
	if len(vs) == 0 {
		return b
	}
	n := 0
	for _, v := range vs {
		n += size(v)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(n))
	for _, v := range vs {
		b = put(b, v)
	}
	return b
}

func appendInt64s(b []byte, num protowire.Number, vs []int64) []byte {
	return appendPacked(b, num, vs,
		func(v int64) int { return protowire.SizeVarint(uint64(v)) },
		func(b []byte, v int64) []byte { return protowire.AppendVarint(b, uint64(v)) },
	)
}

func appendInt32s(b []byte, num protowire.Number, vs []int32) []byte {
	return appendPacked(b, num, vs,
		func(v int32) int { return protowire.SizeVarint(uint64(int64(v))) },
		func(b []byte, v int32) []byte { return protowire.AppendVarint(b, uint64(int64(v))) },
	)
}

func appendUint32s(b []byte, num protowire.Number, vs []uint32) []byte {
	return appendPacked(b, num, vs,
		func(v uint32) int { return protowire.SizeVarint(uint64(v)) },
		func(b []byte, v uint32) []byte { return protowire.AppendVarint(b, uint64(v)) },
	)
}

func appendUint64s(b []byte, num protowire.Number, vs []uint64) []byte {
	return appendPacked(b, num, vs,
		protowire.SizeVarint,
		protowire.AppendVarint,
	)
}

func appendBools(b []byte, num protowire.Number, vs []bool) []byte {
	return appendPacked(b, num, vs,
		func(bool) int { return 1 },
		func(b []byte, v bool) []byte { return protowire.AppendVarint(b, protowire.EncodeBool(v)) },
	)
}

func appendFloat32s(b []byte, num protowire.Number, vs []float32) []byte {
	return appendPacked(b, num, vs,
		func(float32) int { return 4 },
		func(b []byte, v float32) []byte { return protowire.AppendFixed32(b, math.Float32bits(v)) },
	)
}

func appendFloat64s(b []byte, num protowire.Number, vs []float64) []byte {
	return appendPacked(b, num, vs,
		func(float64) int { return 8 },
		func(b []byte, v float64) []byte { return protowire.AppendFixed64(b, math.Float64bits(v)) },
	)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decoding

func readString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, parseError(n)
	}
	*dst = v
	return n, nil
}

func readBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, ErrWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, parseError(n)
	}
	return bytes.Clone(v), n, nil
}

func readUvarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, ErrWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, parseError(n)
	}
	return v, n, nil
}

func readBool(typ protowire.Type, b []byte, dst *bool) (int, error) {
	v, n, err := readUvarint(typ, b)
	*dst = protowire.DecodeBool(v)
	return n, err
}

func readUint64(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	v, n, err := readUvarint(typ, b)
	*dst = v
	return n, err
}

func readInt64(typ protowire.Type, b []byte, dst *int64) (int, error) {
	v, n, err := readUvarint(typ, b)
	*dst = int64(v)
	return n, err
}

func readMessage(typ protowire.Type, b []byte, m Message) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, parseError(n)
	}
	return n, m.Unmarshal(v)
}

// readRepeated accepts both the packed and the expanded encoding.
func readRepeated[T any](
	typ protowire.Type, b []byte, dst *[]T,
	want protowire.Type, one func([]byte) (T, int),
) (int, error) {
	if typ == protowire.BytesType {
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, parseError(n)
		}
		for len(v) > 0 {
			x, m := one(v)
			if m < 0 {
				return 0, parseError(m)
			}
			*dst = append(*dst, x)
			v = v[m:]
		}
		return n, nil
	}
	if typ != want {
		return 0, ErrWireType
	}
	x, n := one(b)
	if n < 0 {
		return 0, parseError(n)
	}
	*dst = append(*dst, x)
	return n, nil
}

func readInt64s(typ protowire.Type, b []byte, dst *[]int64) (int, error) {
	return readRepeated(typ, b, dst, protowire.VarintType, func(b []byte) (int64, int) {
		v, n := protowire.ConsumeVarint(b)
		return int64(v), n
	})
}

func readInt32s(typ protowire.Type, b []byte, dst *[]int32) (int, error) {
	return readRepeated(typ, b, dst, protowire.VarintType, func(b []byte) (int32, int) {
		v, n := protowire.ConsumeVarint(b)
		return int32(v), n
	})
}

func readUint32s(typ protowire.Type, b []byte, dst *[]uint32) (int, error) {
	return readRepeated(typ, b, dst, protowire.VarintType, func(b []byte) (uint32, int) {
		v, n := protowire.ConsumeVarint(b)
		return uint32(v), n
	})
}

func readUint64s(typ protowire.Type, b []byte, dst *[]uint64) (int, error) {
	return readRepeated(typ, b, dst, protowire.VarintType, protowire.ConsumeVarint)
}

func readBools(typ protowire.Type, b []byte, dst *[]bool) (int, error) {
	return readRepeated(typ, b, dst, protowire.VarintType, func(b []byte) (bool, int) {
		v, n := protowire.ConsumeVarint(b)
		return protowire.DecodeBool(v), n
	})
}

func readFloat32s(typ protowire.Type, b []byte, dst *[]float32) (int, error) {
	return readRepeated(typ, b, dst, protowire.Fixed32Type, func(b []byte) (float32, int) {
		v, n := protowire.ConsumeFixed32(b)
		return math.Float32frombits(v), n
	})
}

func readFloat64s(typ protowire.Type, b []byte, dst *[]float64) (int, error) {
	return readRepeated(typ, b, dst, protowire.Fixed64Type, func(b []byte) (float64, int) {
		v, n := protowire.ConsumeFixed64(b)
		return math.Float64frombits(v), n
	})
}
