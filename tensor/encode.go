package tensor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/ozontech/tritonclient/pb"
)

type integer interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64
}

func convert[D, S integer](s []S) []D {
	d := make([]D, len(s))
	for i, v := range s {
		d[i] = D(v)
	}
	return d
}

// Encode packs t into the typed inline contents of a request. Narrow integer
// types are widened to the 32 bit lists. The source is not modified.
func Encode(want DataType, t Tensor) (*pb.InferTensorContents, error) {
	switch want {
	case FP16, BF16:
		return nil, fmt.Errorf("%w: %s can't be sent as inline contents", ErrUnsupportedType, want)
	case Invalid:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, want)
	}
	if got := t.DataType(); got != want {
		return nil, fmt.Errorf("%w: declared %s, array holds %s", ErrTypeMismatch, want, got)
	}

	c := new(pb.InferTensorContents)
	switch a := t.(type) {
	case *Array[bool]:
		c.BoolContents = slices.Clone(a.data)
	case *Array[int8]:
		c.IntContents = convert[int32](a.data)
	case *Array[int16]:
		c.IntContents = convert[int32](a.data)
	case *Array[int32]:
		c.IntContents = slices.Clone(a.data)
	case *Array[int64]:
		c.Int64Contents = slices.Clone(a.data)
	case *Array[uint8]:
		c.UintContents = convert[uint32](a.data)
	case *Array[uint16]:
		c.UintContents = convert[uint32](a.data)
	case *Array[uint32]:
		c.UintContents = slices.Clone(a.data)
	case *Array[uint64]:
		c.Uint64Contents = slices.Clone(a.data)
	case *Array[float32]:
		c.Fp32Contents = slices.Clone(a.data)
	case *Array[float64]:
		c.Fp64Contents = slices.Clone(a.data)
	case *Array[[]byte]:
		c.BytesContents = make([][]byte, len(a.data))
		for i, v := range a.data {
			c.BytesContents[i] = bytes.Clone(v)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, t)
	}
	return c, nil
}

// MarshalRaw encodes t the way raw input and output contents carry it.
// Decode(t.DataType(), t.Shape(), raw) gives back an equal array.
func MarshalRaw(t Tensor) ([]byte, error) {
	return AppendRaw(nil, t)
}

func AppendRaw(b []byte, t Tensor) ([]byte, error) {
	switch a := t.(type) {
	case *Array[bool]:
		for _, v := range a.data {
			if v {
				b = append(b, 1)
			} else {
				b = append(b, 0)
			}
		}
	case *Array[uint8]:
		b = append(b, a.data...)
	case *Array[int8]:
		for _, v := range a.data {
			b = append(b, byte(v))
		}
	case *Array[uint16]:
		for _, v := range a.data {
			b = wireOrder.AppendUint16(b, v)
		}
	case *Array[int16]:
		for _, v := range a.data {
			b = wireOrder.AppendUint16(b, uint16(v))
		}
	case *Array[uint32]:
		for _, v := range a.data {
			b = wireOrder.AppendUint32(b, v)
		}
	case *Array[int32]:
		for _, v := range a.data {
			b = wireOrder.AppendUint32(b, uint32(v))
		}
	case *Array[uint64]:
		for _, v := range a.data {
			b = wireOrder.AppendUint64(b, v)
		}
	case *Array[int64]:
		for _, v := range a.data {
			b = wireOrder.AppendUint64(b, uint64(v))
		}
	case *Array[float32]:
		for _, v := range a.data {
			b = wireOrder.AppendUint32(b, math.Float32bits(v))
		}
	case *Array[float64]:
		for _, v := range a.data {
			b = wireOrder.AppendUint64(b, math.Float64bits(v))
		}
	case *Array[[]byte]:
		for i, v := range a.data {
			if uint64(len(v)) > math.MaxUint32 {
				return b, fmt.Errorf("%w: element %d is %d bytes long", ErrUnsupportedType, i, len(v))
			}
			b = binary.BigEndian.AppendUint32(b, uint32(len(v)))
			b = append(b, v...)
		}
	default:
		return b, fmt.Errorf("%w: %T", ErrUnsupportedType, t)
	}
	return b, nil
}

// FromContents builds an array of type dt from inline contents.
func FromContents(dt DataType, shape []int, c *pb.InferTensorContents) (Tensor, error) {
	if c == nil {
		c = new(pb.InferTensorContents)
	}
	switch dt {
	case Bool:
		return build(shape, slices.Clone(c.BoolContents))
	case Int8:
		return build(shape, convert[int8](c.IntContents))
	case Int16:
		return build(shape, convert[int16](c.IntContents))
	case Int32:
		return build(shape, slices.Clone(c.IntContents))
	case Int64:
		return build(shape, slices.Clone(c.Int64Contents))
	case Uint8:
		return build(shape, convert[uint8](c.UintContents))
	case Uint16:
		return build(shape, convert[uint16](c.UintContents))
	case Uint32:
		return build(shape, slices.Clone(c.UintContents))
	case Uint64:
		return build(shape, slices.Clone(c.Uint64Contents))
	case FP32:
		return build(shape, slices.Clone(c.Fp32Contents))
	case FP64:
		return build(shape, slices.Clone(c.Fp64Contents))
	case Bytes:
		data := make([][]byte, len(c.BytesContents))
		for i, v := range c.BytesContents {
			data[i] = bytes.Clone(v)
		}
		return build(shape, data)
	case FP16, BF16:
		return nil, fmt.Errorf("%w: %s has no inline contents", ErrUnsupportedType, dt)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownType, dt)
}

func build[T Element](shape []int, data []T) (Tensor, error) {
	a, err := New(shape, data)
	if err != nil {
		return nil, err
	}
	return a, nil
}
