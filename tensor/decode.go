package tensor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// wireOrder is the byte order of fixed width elements in raw contents.
// BYTES length prefixes are big endian.
var wireOrder = binary.LittleEndian

// HalfMode selects how FP16 and BF16 elements are widened to float32.
type HalfMode uint8

const (
	// HalfCompat places the two element bytes, in wire order, into the low
	// half of the float32 bit pattern: [b0 b1] becomes bits 0x0000_b0b1.
	// This matches what existing Triton clients return.
	HalfCompat HalfMode = iota
	// HalfIEEE converts the little endian element to the float32 it represents.
	HalfIEEE
)

type DecoderOption func(*Decoder)

func WithHalfPrecision(mode HalfMode) DecoderOption {
	return func(d *Decoder) {
		d.half = mode
	}
}

// Decoder rebuilds typed arrays from raw output contents.
type Decoder struct {
	half HalfMode
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := new(Decoder)
	for _, o := range opts {
		o(d)
	}
	return d
}

var defaultDecoder = NewDecoder()

// Decode uses the default decoder.
func Decode(dt DataType, shape []int, raw []byte) (Tensor, error) {
	return defaultDecoder.Decode(dt, shape, raw)
}

// Decode interprets raw as NumElements(shape) elements of type dt.
// The result never aliases raw.
func (d *Decoder) Decode(dt DataType, shape []int, raw []byte) (Tensor, error) {
	n, err := NumElements(shape)
	if err != nil {
		return nil, err
	}

	switch dt {
	case Bool:
		return decodeFixed(shape, n, raw, 1, func(b []byte) bool { return b[0] != 0 })
	case Uint8:
		return decodeFixed(shape, n, raw, 1, func(b []byte) uint8 { return b[0] })
	case Uint16:
		return decodeFixed(shape, n, raw, 2, wireOrder.Uint16)
	case Uint32:
		return decodeFixed(shape, n, raw, 4, wireOrder.Uint32)
	case Uint64:
		return decodeFixed(shape, n, raw, 8, wireOrder.Uint64)
	case Int8:
		return decodeFixed(shape, n, raw, 1, func(b []byte) int8 { return int8(b[0]) })
	case Int16:
		return decodeFixed(shape, n, raw, 2, func(b []byte) int16 { return int16(wireOrder.Uint16(b)) })
	case Int32:
		return decodeFixed(shape, n, raw, 4, func(b []byte) int32 { return int32(wireOrder.Uint32(b)) })
	case Int64:
		return decodeFixed(shape, n, raw, 8, func(b []byte) int64 { return int64(wireOrder.Uint64(b)) })
	case FP32:
		return decodeFixed(shape, n, raw, 4, func(b []byte) float32 {
			return math.Float32frombits(wireOrder.Uint32(b))
		})
	case FP64:
		return decodeFixed(shape, n, raw, 8, func(b []byte) float64 {
			return math.Float64frombits(wireOrder.Uint64(b))
		})
	case FP16, BF16:
		return decodeFixed(shape, n, raw, 2, d.widen(dt))
	case Bytes:
		return decodeBytes(shape, n, raw)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownType, dt)
}

func (d *Decoder) widen(dt DataType) func([]byte) float32 {
	switch {
	case d.half == HalfCompat:
		return func(b []byte) float32 {
			return math.Float32frombits(uint32(b[0])<<8 | uint32(b[1]))
		}
	case dt == BF16:
		return func(b []byte) float32 {
			return math.Float32frombits(uint32(wireOrder.Uint16(b)) << 16)
		}
	}
	return func(b []byte) float32 {
		return halfToFloat32(wireOrder.Uint16(b))
	}
}

func decodeFixed[T Element](shape []int, n int, raw []byte, size int, get func([]byte) T) (Tensor, error) {
	if len(raw)%size != 0 {
		return nil, fmt.Errorf(
			"%w: %d bytes is not a multiple of element size %d",
			ErrShapeMismatch, len(raw), size,
		)
	}
	if len(raw)/size != n {
		return nil, fmt.Errorf(
			"%w: %d elements received, shape %v holds %d",
			ErrShapeMismatch, len(raw)/size, shape, n,
		)
	}

	data := make([]T, n)
	for i := range data {
		data[i] = get(raw[i*size:])
	}
	return &Array[T]{shape: slices.Clone(shape), data: data}, nil
}

// decodeBytes reads exactly n frames of a 4 byte big endian length followed
// by the payload.
func decodeBytes(shape []int, n int, raw []byte) (Tensor, error) {
	if n > len(raw)/4 {
		return nil, fmt.Errorf("%w: %d bytes can't hold %d elements", ErrTruncated, len(raw), n)
	}

	data := make([][]byte, n)
	for i := range data {
		if len(raw) < 4 {
			return nil, fmt.Errorf("%w: length of element %d", ErrTruncated, i)
		}
		l := binary.BigEndian.Uint32(raw)
		raw = raw[4:]
		if uint64(len(raw)) < uint64(l) {
			return nil, fmt.Errorf("%w: element %d wants %d bytes, %d left", ErrTruncated, i, l, len(raw))
		}
		data[i] = bytes.Clone(raw[:l])
		raw = raw[l:]
	}
	if len(raw) != 0 {
		return nil, fmt.Errorf("%w: %d bytes after %d elements", ErrTrailingBytes, len(raw), n)
	}
	return &Array[[]byte]{shape: slices.Clone(shape), data: data}, nil
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h) & 0x3ff

	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal, normalize the mantissa
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3ff
		return math.Float32frombits(sign | e<<23 | mant<<13)
	case exp == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | mant<<13)
	}
	return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
}
