package tensor

import (
	"fmt"
	"math"
	"slices"
)

// Element is the closed set of Go types a tensor can hold.
// FP16 and BF16 data is widened to float32, BYTES elements are []byte.
type Element interface {
	bool | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64 | []byte
}

// Tensor is a dense row-major array of one of the Element types.
// Use As to get at the typed data.
type Tensor interface {
	DataType() DataType
	Shape() []int
	Len() int
}

type Array[T Element] struct {
	shape []int
	data  []T
}

// New wraps data without copying it. len(data) must match the shape.
func New[T Element](shape []int, data []T) (*Array[T], error) {
	n, err := NumElements(shape)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: shape %v holds %d elements, got %d", ErrShapeMismatch, shape, n, len(data))
	}
	return &Array[T]{shape: slices.Clone(shape), data: data}, nil
}

// Must is New for literals in code and tests.
func Must[T Element](a *Array[T], err error) *Array[T] {
	if err != nil {
		panic(err)
	}
	return a
}

// Scalar makes a rank 0 array.
func Scalar[T Element](v T) *Array[T] {
	return &Array[T]{shape: []int{}, data: []T{v}}
}

// Vector makes a rank 1 array over data.
func Vector[T Element](data ...T) *Array[T] {
	return &Array[T]{shape: []int{len(data)}, data: data}
}

func (a *Array[T]) DataType() DataType { return dataTypeOf[T]() }
func (a *Array[T]) Shape() []int       { return slices.Clone(a.shape) }
func (a *Array[T]) Len() int           { return len(a.data) }

// Data returns the backing slice in row-major order.
func (a *Array[T]) Data() []T { return a.data }

// At returns the element at the given multi-dimensional index.
func (a *Array[T]) At(idx ...int) (T, error) {
	var zero T
	if len(idx) != len(a.shape) {
		return zero, fmt.Errorf("%w: %d indices for rank %d", ErrIndex, len(idx), len(a.shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			return zero, fmt.Errorf("%w: %v for shape %v", ErrIndex, idx, a.shape)
		}
		off = off*a.shape[i] + v
	}
	return a.data[off], nil
}

// Reshape returns a view of the same data with another shape.
func (a *Array[T]) Reshape(shape ...int) (*Array[T], error) {
	return New(shape, a.data)
}

// As asserts the element type of t.
func As[T Element](t Tensor) (*Array[T], bool) {
	a, ok := t.(*Array[T])
	return a, ok
}

// NumElements is the product of the dimensions, 1 for an empty shape.
func NumElements(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: %v", ErrNegativeDim, shape)
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("%w: %v overflows", ErrShapeMismatch, shape)
		}
		n *= d
	}
	return n, nil
}

// ShapeFromWire converts a wire shape, rejecting negative dimensions.
func ShapeFromWire(shape []int64) ([]int, error) {
	res := make([]int, len(shape))
	for i, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: %v", ErrNegativeDim, shape)
		}
		if d > math.MaxInt {
			return nil, fmt.Errorf("%w: %v overflows", ErrShapeMismatch, shape)
		}
		res[i] = int(d)
	}
	return res, nil
}

func ShapeToWire(shape []int) []int64 {
	res := make([]int64, len(shape))
	for i, d := range shape {
		res[i] = int64(d)
	}
	return res
}

func dataTypeOf[T Element]() DataType {
	var zero T
	switch any(zero).(type) {
	case bool:
		return Bool
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return FP32
	case float64:
		return FP64
	case []byte:
		return Bytes
	}
	return Invalid
}
