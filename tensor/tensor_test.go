package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	arr, err := New([]int{2, 3}, []float32{0, 1, 2, 3, 4, 5})
	a.NoError(err)
	a.Equal(FP32, arr.DataType())
	a.Equal(6, arr.Len())

	v, err := arr.At(1, 2)
	a.NoError(err)
	a.Equal(float32(5), v)

	_, err = arr.At(2, 0)
	a.ErrorIs(err, ErrIndex)
	_, err = arr.At(0)
	a.ErrorIs(err, ErrIndex)

	r, err := arr.Reshape(3, 2)
	a.NoError(err)
	a.Equal([]int{3, 2}, r.Shape())
	_, err = arr.Reshape(4, 2)
	a.ErrorIs(err, ErrShapeMismatch)

	_, err = New([]int{2}, []bool{true})
	a.ErrorIs(err, ErrShapeMismatch)
	_, err = New([]int{-1}, []bool{})
	a.ErrorIs(err, ErrNegativeDim)

	s := Scalar(int64(7))
	a.Equal([]int{}, s.Shape())
	v64, err := s.At()
	a.NoError(err)
	a.Equal(int64(7), v64)

	shape := []int{1}
	arr2 := Must(New(shape, []uint16{9}))
	shape[0] = 5
	a.Equal([]int{1}, arr2.Shape())
}

func TestAs(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	var tt Tensor = Vector[uint32](1, 2)
	_, ok := As[int32](tt)
	a.False(ok)
	u, ok := As[uint32](tt)
	a.True(ok)
	a.Equal([]uint32{1, 2}, u.Data())
	a.Equal(Bytes, Vector([]byte("x")).DataType())
}

func TestParseDataType(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	for dt := Bool; dt <= BF16; dt++ {
		got, err := ParseDataType(dt.String())
		a.NoError(err)
		a.Equal(dt, got)
	}

	_, err := ParseDataType("INVALID")
	a.ErrorIs(err, ErrUnknownType)
	_, err = ParseDataType("fp32")
	a.ErrorIs(err, ErrUnknownType)

	a.Equal(2, FP16.Size())
	a.Equal(0, Bytes.Size())
	a.Equal("DataType(99)", DataType(99).String())
}

func TestShapeFromWire(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	s, err := ShapeFromWire([]int64{1, 0, 3})
	a.NoError(err)
	a.Equal([]int{1, 0, 3}, s)
	a.Equal([]int64{1, 0, 3}, ShapeToWire(s))

	_, err = ShapeFromWire([]int64{2, -1})
	a.ErrorIs(err, ErrNegativeDim)

	n, err := NumElements(nil)
	a.NoError(err)
	a.Equal(1, n)
}
