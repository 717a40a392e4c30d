package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataTypeString(t *testing.T) {
	tests := []struct {
		dtype DataType
		str   string
	}{
		{Float32, "float32"},
		{Float64, "float64"},
		{Int32, "int32"},
		{Int64, "int64"},
		{Uint8, "uint8"},
		{Bool, "bool"},
		{String, "string"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.str, tt.dtype.String())
		back, ok := ParseDataType(tt.str)
		require.True(t, ok)
		assert.Equal(t, tt.dtype, back)
	}

	_, ok := ParseDataType("complex64")
	assert.False(t, ok)
}

func TestFromSlice(t *testing.T) {
	x, err := FromSlice([]string{"a", "b", "c", "d"}, Shape{2, 2})
	require.NoError(t, err)
	assert.Equal(t, String, x.DType())
	assert.Equal(t, Shape{2, 2}, x.Shape())
	assert.Equal(t, []string{"a", "b", "c", "d"}, x.Strings())
	assert.Nil(t, x.Int64s())

	_, err = FromSlice([]int64{1, 2, 3}, Shape{2, 2})
	require.Error(t, err)

	_, err = FromSlice([]int64{}, Shape{-1})
	require.Error(t, err)
}

func TestScalar(t *testing.T) {
	s := Scalar("Some scalar text")
	assert.Equal(t, 0, s.Rank())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "Some scalar text", s.At(0))
}

func TestValues(t *testing.T) {
	x := Vector[int64](1, 2, 3)
	v, err := Values[int64](x)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, v)

	_, err = Values[string](x)
	require.ErrorIs(t, err, ErrDTypeMismatch)
}

func TestAsInt64s(t *testing.T) {
	v, err := Vector[int32](4, -1).AsInt64s()
	require.NoError(t, err)
	assert.Equal(t, []int64{4, -1}, v)

	_, err = Vector("x").AsInt64s()
	require.ErrorIs(t, err, ErrDTypeMismatch)
}

func TestReshape(t *testing.T) {
	x := Must(FromSlice([]string{"a", "b", "c", "d", "e", "f"}, Shape{2, 3}))

	flat, err := x.Reshape(Shape{-1})
	require.NoError(t, err)
	assert.Equal(t, Shape{6}, flat.Shape())
	assert.Equal(t, x.Strings(), flat.Strings())

	cols, err := x.Reshape(Shape{3, -1})
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, cols.Shape())

	_, err = x.Reshape(Shape{4})
	require.Error(t, err)
	_, err = x.Reshape(Shape{-1, -1})
	require.Error(t, err)
}

func TestBroadcastTo(t *testing.T) {
	s := Scalar("z")
	b, err := s.BroadcastTo(Shape{2, 2})
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 2}, b.Shape())
	assert.Equal(t, []string{"z", "z", "z", "z"}, b.Strings())

	row := Vector[int64](1, 2, 3)
	m, err := row.BroadcastTo(Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 1, 2, 3}, m.Int64s())

	col := Must(FromSlice([]int64{1, 2}, Shape{2, 1}))
	m, err = col.BroadcastTo(Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 1, 2, 2, 2}, m.Int64s())

	_, err = row.BroadcastTo(Shape{2, 2})
	require.Error(t, err)
	// Broadcasting must not shrink the target shape.
	_, err = Must(FromSlice([]int64{1, 2}, Shape{2, 1})).BroadcastTo(Shape{1})
	require.Error(t, err)
}

func TestConcat(t *testing.T) {
	a := Must(FromSlice([]string{"a", "b", "c", "d"}, Shape{1, 2, 2}))
	b := Must(FromSlice([]string{"e", "f", "g", "h"}, Shape{1, 2, 2}))

	out, err := Concat([]*Tensor{a, b}, 0)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 2, 2}, out.Shape())
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "h"}, out.Strings())

	out, err = Concat([]*Tensor{a, b}, -1)
	require.NoError(t, err)
	assert.Equal(t, Shape{1, 2, 4}, out.Shape())
	assert.Equal(t, []string{"a", "b", "e", "f", "c", "d", "g", "h"}, out.Strings())

	_, err = Concat([]*Tensor{a, Vector[int64](1)}, 0)
	require.Error(t, err)
	_, err = Concat(nil, 0)
	require.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	x := Vector("a", "b")
	c := x.Clone()
	c.Strings()[0] = "changed"
	assert.Equal(t, "a", x.Strings()[0])
}

func TestTensorString(t *testing.T) {
	assert.Equal(t, `string[2] ["a b" "c"]`, Vector("a b", "c").String())
	assert.Equal(t, "int64[] [7]", Scalar[int64](7).String())
}
