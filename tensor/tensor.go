// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/strops/internal/tensor"
)

// Type aliases for public API

// Elem is a constraint for tensor element types.
// Supported types: float32, float64, int32, int64, uint8, bool, string.
type Elem = tensor.Elem

// DataType represents the element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
	String  DataType = tensor.String
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3} is a 2×3 matrix; Shape{} is a scalar.
type Shape = tensor.Shape

// Tensor is a dense, row-major value with a fixed element type.
type Tensor = tensor.Tensor

// ParseDataType resolves a name such as "string" or "int64".
func ParseDataType(name string) (DataType, bool) {
	return tensor.ParseDataType(name)
}

// New creates a zero-valued tensor.
func New(dtype DataType, shape Shape) (*Tensor, error) {
	return tensor.New(dtype, shape)
}

// FromSlice wraps values with the given shape.
//
// Example:
//
//	t, err := tensor.FromSlice([]string{"a", "b", "c", "d"}, tensor.Shape{2, 2})
func FromSlice[T Elem](values []T, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(values, shape)
}

// Scalar creates a rank-0 tensor.
func Scalar[T Elem](v T) *Tensor {
	return tensor.Scalar(v)
}

// Vector creates a rank-1 tensor.
func Vector[T Elem](values ...T) *Tensor {
	return tensor.Vector(values...)
}

// Must panics if err is non-nil. Intended for literals in tests and examples.
func Must(t *Tensor, err error) *Tensor {
	return tensor.Must(t, err)
}

// Values returns the elements of t as []T, failing on a dtype mismatch.
func Values[T Elem](t *Tensor) ([]T, error) {
	return tensor.Values[T](t)
}
