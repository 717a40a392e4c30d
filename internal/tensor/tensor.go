package tensor

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrDTypeMismatch is returned when a tensor is read as the wrong element type.
var ErrDTypeMismatch = errors.New("tensor dtype mismatch")

// Tensor is a dense row-major value. The backing slice is typed ([]string,
// []int64, ...) and owned by the tensor; operations never mutate their
// receivers.
type Tensor struct {
	shape Shape
	dtype DataType
	data  any
}

// New creates a zero-valued tensor.
func New(dtype DataType, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	data, err := makeSlice(dtype, shape.NumElements())
	if err != nil {
		return nil, err
	}
	return &Tensor{shape: shape.Clone(), dtype: dtype, data: data}, nil
}

// FromSlice wraps values as a tensor of the given shape. The slice is not copied.
func FromSlice[T Elem](values []T, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(values) != shape.NumElements() {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, shape.NumElements(), len(values))
	}
	if values == nil {
		values = []T{}
	}
	return &Tensor{shape: shape.Clone(), dtype: dataTypeOf[T](), data: values}, nil
}

// Scalar creates a rank-0 tensor.
func Scalar[T Elem](v T) *Tensor {
	return &Tensor{shape: Shape{}, dtype: dataTypeOf[T](), data: []T{v}}
}

// Vector creates a rank-1 tensor holding values.
func Vector[T Elem](values ...T) *Tensor {
	if values == nil {
		values = []T{}
	}
	return &Tensor{shape: Shape{len(values)}, dtype: dataTypeOf[T](), data: values}
}

// Must panics if err is non-nil. Intended for literals in tests and examples.
func Must(t *Tensor, err error) *Tensor {
	if err != nil {
		panic(err)
	}
	return t
}

// Values returns the backing slice as []T.
func Values[T Elem](t *Tensor) ([]T, error) {
	v, ok := t.data.([]T)
	if !ok {
		return nil, fmt.Errorf("%w: tensor is %s, want %s", ErrDTypeMismatch, t.dtype, dataTypeOf[T]())
	}
	return v, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return reflect.ValueOf(t.data).Len()
}

// Data returns the typed backing slice as an interface value.
func (t *Tensor) Data() any {
	return t.data
}

// At returns the element at flat index i.
func (t *Tensor) At(i int) any {
	return reflect.ValueOf(t.data).Index(i).Interface()
}

// Strings returns the backing slice of a string tensor, or nil.
func (t *Tensor) Strings() []string {
	v, _ := t.data.([]string)
	return v
}

// Int64s returns the backing slice of an int64 tensor, or nil.
func (t *Tensor) Int64s() []int64 {
	v, _ := t.data.([]int64)
	return v
}

// Int32s returns the backing slice of an int32 tensor, or nil.
func (t *Tensor) Int32s() []int32 {
	v, _ := t.data.([]int32)
	return v
}

// Float32s returns the backing slice of a float32 tensor, or nil.
func (t *Tensor) Float32s() []float32 {
	v, _ := t.data.([]float32)
	return v
}

// Float64s returns the backing slice of a float64 tensor, or nil.
func (t *Tensor) Float64s() []float64 {
	v, _ := t.data.([]float64)
	return v
}

// Bools returns the backing slice of a bool tensor, or nil.
func (t *Tensor) Bools() []bool {
	v, _ := t.data.([]bool)
	return v
}

// Uint8s returns the backing slice of a uint8 tensor, or nil.
func (t *Tensor) Uint8s() []uint8 {
	v, _ := t.data.([]uint8)
	return v
}

// AsInt64s reads an integer tensor (int32 or int64) as int64 values.
// Shape and index inputs accept either width.
func (t *Tensor) AsInt64s() ([]int64, error) {
	switch d := t.data.(type) {
	case []int64:
		return d, nil
	case []int32:
		out := make([]int64, len(d))
		for i, v := range d {
			out[i] = int64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: tensor is %s, want an integer type", ErrDTypeMismatch, t.dtype)
	}
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	idx := make([]int, t.Len())
	for i := range idx {
		idx[i] = i
	}
	return &Tensor{shape: t.shape.Clone(), dtype: t.dtype, data: gather(t.data, idx)}
}

// String formats the tensor as dtype, shape and values.
func (t *Tensor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%v ", t.dtype, []int(t.shape))
	if t.dtype == String {
		vals := make([]string, 0, t.Len())
		for _, s := range t.Strings() {
			vals = append(vals, fmt.Sprintf("%q", s))
		}
		b.WriteString("[" + strings.Join(vals, " ") + "]")
		return b.String()
	}
	fmt.Fprintf(&b, "%v", t.data)
	return b.String()
}
