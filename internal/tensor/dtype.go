// Package tensor provides the dense value type shared by the source graph,
// the ONNX runtime and the equivalence harness.
package tensor

import "fmt"

// Elem is a constraint for supported element types.
type Elem interface {
	float32 | float64 | int32 | int64 | uint8 | bool | string
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
	String
)

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case String:
		return "string"
	default:
		return "unknown"
	}
}

// IsFloat reports whether values of this type are compared with a tolerance.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// ParseDataType maps a dtype name back to a DataType.
func ParseDataType(name string) (DataType, bool) {
	for dt := Float32; dt <= String; dt++ {
		if dt.String() == name {
			return dt, true
		}
	}
	return 0, false
}

// dataTypeOf infers DataType from a generic type T.
func dataTypeOf[T Elem]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case bool:
		return Bool
	case string:
		return String
	default:
		panic("unsupported type")
	}
}

// makeSlice allocates a zeroed backing slice for dtype.
func makeSlice(dtype DataType, n int) (any, error) {
	switch dtype {
	case Float32:
		return make([]float32, n), nil
	case Float64:
		return make([]float64, n), nil
	case Int32:
		return make([]int32, n), nil
	case Int64:
		return make([]int64, n), nil
	case Uint8:
		return make([]uint8, n), nil
	case Bool:
		return make([]bool, n), nil
	case String:
		return make([]string, n), nil
	default:
		return nil, fmt.Errorf("unsupported data type %d", int(dtype))
	}
}
