package onnx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/born-ml/strops/internal/tensor"
)

// ElemType converts tensor.DataType to the ONNX TensorProto data type.
func ElemType(dtype tensor.DataType) (int32, error) {
	switch dtype {
	case tensor.Float32:
		return TensorProtoFloat, nil
	case tensor.Float64:
		return TensorProtoDouble, nil
	case tensor.Int32:
		return TensorProtoInt32, nil
	case tensor.Int64:
		return TensorProtoInt64, nil
	case tensor.Uint8:
		return TensorProtoUint8, nil
	case tensor.Bool:
		return TensorProtoBool, nil
	case tensor.String:
		return TensorProtoString, nil
	default:
		return TensorProtoUndefined, fmt.Errorf("dtype %s has no ONNX element type", dtype)
	}
}

// DataTypeOf converts an ONNX data type to tensor.DataType.
func DataTypeOf(onnxType int32) (tensor.DataType, error) {
	switch onnxType {
	case TensorProtoFloat:
		return tensor.Float32, nil
	case TensorProtoDouble:
		return tensor.Float64, nil
	case TensorProtoInt32:
		return tensor.Int32, nil
	case TensorProtoInt64:
		return tensor.Int64, nil
	case TensorProtoUint8:
		return tensor.Uint8, nil
	case TensorProtoBool:
		return tensor.Bool, nil
	case TensorProtoString:
		return tensor.String, nil
	default:
		return 0, fmt.Errorf("unsupported ONNX data type %d", onnxType)
	}
}

// TensorToProto encodes t. Strings go to string_data, numeric values to
// little-endian raw_data.
func TensorToProto(name string, t *tensor.Tensor) (*TensorProto, error) {
	elem, err := ElemType(t.DType())
	if err != nil {
		return nil, err
	}
	p := &TensorProto{Name: name, DataType: elem}
	for _, d := range t.Shape() {
		p.Dims = append(p.Dims, int64(d))
	}

	switch t.DType() {
	case tensor.String:
		p.StringData = make([][]byte, t.Len())
		for i, s := range t.Strings() {
			p.StringData[i] = []byte(s)
		}
	case tensor.Float32:
		p.RawData = make([]byte, 0, 4*t.Len())
		for _, v := range t.Float32s() {
			p.RawData = binary.LittleEndian.AppendUint32(p.RawData, math.Float32bits(v))
		}
	case tensor.Float64:
		p.RawData = make([]byte, 0, 8*t.Len())
		for _, v := range t.Float64s() {
			p.RawData = binary.LittleEndian.AppendUint64(p.RawData, math.Float64bits(v))
		}
	case tensor.Int32:
		p.RawData = make([]byte, 0, 4*t.Len())
		for _, v := range t.Int32s() {
			p.RawData = binary.LittleEndian.AppendUint32(p.RawData, uint32(v))
		}
	case tensor.Int64:
		p.RawData = make([]byte, 0, 8*t.Len())
		for _, v := range t.Int64s() {
			p.RawData = binary.LittleEndian.AppendUint64(p.RawData, uint64(v))
		}
	case tensor.Uint8:
		p.RawData = append([]byte{}, t.Uint8s()...)
	case tensor.Bool:
		p.RawData = make([]byte, t.Len())
		for i, v := range t.Bools() {
			if v {
				p.RawData[i] = 1
			}
		}
	}
	return p, nil
}

// tensorFromProto decodes a TensorProto. Either raw_data or the typed
// field matching the data type may carry the values.
//
//nolint:gocognit,gocyclo,cyclop // one branch per element type
func tensorFromProto(proto *TensorProto) (*tensor.Tensor, error) {
	shape := make(tensor.Shape, len(proto.Dims))
	for i, dim := range proto.Dims {
		shape[i] = int(dim)
	}
	dtype, err := DataTypeOf(proto.DataType)
	if err != nil {
		return nil, err
	}
	n := shape.NumElements()
	raw := proto.RawData

	checkRaw := func(width int) error {
		if len(raw) != width*n {
			return fmt.Errorf("raw_data has %d bytes, want %d for shape %v", len(raw), width*n, shape)
		}
		return nil
	}
	useRaw := len(raw) > 0 || n == 0

	switch dtype {
	case tensor.String:
		if len(proto.StringData) != n {
			return nil, fmt.Errorf("string_data has %d entries, want %d", len(proto.StringData), n)
		}
		vals := make([]string, n)
		for i, s := range proto.StringData {
			vals[i] = string(s)
		}
		return tensor.FromSlice(vals, shape)
	case tensor.Float32:
		if !useRaw {
			return tensor.FromSlice(append([]float32{}, proto.FloatData...), shape)
		}
		if err := checkRaw(4); err != nil {
			return nil, err
		}
		vals := make([]float32, n)
		for i := range vals {
			vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		}
		return tensor.FromSlice(vals, shape)
	case tensor.Float64:
		if !useRaw {
			return tensor.FromSlice(append([]float64{}, proto.DoubleData...), shape)
		}
		if err := checkRaw(8); err != nil {
			return nil, err
		}
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
		return tensor.FromSlice(vals, shape)
	case tensor.Int32:
		if !useRaw {
			return tensor.FromSlice(append([]int32{}, proto.Int32Data...), shape)
		}
		if err := checkRaw(4); err != nil {
			return nil, err
		}
		vals := make([]int32, n)
		for i := range vals {
			vals[i] = int32(binary.LittleEndian.Uint32(raw[4*i:]))
		}
		return tensor.FromSlice(vals, shape)
	case tensor.Int64:
		if !useRaw {
			return tensor.FromSlice(append([]int64{}, proto.Int64Data...), shape)
		}
		if err := checkRaw(8); err != nil {
			return nil, err
		}
		vals := make([]int64, n)
		for i := range vals {
			vals[i] = int64(binary.LittleEndian.Uint64(raw[8*i:]))
		}
		return tensor.FromSlice(vals, shape)
	case tensor.Uint8:
		if !useRaw {
			vals := make([]uint8, len(proto.Int32Data))
			for i, v := range proto.Int32Data {
				vals[i] = uint8(v)
			}
			return tensor.FromSlice(vals, shape)
		}
		if err := checkRaw(1); err != nil {
			return nil, err
		}
		return tensor.FromSlice(append([]uint8{}, raw...), shape)
	case tensor.Bool:
		vals := make([]bool, 0, n)
		if !useRaw {
			for _, v := range proto.Int32Data {
				vals = append(vals, v != 0)
			}
			return tensor.FromSlice(vals, shape)
		}
		if err := checkRaw(1); err != nil {
			return nil, err
		}
		for _, v := range raw {
			vals = append(vals, v != 0)
		}
		return tensor.FromSlice(vals, shape)
	default:
		return nil, fmt.Errorf("unsupported dtype %s", dtype)
	}
}

// TensorFromProto decodes a TensorProto into a tensor.
func TensorFromProto(proto *TensorProto) (*tensor.Tensor, error) {
	t, err := tensorFromProto(proto)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", proto.Name, err)
	}
	return t, nil
}

// ValueInfo builds a tensor ValueInfoProto. Negative dims become symbolic
// dims named by dimParam.
func ValueInfo(name string, dtype tensor.DataType, shape tensor.Shape, dimParam func(axis int) string) (ValueInfoProto, error) {
	elem, err := ElemType(dtype)
	if err != nil {
		return ValueInfoProto{}, fmt.Errorf("value %s: %w", name, err)
	}
	var dims []DimensionProto
	for i, d := range shape {
		if d < 0 {
			dims = append(dims, DimensionProto{DimParam: dimParam(i)})
			continue
		}
		dims = append(dims, DimensionProto{DimValue: int64(d)})
	}
	return ValueInfoProto{
		Name: name,
		Type: &TypeProto{TensorType: &TensorTypeProto{ElemType: elem, Shape: &TensorShapeProto{Dims: dims}}},
	}, nil
}

// valueSpec extracts dtype and shape from a ValueInfoProto; symbolic dims
// become -1. hasShape is false when the value declares no shape.
func valueSpec(v *ValueInfoProto) (dtype tensor.DataType, shape tensor.Shape, hasShape bool, err error) {
	if v.Type == nil || v.Type.TensorType == nil {
		return 0, nil, false, fmt.Errorf("value %s has no tensor type", v.Name)
	}
	dtype, err = DataTypeOf(v.Type.TensorType.ElemType)
	if err != nil {
		return 0, nil, false, fmt.Errorf("value %s: %w", v.Name, err)
	}
	if v.Type.TensorType.Shape == nil {
		return dtype, nil, false, nil
	}
	shape = make(tensor.Shape, len(v.Type.TensorType.Shape.Dims))
	for i, d := range v.Type.TensorType.Shape.Dims {
		if d.DimParam != "" {
			shape[i] = -1
			continue
		}
		shape[i] = int(d.DimValue)
	}
	return dtype, shape, true, nil
}
