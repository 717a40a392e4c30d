package onnx

import (
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// ParseFile parses an ONNX model from file.
//
//nolint:gosec // G304: Path is provided by user, file inclusion is intentional for ONNX model loading
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	p := &parser{data: data}
	model := &ModelProto{}
	if err := p.readModelProto(model); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return model, nil
}

// parser decodes the protobuf wire format one field at a time.
type parser struct {
	data []byte
}

func (p *parser) more() bool {
	return len(p.data) > 0
}

func (p *parser) readTag() (protowire.Number, protowire.Type, error) {
	num, typ, n := protowire.ConsumeTag(p.data)
	if n < 0 {
		return 0, 0, fmt.Errorf("tag: %w", protowire.ParseError(n))
	}
	p.data = p.data[n:]
	return num, typ, nil
}

func (p *parser) readVarint(typ protowire.Type) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("expected varint, got wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(p.data)
	if n < 0 {
		return 0, fmt.Errorf("varint: %w", protowire.ParseError(n))
	}
	p.data = p.data[n:]
	return v, nil
}

func (p *parser) readInt64(typ protowire.Type) (int64, error) {
	v, err := p.readVarint(typ)
	return int64(v), err
}

func (p *parser) readBytes(typ protowire.Type) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, fmt.Errorf("expected length-delimited field, got wire type %d", typ)
	}
	v, n := protowire.ConsumeBytes(p.data)
	if n < 0 {
		return nil, fmt.Errorf("bytes: %w", protowire.ParseError(n))
	}
	p.data = p.data[n:]
	return v, nil
}

func (p *parser) readString(typ protowire.Type) (string, error) {
	b, err := p.readBytes(typ)
	return string(b), err
}

func (p *parser) readFloat(typ protowire.Type) (float32, error) {
	if typ != protowire.Fixed32Type {
		return 0, fmt.Errorf("expected fixed32, got wire type %d", typ)
	}
	v, n := protowire.ConsumeFixed32(p.data)
	if n < 0 {
		return 0, fmt.Errorf("fixed32: %w", protowire.ParseError(n))
	}
	p.data = p.data[n:]
	return math.Float32frombits(v), nil
}

func (p *parser) readSub(typ protowire.Type) (*parser, error) {
	b, err := p.readBytes(typ)
	if err != nil {
		return nil, err
	}
	return &parser{data: b}, nil
}

func (p *parser) skipField(num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, p.data)
	if n < 0 {
		return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
	}
	p.data = p.data[n:]
	return nil
}

// readInt64s appends one element or a packed run of varints.
func (p *parser) readInt64s(typ protowire.Type, dst []int64) ([]int64, error) {
	if typ == protowire.VarintType {
		v, err := p.readInt64(typ)
		return append(dst, v), err
	}
	sub, err := p.readSub(typ)
	if err != nil {
		return dst, err
	}
	for sub.more() {
		v, err := sub.readInt64(protowire.VarintType)
		if err != nil {
			return dst, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}

// readFloats appends one element or a packed run of fixed32 values.
func (p *parser) readFloats(typ protowire.Type, dst []float32) ([]float32, error) {
	if typ == protowire.Fixed32Type {
		v, err := p.readFloat(typ)
		return append(dst, v), err
	}
	sub, err := p.readSub(typ)
	if err != nil {
		return dst, err
	}
	for sub.more() {
		v, err := sub.readFloat(protowire.Fixed32Type)
		if err != nil {
			return dst, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}

// readDoubles appends one element or a packed run of fixed64 values.
func (p *parser) readDoubles(typ protowire.Type, dst []float64) ([]float64, error) {
	one := func(q *parser) (float64, error) {
		v, n := protowire.ConsumeFixed64(q.data)
		if n < 0 {
			return 0, fmt.Errorf("fixed64: %w", protowire.ParseError(n))
		}
		q.data = q.data[n:]
		return math.Float64frombits(v), nil
	}
	if typ == protowire.Fixed64Type {
		v, err := one(p)
		return append(dst, v), err
	}
	sub, err := p.readSub(typ)
	if err != nil {
		return dst, err
	}
	for sub.more() {
		v, err := one(sub)
		if err != nil {
			return dst, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}

// readModelProto reads ModelProto message.
//
//nolint:gocognit,gocyclo,cyclop // Protobuf parsing requires field-by-field switch logic for all ONNX message types
func (p *parser) readModelProto(m *ModelProto) error {
	for p.more() {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // ir_version
			m.IRVersion, err = p.readInt64(wireType)
		case 2: // producer_name
			m.ProducerName, err = p.readString(wireType)
		case 3: // producer_version
			m.ProducerVersion, err = p.readString(wireType)
		case 4: // domain
			m.Domain, err = p.readString(wireType)
		case 5: // model_version
			m.ModelVersion, err = p.readInt64(wireType)
		case 6: // doc_string
			m.DocString, err = p.readString(wireType)
		case 7: // graph
			var sub *parser
			if sub, err = p.readSub(wireType); err == nil {
				m.Graph = &GraphProto{}
				err = sub.readGraphProto(m.Graph)
			}
		case 8: // opset_import
			var sub *parser
			if sub, err = p.readSub(wireType); err == nil {
				opset := OperatorSetID{}
				err = sub.readOperatorSetID(&opset)
				m.OpsetImport = append(m.OpsetImport, opset)
			}
		case 14: // metadata_props
			var sub *parser
			if sub, err = p.readSub(wireType); err == nil {
				entry := StringStringEntry{}
				err = sub.readStringStringEntry(&entry)
				m.MetadataProps = append(m.MetadataProps, entry)
			}
		default:
			err = p.skipField(fieldNum, wireType)
		}

		if err != nil {
			return fmt.Errorf("model field %d: %w", fieldNum, err)
		}
	}
	return nil
}

// readGraphProto reads GraphProto message.
//
//nolint:gocognit,gocyclo,cyclop // Protobuf parsing requires field-by-field switch logic
func (p *parser) readGraphProto(m *GraphProto) error {
	for p.more() {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // node
			var sub *parser
			if sub, err = p.readSub(wireType); err == nil {
				node := NodeProto{}
				err = sub.readNodeProto(&node)
				m.Nodes = append(m.Nodes, node)
			}
		case 2: // name
			m.Name, err = p.readString(wireType)
		case 5: // initializer
			var sub *parser
			if sub, err = p.readSub(wireType); err == nil {
				t := TensorProto{}
				err = sub.readTensorProto(&t)
				m.Initializers = append(m.Initializers, t)
			}
		case 10: // doc_string
			m.DocString, err = p.readString(wireType)
		case 11, 12, 13: // input, output, value_info
			var sub *parser
			if sub, err = p.readSub(wireType); err == nil {
				vi := ValueInfoProto{}
				err = sub.readValueInfoProto(&vi)
				switch fieldNum {
				case 11:
					m.Inputs = append(m.Inputs, vi)
				case 12:
					m.Outputs = append(m.Outputs, vi)
				default:
					m.ValueInfo = append(m.ValueInfo, vi)
				}
			}
		default:
			err = p.skipField(fieldNum, wireType)
		}

		if err != nil {
			return fmt.Errorf("graph field %d: %w", fieldNum, err)
		}
	}
	return nil
}

// readNodeProto reads NodeProto message.
func (p *parser) readNodeProto(m *NodeProto) error {
	for p.more() {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}

		var s string
		switch fieldNum {
		case 1: // input
			if s, err = p.readString(wireType); err == nil {
				m.Inputs = append(m.Inputs, s)
			}
		case 2: // output
			if s, err = p.readString(wireType); err == nil {
				m.Outputs = append(m.Outputs, s)
			}
		case 3: // name
			m.Name, err = p.readString(wireType)
		case 4: // op_type
			m.OpType, err = p.readString(wireType)
		case 5: // attribute
			var sub *parser
			if sub, err = p.readSub(wireType); err == nil {
				attr := AttributeProto{}
				err = sub.readAttributeProto(&attr)
				m.Attributes = append(m.Attributes, attr)
			}
		case 6: // doc_string
			m.DocString, err = p.readString(wireType)
		case 7: // domain
			m.Domain, err = p.readString(wireType)
		default:
			err = p.skipField(fieldNum, wireType)
		}

		if err != nil {
			return fmt.Errorf("node field %d: %w", fieldNum, err)
		}
	}
	return nil
}

// readAttributeProto reads AttributeProto message.
//
//nolint:gocyclo,cyclop // Protobuf parsing requires field-by-field switch logic
func (p *parser) readAttributeProto(m *AttributeProto) error {
	for p.more() {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // name
			m.Name, err = p.readString(wireType)
		case 2: // f
			m.F, err = p.readFloat(wireType)
		case 3: // i
			m.I, err = p.readInt64(wireType)
		case 4: // s
			var b []byte
			if b, err = p.readBytes(wireType); err == nil {
				m.S = append([]byte{}, b...)
			}
		case 5: // t
			var sub *parser
			if sub, err = p.readSub(wireType); err == nil {
				m.T = &TensorProto{}
				err = sub.readTensorProto(m.T)
			}
		case 7: // floats
			m.Floats, err = p.readFloats(wireType, m.Floats)
		case 8: // ints
			m.Ints, err = p.readInt64s(wireType, m.Ints)
		case 9: // strings
			var b []byte
			if b, err = p.readBytes(wireType); err == nil {
				m.Strings = append(m.Strings, append([]byte{}, b...))
			}
		case 13: // doc_string
			m.DocString, err = p.readString(wireType)
		case 20: // type
			var v int64
			v, err = p.readInt64(wireType)
			m.Type = int32(v)
		default:
			err = p.skipField(fieldNum, wireType)
		}

		if err != nil {
			return fmt.Errorf("attribute field %d: %w", fieldNum, err)
		}
	}
	return nil
}

// readTensorProto reads TensorProto message.
//
//nolint:gocognit,gocyclo,cyclop // Protobuf parsing requires field-by-field switch logic
func (p *parser) readTensorProto(m *TensorProto) error {
	for p.more() {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // dims
			m.Dims, err = p.readInt64s(wireType, m.Dims)
		case 2: // data_type
			var v int64
			v, err = p.readInt64(wireType)
			m.DataType = int32(v)
		case 4: // float_data
			m.FloatData, err = p.readFloats(wireType, m.FloatData)
		case 5: // int32_data
			var vals []int64
			if vals, err = p.readInt64s(wireType, nil); err == nil {
				for _, v := range vals {
					m.Int32Data = append(m.Int32Data, int32(v))
				}
			}
		case 6: // string_data
			var b []byte
			if b, err = p.readBytes(wireType); err == nil {
				m.StringData = append(m.StringData, append([]byte{}, b...))
			}
		case 7: // int64_data
			m.Int64Data, err = p.readInt64s(wireType, m.Int64Data)
		case 8: // name
			m.Name, err = p.readString(wireType)
		case 9: // raw_data
			var b []byte
			if b, err = p.readBytes(wireType); err == nil {
				m.RawData = append([]byte{}, b...)
			}
		case 10: // double_data
			m.DoubleData, err = p.readDoubles(wireType, m.DoubleData)
		case 12: // doc_string
			m.DocString, err = p.readString(wireType)
		default:
			err = p.skipField(fieldNum, wireType)
		}

		if err != nil {
			return fmt.Errorf("tensor field %d: %w", fieldNum, err)
		}
	}
	return nil
}

// readValueInfoProto reads ValueInfoProto message.
func (p *parser) readValueInfoProto(m *ValueInfoProto) error {
	for p.more() {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // name
			m.Name, err = p.readString(wireType)
		case 2: // type
			var sub *parser
			if sub, err = p.readSub(wireType); err == nil {
				m.Type = &TypeProto{}
				err = sub.readTypeProto(m.Type)
			}
		case 3: // doc_string
			m.DocString, err = p.readString(wireType)
		default:
			err = p.skipField(fieldNum, wireType)
		}

		if err != nil {
			return fmt.Errorf("value_info field %d: %w", fieldNum, err)
		}
	}
	return nil
}

// readTypeProto reads TypeProto message. Only tensor types are modelled.
func (p *parser) readTypeProto(m *TypeProto) error {
	for p.more() {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // tensor_type
			var sub *parser
			if sub, err = p.readSub(wireType); err == nil {
				m.TensorType = &TensorTypeProto{}
				err = sub.readTensorTypeProto(m.TensorType)
			}
		default:
			err = p.skipField(fieldNum, wireType)
		}

		if err != nil {
			return err
		}
	}
	return nil
}

// readTensorTypeProto reads TypeProto.Tensor message.
func (p *parser) readTensorTypeProto(m *TensorTypeProto) error {
	for p.more() {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // elem_type
			var v int64
			v, err = p.readInt64(wireType)
			m.ElemType = int32(v)
		case 2: // shape
			var sub *parser
			if sub, err = p.readSub(wireType); err == nil {
				m.Shape = &TensorShapeProto{}
				err = sub.readTensorShapeProto(m.Shape)
			}
		default:
			err = p.skipField(fieldNum, wireType)
		}

		if err != nil {
			return err
		}
	}
	return nil
}

// readTensorShapeProto reads TensorShapeProto message.
func (p *parser) readTensorShapeProto(m *TensorShapeProto) error {
	for p.more() {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // dim
			var sub *parser
			if sub, err = p.readSub(wireType); err == nil {
				dim := DimensionProto{}
				err = sub.readDimensionProto(&dim)
				m.Dims = append(m.Dims, dim)
			}
		default:
			err = p.skipField(fieldNum, wireType)
		}

		if err != nil {
			return err
		}
	}
	return nil
}

// readDimensionProto reads TensorShapeProto.Dimension message.
func (p *parser) readDimensionProto(m *DimensionProto) error {
	for p.more() {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // dim_value
			m.DimValue, err = p.readInt64(wireType)
		case 2: // dim_param
			m.DimParam, err = p.readString(wireType)
		default:
			err = p.skipField(fieldNum, wireType)
		}

		if err != nil {
			return err
		}
	}
	return nil
}

// readOperatorSetID reads OperatorSetIdProto message.
func (p *parser) readOperatorSetID(m *OperatorSetID) error {
	for p.more() {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // domain
			m.Domain, err = p.readString(wireType)
		case 2: // version
			m.Version, err = p.readInt64(wireType)
		default:
			err = p.skipField(fieldNum, wireType)
		}

		if err != nil {
			return err
		}
	}
	return nil
}

// readStringStringEntry reads StringStringEntryProto message.
func (p *parser) readStringStringEntry(m *StringStringEntry) error {
	for p.more() {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // key
			m.Key, err = p.readString(wireType)
		case 2: // value
			m.Value, err = p.readString(wireType)
		default:
			err = p.skipField(fieldNum, wireType)
		}

		if err != nil {
			return err
		}
	}
	return nil
}
