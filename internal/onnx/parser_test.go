package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/born-ml/strops/internal/tensor"
)

// TestParseHandBuiltModel parses bytes built field by field, independent of Marshal.
func TestParseHandBuiltModel(t *testing.T) {
	data := buildJoinModel()

	model, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if model.IRVersion != 7 {
		t.Errorf("Expected IR version 7, got %d", model.IRVersion)
	}
	if model.ProducerName != "handmade" {
		t.Errorf("Expected producer 'handmade', got %q", model.ProducerName)
	}
	if got := model.OpsetVersion("ai.onnx.contrib"); got != 1 {
		t.Errorf("Expected contrib opset 1, got %d", got)
	}
	if got := model.OpsetVersion("ai.onnx"); got != 13 {
		t.Errorf("Expected default opset 13 through the alias, got %d", got)
	}

	if model.Graph == nil {
		t.Fatal("Graph is nil")
	}
	if len(model.Graph.Nodes) != 1 {
		t.Fatalf("Expected 1 node, got %d", len(model.Graph.Nodes))
	}

	node := model.Graph.Nodes[0]
	if node.OpType != "StringJoin" || node.Domain != "ai.onnx.contrib" {
		t.Errorf("Expected ai.onnx.contrib::StringJoin, got %s::%s", node.Domain, node.OpType)
	}
	if diff := cmp.Diff([]string{"text:0", "sep", "axis"}, node.Inputs); diff != "" {
		t.Errorf("inputs (-want +got):\n%s", diff)
	}

	if len(model.Graph.Initializers) != 1 {
		t.Fatalf("Expected 1 initializer, got %d", len(model.Graph.Initializers))
	}
	sep := model.Graph.Initializers[0]
	if sep.DataType != TensorProtoString {
		t.Errorf("Expected string initializer, got %d", sep.DataType)
	}
	if len(sep.StringData) != 1 || string(sep.StringData[0]) != "±" {
		t.Errorf("Expected string_data [±], got %q", sep.StringData)
	}

	if len(model.Graph.Inputs) != 1 {
		t.Fatalf("Expected 1 input, got %d", len(model.Graph.Inputs))
	}
	dims := model.Graph.Inputs[0].Type.TensorType.Shape.Dims
	if len(dims) != 2 || dims[0].DimParam != "unk__0" || dims[1].DimValue != 2 {
		t.Errorf("Unexpected input dims %+v", dims)
	}
}

func TestParseAttributes(t *testing.T) {
	var attr []byte
	attr = protowire.AppendTag(attr, 1, protowire.BytesType)
	attr = protowire.AppendString(attr, "axes")
	// Unpacked repeated ints must be accepted as well as packed.
	attr = protowire.AppendTag(attr, 8, protowire.VarintType)
	attr = protowire.AppendVarint(attr, 0)
	attr = protowire.AppendTag(attr, 8, protowire.VarintType)
	attr = protowire.AppendVarint(attr, 2)
	attr = protowire.AppendTag(attr, 20, protowire.VarintType)
	attr = protowire.AppendVarint(attr, AttributeProtoInts)
	// Unknown fields are skipped.
	attr = protowire.AppendTag(attr, 99, protowire.BytesType)
	attr = protowire.AppendString(attr, "ignored")

	var node []byte
	node = protowire.AppendTag(node, 4, protowire.BytesType)
	node = protowire.AppendString(node, "Unsqueeze")
	node = protowire.AppendTag(node, 5, protowire.BytesType)
	node = protowire.AppendBytes(node, attr)

	var graph []byte
	graph = protowire.AppendTag(graph, 1, protowire.BytesType)
	graph = protowire.AppendBytes(graph, node)

	var model []byte
	model = protowire.AppendTag(model, 7, protowire.BytesType)
	model = protowire.AppendBytes(model, graph)

	m, err := Parse(model)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	a := m.Graph.Nodes[0].Attributes[0]
	if a.Name != "axes" || a.Type != AttributeProtoInts {
		t.Errorf("Unexpected attribute %+v", a)
	}
	if diff := cmp.Diff([]int64{0, 2}, a.Ints); diff != "" {
		t.Errorf("ints (-want +got):\n%s", diff)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	sep, err := TensorToProto("sep", tensor.Vector("±"))
	if err != nil {
		t.Fatal(err)
	}
	buckets, err := TensorToProto("buckets", tensor.Vector[int64](20))
	if err != nil {
		t.Fatal(err)
	}
	in, err := ValueInfo("input:0", tensor.String, tensor.Shape{-1, 2}, func(int) string { return "unk__0" })
	if err != nil {
		t.Fatal(err)
	}
	scalar, err := ValueInfo("scalar:0", tensor.String, tensor.Shape{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	original := &ModelProto{
		IRVersion:    DefaultIRVersion,
		ProducerName: "strops",
		OpsetImport:  []OperatorSetID{{Version: 13}, {Domain: "ai.onnx.contrib", Version: 1}},
		Graph: &GraphProto{
			Name: "roundtrip",
			Nodes: []NodeProto{{
				Name:    "Unsqueeze__1",
				OpType:  "Unsqueeze",
				Inputs:  []string{"input:0", ""},
				Outputs: []string{"u"},
				Attributes: []AttributeProto{
					IntsAttr("axes", 0),
					IntAttr("global_replace", 0),
					StringAttr("encoding", ""),
					TensorAttr("value", sep),
				},
			}},
			Initializers: []TensorProto{*sep, *buckets},
			Inputs:       []ValueInfoProto{in, scalar},
			Outputs:      []ValueInfoProto{in},
		},
	}

	data := Marshal(original)
	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if diff := cmp.Diff(original, parsed); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
	if string(Marshal(parsed)) != string(data) {
		t.Error("re-marshal is not byte-identical")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	if err := os.WriteFile(path, buildJoinModel(), 0o600); err != nil {
		t.Fatal(err)
	}

	model, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if model.Graph == nil || model.Graph.Name != "join" {
		t.Errorf("Unexpected graph %+v", model.Graph)
	}
}

func TestParseInvalidFile(t *testing.T) {
	if _, err := ParseFile("nonexistent.onnx"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestParseTruncatedData(t *testing.T) {
	data := buildJoinModel()
	if _, err := Parse(data[:len(data)-3]); err == nil {
		t.Error("Expected error for truncated data")
	}
}

func TestParseEmptyData(t *testing.T) {
	model, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse of empty data failed: %v", err)
	}
	if model.Graph != nil {
		t.Error("Expected no graph for empty data")
	}
}

// buildJoinModel creates text:0 [?,2] -> contrib StringJoin(text, sep, axis).
func buildJoinModel() []byte {
	b := &protoBuilder{}
	b.varint(1, 7)
	b.str(2, "handmade")
	b.message(7, buildJoinGraph())
	b.message(8, buildOpset("", 13))
	b.message(8, buildOpset("ai.onnx.contrib", 1))
	return b.buf
}

func buildOpset(domain string, version int64) []byte {
	b := &protoBuilder{}
	if domain != "" {
		b.str(1, domain)
	}
	b.varint(2, version)
	return b.buf
}

func buildJoinGraph() []byte {
	node := &protoBuilder{}
	node.str(1, "text:0")
	node.str(1, "sep")
	node.str(1, "axis")
	node.str(2, "output:0")
	node.str(3, "StringJoin__3")
	node.str(4, "StringJoin")
	node.str(7, "ai.onnx.contrib")

	sep := &protoBuilder{}
	sep.varint(1, 1)
	sep.varint(2, TensorProtoString)
	sep.str(6, "±")
	sep.str(8, "sep")

	g := &protoBuilder{}
	g.message(1, node.buf)
	g.str(2, "join")
	g.message(5, sep.buf)
	g.message(11, buildValueInfo("text:0", TensorProtoString, "unk__0", 2))
	g.message(12, buildValueInfo("output:0", TensorProtoString, "unk__0"))
	return g.buf
}

// buildValueInfo describes a tensor whose first dim is symbolic.
func buildValueInfo(name string, dtype int32, firstDim string, rest ...int64) []byte {
	shape := &protoBuilder{}
	first := &protoBuilder{}
	first.str(2, firstDim)
	shape.message(1, first.buf)
	for _, d := range rest {
		dim := &protoBuilder{}
		dim.varint(1, d)
		shape.message(1, dim.buf)
	}

	tt := &protoBuilder{}
	tt.varint(1, int64(dtype))
	tt.message(2, shape.buf)

	typ := &protoBuilder{}
	typ.message(1, tt.buf)

	vi := &protoBuilder{}
	vi.str(1, name)
	vi.message(2, typ.buf)
	return vi.buf
}

// protoBuilder writes protobuf fields for tests.
type protoBuilder struct {
	buf []byte
}

func (b *protoBuilder) varint(num protowire.Number, v int64) {
	b.buf = protowire.AppendTag(b.buf, num, protowire.VarintType)
	b.buf = protowire.AppendVarint(b.buf, uint64(v))
}

func (b *protoBuilder) str(num protowire.Number, s string) {
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendString(b.buf, s)
}

func (b *protoBuilder) message(num protowire.Number, msg []byte) {
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, msg)
}
