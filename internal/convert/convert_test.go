package convert

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/born-ml/strops/internal/contrib"
	"github.com/born-ml/strops/internal/graph"
	"github.com/born-ml/strops/internal/onnx"
	"github.com/born-ml/strops/internal/tensor"
)

func options(t *testing.T, outputs ...string) Options {
	opts := DefaultOptions()
	opts.OutputNames = outputs
	opts.Logger = zaptest.NewLogger(t)
	return opts
}

func opTypes(m *onnx.ModelProto) []string {
	ops := make([]string, len(m.Graph.Nodes))
	for i, n := range m.Graph.Nodes {
		ops[i] = n.OpType
	}
	return ops
}

func joinGraph() *graph.Graph {
	g := graph.New("join")
	a := g.Placeholder("input", tensor.String, tensor.Shape{2, 2})
	b := g.Placeholder("input1", tensor.String, tensor.Shape{2, 2})
	c := g.Placeholder("input2", tensor.String, tensor.Shape{})
	graph.Identity(graph.StringJoin([]graph.Output{a, b, c}, "±"), "output")
	return g
}

func runModel(t *testing.T, m *onnx.ModelProto, feed map[string]*tensor.Tensor, outputs ...string) []*tensor.Tensor {
	t.Helper()
	opts := onnx.DefaultSessionOptions()
	opts.RegisterCustomOpsLibrary(contrib.Library())
	sess, err := onnx.NewSession(onnx.Marshal(m), opts)
	require.NoError(t, err)
	defer sess.Close()
	out, err := sess.Run(outputs, feed)
	require.NoError(t, err)
	return out
}

func TestConvertStringJoin(t *testing.T) {
	m, err := Convert(joinGraph(), options(t, "output:0"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Unsqueeze", "Unsqueeze", "Shape", "Expand", "Unsqueeze", "Concat", "StringJoin", "Identity"}, opTypes(m))
	assert.Equal(t, int64(13), m.OpsetVersion(""))
	assert.Equal(t, int64(1), m.OpsetVersion(contrib.Domain))
	assert.Equal(t, int64(onnx.DefaultIRVersion), m.IRVersion)
	require.Len(t, m.Graph.Inputs, 3)
	assert.Equal(t, "input2:0", m.Graph.Inputs[2].Name)
	assert.Equal(t, "output:0", m.Graph.Outputs[0].Name)

	join := m.Graph.Nodes[6]
	assert.Equal(t, contrib.Domain, join.Domain)
	assert.Equal(t, []string{"StringJoin:0"}, join.Outputs, "source outputs keep their wire ids")

	feed := map[string]*tensor.Tensor{
		"input:0":  tensor.Must(tensor.FromSlice([]string{"a", "Test 1 2 3", "Hi there", "test test"}, tensor.Shape{2, 2})),
		"input1:0": tensor.Must(tensor.FromSlice([]string{"b", "Test 1 2 3", "Hi there", "suits ♠♣♥♦"}, tensor.Shape{2, 2})),
		"input2:0": tensor.Scalar("Some scalar text"),
	}
	out := runModel(t, m, feed, "output:0")
	assert.Equal(t, tensor.Shape{2, 2}, out[0].Shape())
	assert.Equal(t, "test test±suits ♠♣♥♦±Some scalar text", out[0].Strings()[3])
}

func TestConvertJoinOfScalars(t *testing.T) {
	g := graph.New("scalars")
	a := g.Placeholder("a", tensor.String, tensor.Shape{})
	b := g.Placeholder("b", tensor.String, tensor.Shape{})
	graph.Identity(graph.StringJoin([]graph.Output{a, b}, "-"), "output")

	m, err := Convert(g, options(t, "output:0"))
	require.NoError(t, err)
	assert.NotContains(t, opTypes(m), "Expand")

	out := runModel(t, m, map[string]*tensor.Tensor{"a:0": tensor.Scalar("x"), "b:0": tensor.Scalar("y")}, "output:0")
	assert.Equal(t, tensor.Shape{}, out[0].Shape())
	assert.Equal(t, []string{"x-y"}, out[0].Strings())
}

func TestUnsqueezeFollowsOpset(t *testing.T) {
	for _, opset := range []int64{12, 13} {
		opts := options(t, "output:0")
		opts.Opset = opset
		m, err := Convert(joinGraph(), opts)
		require.NoError(t, err)

		u := m.Graph.Nodes[0]
		require.Equal(t, "Unsqueeze", u.OpType)
		if opset >= 13 {
			assert.Len(t, u.Inputs, 2, "axes is an input from opset 13")
			assert.Empty(t, u.Attributes)
		} else {
			assert.Len(t, u.Inputs, 1)
			require.Len(t, u.Attributes, 1)
			assert.Equal(t, []int64{0}, u.Attributes[0].Ints)
		}
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	first, err := Convert(joinGraph(), options(t, "output:0"))
	require.NoError(t, err)
	second, err := Convert(joinGraph(), options(t, "output:0"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(onnx.Marshal(first), onnx.Marshal(second)))
}

func TestConvertStringSplit(t *testing.T) {
	g := graph.New("split")
	x := g.Placeholder("input", tensor.String, tensor.Shape{2, 2})
	r := graph.StringSplit(x, " ")
	graph.Identity(r.FlatValues(), "output")

	m, err := Convert(g, options(t, "output:0"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Reshape", "Unsqueeze", "StringSplit", "Identity"}, opTypes(m))

	split := m.Graph.Nodes[2]
	assert.Equal(t, []string{"StringSplitV2:0", "StringSplitV2:1", "StringSplitV2:2"}, split.Outputs)
	require.Len(t, split.Inputs, 3)

	feed := map[string]*tensor.Tensor{
		"input:0": tensor.Must(tensor.FromSlice([]string{"a", "Test 1 2 3", "Hi there", "test test"}, tensor.Shape{2, 2})),
	}
	out := runModel(t, m, feed, "output:0")
	assert.Equal(t, []string{"a", "Test", "1", "2", "3", "Hi", "there", "test", "test"}, out[0].Strings())
}

func TestConvertHashBucketAndRegex(t *testing.T) {
	g := graph.New("mixed")
	x := g.Placeholder("input", tensor.String, tensor.Shape{3})
	graph.Identity(graph.StringToHashBucketFast(x, 20), "hash")
	graph.Identity(graph.RegexReplace(x, " ", "_", false), "regex")

	m, err := Convert(g, options(t, "hash:0", "regex:0"))
	require.NoError(t, err)
	assert.Equal(t, []string{"StringToHashBucketFast", "Identity", "StringRegexReplace", "Identity"}, opTypes(m))

	regex := m.Graph.Nodes[2]
	require.Len(t, regex.Attributes, 1)
	assert.Equal(t, "global_replace", regex.Attributes[0].Name)
	assert.Equal(t, int64(0), regex.Attributes[0].I)

	out := runModel(t, m, map[string]*tensor.Tensor{"input:0": tensor.Vector("a b c", "x", "")}, "regex:0", "hash:0")
	assert.Equal(t, []string{"a_b c", "x", ""}, out[0].Strings())
	assert.Equal(t, tensor.Int64, out[1].DType())
}

func TestConvertPrunesUnrequestedNodes(t *testing.T) {
	g := graph.New("prune")
	x := g.Placeholder("input", tensor.String, tensor.Shape{2})
	unused := g.Placeholder("unused", tensor.String, tensor.Shape{2})
	graph.Identity(graph.StringUpper(x, ""), "upper")
	graph.Identity(graph.StringLower(unused, "utf-8"), "lower")

	m, err := Convert(g, options(t, "upper:0"))
	require.NoError(t, err, "the unconvertible branch is not requested")
	assert.Equal(t, []string{"StringUpper", "Identity"}, opTypes(m))
	require.Len(t, m.Graph.Inputs, 1)
	assert.Equal(t, "input:0", m.Graph.Inputs[0].Name)

	opts := options(t, "upper:0")
	opts.InputNames = []string{"input:0", "unused:0"}
	m, err = Convert(g, opts)
	require.NoError(t, err)
	assert.Len(t, m.Graph.Inputs, 2, "listed inputs are kept even when unused")
}

func TestConvertErrors(t *testing.T) {
	build := func(fn func(g *graph.Graph, x graph.Output)) *graph.Graph {
		g := graph.New("errors")
		x := g.Placeholder("input", tensor.String, tensor.Shape{2})
		fn(g, x)
		return g
	}
	upper := build(func(_ *graph.Graph, x graph.Output) { graph.Identity(graph.StringUpper(x, ""), "output") })

	tests := []struct {
		name    string
		graph   *graph.Graph
		opts    func(o *Options)
		wantErr error
	}{
		{
			name:    "contrib domain missing",
			graph:   upper,
			opts:    func(o *Options) { o.ExtraOpset = nil },
			wantErr: ErrMissingOpset,
		},
		{
			name:    "utf-8 case mapping",
			graph:   build(func(_ *graph.Graph, x graph.Output) { graph.Identity(graph.StringLower(x, "utf-8"), "output") }),
			wantErr: ErrUnsupported,
		},
		{
			name:    "maxsplit",
			graph:   build(func(_ *graph.Graph, x graph.Output) { graph.Identity(graph.StringSplitN(x, " ", 1).FlatValues(), "output") }),
			wantErr: ErrUnsupported,
		},
		{
			name:    "empty separator",
			graph:   build(func(_ *graph.Graph, x graph.Output) { graph.Identity(graph.StringSplit(x, "").FlatValues(), "output") }),
			wantErr: ErrUnsupported,
		},
		{
			name: "regex with tensor pattern is fine but unknown outputs are not",
			graph: build(func(g *graph.Graph, x graph.Output) {
				graph.Identity(graph.RegexReplaceT(x, g.Const("p", tensor.Scalar("a")), g.Const("r", tensor.Scalar("b")), true), "output")
			}),
			opts:    func(o *Options) { o.OutputNames = []string{"nope:0"} },
			wantErr: ErrInvalidGraph,
		},
		{
			name:    "opset too old",
			graph:   upper,
			opts:    func(o *Options) { o.Opset = 7 },
			wantErr: ErrInvalidOption,
		},
		{
			name:    "duplicate extra opset",
			graph:   upper,
			opts:    func(o *Options) { o.ExtraOpset = append(o.ExtraOpset, o.ExtraOpset[0]) },
			wantErr: ErrInvalidOption,
		},
		{
			name:    "no outputs",
			graph:   upper,
			opts:    func(o *Options) { o.OutputNames = nil },
			wantErr: ErrInvalidOption,
		},
		{
			name:    "input is not a placeholder",
			graph:   upper,
			opts:    func(o *Options) { o.InputNames = []string{"output:0"} },
			wantErr: ErrInvalidOption,
		},
		{
			name: "needed placeholder not listed",
			graph: build(func(g *graph.Graph, x graph.Output) {
				y := g.Placeholder("other", tensor.String, tensor.Shape{2})
				graph.Identity(graph.StringJoin([]graph.Output{x, y}, ""), "output")
			}),
			opts:    func(o *Options) { o.InputNames = []string{"input:0"} },
			wantErr: ErrInvalidGraph,
		},
		{
			name:    "graph with sticky error",
			graph:   build(func(_ *graph.Graph, x graph.Output) { graph.StringToHashBucketFast(x, 0) }),
			wantErr: ErrInvalidGraph,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := options(t, "output:0")
			if tt.opts != nil {
				tt.opts(&opts)
			}
			_, err := Convert(tt.graph, opts)
			require.ErrorIs(t, err, tt.wantErr)
			var convErr *Error
			assert.ErrorAs(t, err, &convErr)
		})
	}
}

func TestSupportedOps(t *testing.T) {
	ops := SupportedOps()
	for _, op := range []string{"Const", "Placeholder", "StaticRegexReplace", "StringJoin", "StringSplitV2", "StringToHashBucketFast"} {
		assert.Contains(t, ops, op)
	}
}
