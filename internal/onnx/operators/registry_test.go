package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/born-ml/strops/internal/tensor"
)

func newCtx(opset int64) *Context {
	return &Context{Opset: opset, Logger: zap.NewNop()}
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()

	essentialOps := []string{
		"Identity", "Constant",
		"Reshape", "Shape", "Size", "Expand",
		"Squeeze", "Unsqueeze", "Concat",
	}

	for _, op := range essentialOps {
		if _, ok := r.Get(DefaultDomain, op); !ok {
			t.Errorf("Expected operator %s to be registered", op)
		}
		if _, ok := r.Get("ai.onnx", op); !ok {
			t.Errorf("Expected operator %s under the ai.onnx alias", op)
		}
	}
	assert.Equal(t, []string{DefaultDomain}, r.Domains())
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Get(DefaultDomain, "UnknownOp"); ok {
		t.Error("Expected unknown operator to not be found")
	}
	_, err := r.Execute(newCtx(13), &Node{OpType: "StringJoin", Domain: "ai.onnx.contrib"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai.onnx.contrib::StringJoin")
}

func TestRegisterLibrary(t *testing.T) {
	r := NewRegistry()
	called := false
	lib := &Library{
		Name:    "test",
		Domain:  "test.domain",
		Version: 1,
		Ops: map[string]OpHandler{
			"Echo": func(_ *Context, _ *Node, in []*tensor.Tensor) ([]*tensor.Tensor, error) {
				called = true
				return in, nil
			},
		},
	}
	require.NoError(t, r.RegisterLibrary(lib))
	assert.True(t, r.HasDomain("test.domain"))
	assert.Equal(t, []string{"Echo"}, r.SupportedOps("test.domain"))

	got, ok := r.Library("test.domain")
	require.True(t, ok)
	assert.Equal(t, "test", got.Name)

	out, err := r.Execute(newCtx(13), &Node{OpType: "Echo", Domain: "test.domain"}, []*tensor.Tensor{tensor.Scalar("x")})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, []string{"x"}, out[0].Strings())

	assert.Error(t, r.RegisterLibrary(lib), "a domain is served by one library")
	assert.Error(t, r.RegisterLibrary(&Library{Name: "std", Domain: "ai.onnx"}))
	assert.Error(t, r.RegisterLibrary(nil))
}

func TestUnsqueezeAxesByOpset(t *testing.T) {
	r := NewRegistry()
	x := tensor.Vector("a", "b")

	attrNode := &Node{OpType: "Unsqueeze", Attributes: []Attribute{{Name: "axes", Ints: []int64{0}}}}
	out, err := r.Execute(newCtx(12), attrNode, []*tensor.Tensor{x})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2}, out[0].Shape())

	inputNode := &Node{OpType: "Unsqueeze"}
	out, err = r.Execute(newCtx(13), inputNode, []*tensor.Tensor{x, tensor.Vector[int64](-1)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1}, out[0].Shape())

	_, err = r.Execute(newCtx(12), inputNode, []*tensor.Tensor{x, tensor.Vector[int64](0)})
	require.Error(t, err, "axes input is rejected before opset 13")

	_, err = r.Execute(newCtx(13), inputNode, []*tensor.Tensor{x})
	require.Error(t, err, "unsqueeze needs axes")
}

func TestSqueeze(t *testing.T) {
	r := NewRegistry()
	x := tensor.Must(tensor.FromSlice([]string{"a", "b"}, tensor.Shape{1, 2, 1}))

	out, err := r.Execute(newCtx(13), &Node{OpType: "Squeeze"}, []*tensor.Tensor{x})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2}, out[0].Shape())

	out, err = r.Execute(newCtx(13), &Node{OpType: "Squeeze"}, []*tensor.Tensor{x, tensor.Vector[int64](0)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1}, out[0].Shape())

	_, err = r.Execute(newCtx(13), &Node{OpType: "Squeeze"}, []*tensor.Tensor{x, tensor.Vector[int64](1)})
	require.Error(t, err)
}

func TestExpandAndShape(t *testing.T) {
	r := NewRegistry()
	grid := tensor.Must(tensor.FromSlice([]string{"a", "b", "c", "d"}, tensor.Shape{2, 2}))

	shape, err := r.Execute(newCtx(13), &Node{OpType: "Shape"}, []*tensor.Tensor{grid})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 2}, shape[0].Int64s())

	out, err := r.Execute(newCtx(13), &Node{OpType: "Expand"}, []*tensor.Tensor{tensor.Scalar("s"), shape[0]})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, out[0].Shape())
	assert.Equal(t, []string{"s", "s", "s", "s"}, out[0].Strings())

	size, err := r.Execute(newCtx(13), &Node{OpType: "Size"}, []*tensor.Tensor{grid})
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, size[0].Int64s())
}

func TestReshapeCopiesZeroDims(t *testing.T) {
	r := NewRegistry()
	grid := tensor.Must(tensor.FromSlice([]string{"a", "b", "c", "d", "e", "f"}, tensor.Shape{2, 3}))

	out, err := r.Execute(newCtx(13), &Node{OpType: "Reshape"}, []*tensor.Tensor{grid, tensor.Vector[int64](0, -1)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, out[0].Shape())

	out, err = r.Execute(newCtx(13), &Node{OpType: "Reshape"}, []*tensor.Tensor{grid, tensor.Vector[int64](-1)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{6}, out[0].Shape())
}

func TestConcatAndConstant(t *testing.T) {
	r := NewRegistry()
	concat := &Node{OpType: "Concat", Attributes: []Attribute{{Name: "axis", I: 0}}}
	a := tensor.Must(tensor.FromSlice([]string{"a", "b"}, tensor.Shape{1, 2}))
	b := tensor.Must(tensor.FromSlice([]string{"c", "d"}, tensor.Shape{1, 2}))

	out, err := r.Execute(newCtx(13), concat, []*tensor.Tensor{a, b})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, out[0].Shape())
	assert.Equal(t, []string{"a", "b", "c", "d"}, out[0].Strings())

	_, err = r.Execute(newCtx(13), &Node{OpType: "Concat"}, []*tensor.Tensor{a, b})
	require.Error(t, err, "axis is required")

	constant := &Node{OpType: "Constant", Attributes: []Attribute{{Name: "value", T: tensor.Vector("±")}}}
	out, err = r.Execute(newCtx(13), constant, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"±"}, out[0].Strings())
}
