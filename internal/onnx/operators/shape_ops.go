package operators

import (
	"fmt"
	"sort"

	"github.com/born-ml/strops/internal/tensor"
)

// unsqueezeAxesAsInput is the first opset where Squeeze and Unsqueeze take
// axes as an input instead of an attribute.
const unsqueezeAxesAsInput = 13

// registerShapeOps adds shape manipulation operators to the registry.
func (r *Registry) registerShapeOps() {
	r.Register(DefaultDomain, "Reshape", handleReshape)
	r.Register(DefaultDomain, "Shape", handleShape)
	r.Register(DefaultDomain, "Size", handleSize)
	r.Register(DefaultDomain, "Expand", handleExpand)
	r.Register(DefaultDomain, "Squeeze", handleSqueeze)
	r.Register(DefaultDomain, "Unsqueeze", handleUnsqueeze)
	r.Register(DefaultDomain, "Concat", handleConcat)
}

func toShape(values []int64) tensor.Shape {
	s := make(tensor.Shape, len(values))
	for i, v := range values {
		s[i] = int(v)
	}
	return s
}

func handleReshape(_ *Context, node *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("reshape requires 2 inputs (data, shape), got %d", len(inputs))
	}

	shapeData, err := inputs[1].AsInt64s()
	if err != nil {
		return nil, fmt.Errorf("reshape: shape input: %w", err)
	}
	newShape := toShape(shapeData)

	// With allowzero unset, a 0 copies the matching input dimension.
	if GetAttrInt(node, "allowzero", 0) == 0 {
		for i, dim := range newShape {
			if dim == 0 && i < inputs[0].Rank() {
				newShape[i] = inputs[0].Shape()[i]
			}
		}
	}

	result, err := inputs[0].Reshape(newShape)
	if err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	return []*tensor.Tensor{result}, nil
}

func handleShape(_ *Context, _ *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("shape requires 1 input, got %d", len(inputs))
	}

	dims := make([]int64, inputs[0].Rank())
	for i, d := range inputs[0].Shape() {
		dims[i] = int64(d)
	}
	return []*tensor.Tensor{tensor.Vector(dims...)}, nil
}

func handleSize(_ *Context, _ *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("size requires 1 input, got %d", len(inputs))
	}
	return []*tensor.Tensor{tensor.Scalar(int64(inputs[0].Len()))}, nil
}

func handleExpand(_ *Context, _ *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("expand requires 2 inputs (data, shape), got %d", len(inputs))
	}

	shapeData, err := inputs[1].AsInt64s()
	if err != nil {
		return nil, fmt.Errorf("expand: shape input: %w", err)
	}

	// Expand broadcasts in both directions: the result is the broadcast of
	// the input shape and the requested shape.
	target, _, err := tensor.BroadcastShapes(inputs[0].Shape(), toShape(shapeData))
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}
	result, err := inputs[0].BroadcastTo(target)
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}
	return []*tensor.Tensor{result}, nil
}

// readAxes returns the axes of a Squeeze or Unsqueeze node. From opset 13
// they come from the optional second input, before that from the attribute.
func readAxes(ctx *Context, node *Node, inputs []*tensor.Tensor) ([]int, error) {
	var raw []int64
	if ctx != nil && ctx.Opset >= unsqueezeAxesAsInput {
		if len(inputs) >= 2 && inputs[1] != nil {
			v, err := inputs[1].AsInt64s()
			if err != nil {
				return nil, fmt.Errorf("axes input: %w", err)
			}
			raw = v
		}
	} else {
		if len(inputs) > 1 {
			return nil, fmt.Errorf("axes must be an attribute before opset %d", unsqueezeAxesAsInput)
		}
		raw = GetAttrInts(node, "axes")
	}

	axes := make([]int, len(raw))
	for i, v := range raw {
		axes[i] = int(v)
	}
	return axes, nil
}

func normalizeAxes(axes []int, rank int) ([]int, error) {
	out := make([]int, len(axes))
	seen := make(map[int]bool, len(axes))
	for i, a := range axes {
		if a < 0 {
			a += rank
		}
		if a < 0 || a >= rank {
			return nil, fmt.Errorf("axis %d out of range for rank %d", axes[i], rank)
		}
		if seen[a] {
			return nil, fmt.Errorf("duplicate axis %d", axes[i])
		}
		seen[a] = true
		out[i] = a
	}
	sort.Ints(out)
	return out, nil
}

func handleSqueeze(ctx *Context, node *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(inputs) < 1 {
		return nil, fmt.Errorf("squeeze requires at least 1 input, got %d", len(inputs))
	}

	axes, err := readAxes(ctx, node, inputs)
	if err != nil {
		return nil, fmt.Errorf("squeeze: %w", err)
	}

	in := inputs[0]
	drop := make(map[int]bool)
	if len(axes) == 0 {
		for i, d := range in.Shape() {
			if d == 1 {
				drop[i] = true
			}
		}
	} else {
		norm, err := normalizeAxes(axes, in.Rank())
		if err != nil {
			return nil, fmt.Errorf("squeeze: %w", err)
		}
		for _, a := range norm {
			if in.Shape()[a] != 1 {
				return nil, fmt.Errorf("squeeze: dimension %d has size %d", a, in.Shape()[a])
			}
			drop[a] = true
		}
	}

	shape := make(tensor.Shape, 0, in.Rank())
	for i, d := range in.Shape() {
		if !drop[i] {
			shape = append(shape, d)
		}
	}
	result, err := in.Reshape(shape)
	if err != nil {
		return nil, fmt.Errorf("squeeze: %w", err)
	}
	return []*tensor.Tensor{result}, nil
}

func handleUnsqueeze(ctx *Context, node *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(inputs) < 1 {
		return nil, fmt.Errorf("unsqueeze requires at least 1 input, got %d", len(inputs))
	}

	axes, err := readAxes(ctx, node, inputs)
	if err != nil {
		return nil, fmt.Errorf("unsqueeze: %w", err)
	}
	if len(axes) == 0 {
		return nil, fmt.Errorf("unsqueeze requires axes")
	}

	in := inputs[0]
	outRank := in.Rank() + len(axes)
	norm, err := normalizeAxes(axes, outRank)
	if err != nil {
		return nil, fmt.Errorf("unsqueeze: %w", err)
	}

	shape := make(tensor.Shape, 0, outRank)
	src := 0
	next := 0
	for i := 0; i < outRank; i++ {
		if next < len(norm) && norm[next] == i {
			shape = append(shape, 1)
			next++
			continue
		}
		shape = append(shape, in.Shape()[src])
		src++
	}
	result, err := in.Reshape(shape)
	if err != nil {
		return nil, fmt.Errorf("unsqueeze: %w", err)
	}
	return []*tensor.Tensor{result}, nil
}

func handleConcat(_ *Context, node *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(inputs) < 1 {
		return nil, fmt.Errorf("concat requires at least 1 input")
	}
	if !HasAttr(node, "axis") {
		return nil, fmt.Errorf("concat requires the axis attribute")
	}

	axis := int(GetAttrInt(node, "axis", 0))

	result, err := tensor.Concat(inputs, axis)
	if err != nil {
		return nil, fmt.Errorf("concat: %w", err)
	}
	return []*tensor.Tensor{result}, nil
}
