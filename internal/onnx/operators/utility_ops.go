package operators

import (
	"fmt"

	"github.com/born-ml/strops/internal/tensor"
)

// registerUtilityOps adds utility operators to the registry.
func (r *Registry) registerUtilityOps() {
	r.Register(DefaultDomain, "Identity", handleIdentity)
	r.Register(DefaultDomain, "Constant", handleConstant)
}

func handleIdentity(_ *Context, _ *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("identity requires 1 input, got %d", len(inputs))
	}
	// Identity just passes through
	return inputs, nil
}

func handleConstant(_ *Context, node *Node, _ []*tensor.Tensor) ([]*tensor.Tensor, error) {
	for i := range node.Attributes {
		attr := &node.Attributes[i]
		switch attr.Name {
		case "value":
			if attr.T == nil {
				return nil, fmt.Errorf("constant: value attribute holds no tensor")
			}
			return []*tensor.Tensor{attr.T}, nil
		case "value_int":
			return []*tensor.Tensor{tensor.Scalar(attr.I)}, nil
		case "value_ints":
			return []*tensor.Tensor{tensor.Vector(append([]int64(nil), attr.Ints...)...)}, nil
		case "value_float":
			return []*tensor.Tensor{tensor.Scalar(attr.F)}, nil
		case "value_floats":
			return []*tensor.Tensor{tensor.Vector(append([]float32(nil), attr.Floats...)...)}, nil
		case "value_string":
			return []*tensor.Tensor{tensor.Scalar(string(attr.S))}, nil
		case "value_strings":
			values := make([]string, len(attr.Strings))
			for j, s := range attr.Strings {
				values[j] = string(s)
			}
			return []*tensor.Tensor{tensor.Vector(values...)}, nil
		}
	}
	return nil, fmt.Errorf("constant: no value attribute found")
}
