package convert

import (
	"fmt"

	"github.com/born-ml/strops/internal/graph"
	"github.com/born-ml/strops/internal/onnx"
	"github.com/born-ml/strops/internal/tensor"
)

// unsqueezeAxesAsInput is the first default-domain opset where Unsqueeze
// takes axes as an input.
const unsqueezeAxesAsInput = 13

// Context is handed to op handlers. It owns the ONNX graph under
// construction and hands out collision-free names from a counter, so the
// same source graph always yields the same model.
type Context struct {
	opset   int64
	opsets  map[string]int64
	nodes   []onnx.NodeProto
	inits   []onnx.TensorProto
	names   map[string]bool
	counter int
}

func newContext(opset int64, opsets map[string]int64, reserved []string) *Context {
	c := &Context{opset: opset, opsets: opsets, names: make(map[string]bool, len(reserved))}
	for _, name := range reserved {
		c.names[name] = true
	}
	return c
}

// Opset returns the default-domain opset being targeted.
func (c *Context) Opset() int64 {
	return c.opset
}

// RequireDomain fails unless domain is among the imported opsets.
func (c *Context) RequireDomain(domain string) error {
	if _, ok := c.opsets[domain]; !ok {
		return fmt.Errorf("%w: domain %q is not in the extra opsets", ErrMissingOpset, domain)
	}
	return nil
}

// UniqueName returns base__N for the next free counter value.
func (c *Context) UniqueName(base string) string {
	for {
		c.counter++
		name := fmt.Sprintf("%s__%d", base, c.counter)
		if !c.names[name] {
			c.names[name] = true
			return name
		}
	}
}

// Const adds an initializer and returns its tensor name.
func (c *Context) Const(base string, value *tensor.Tensor) (string, error) {
	name := c.UniqueName(base)
	return name, c.namedConst(name, value)
}

func (c *Context) namedConst(name string, value *tensor.Tensor) error {
	p, err := onnx.TensorToProto(name, value)
	if err != nil {
		return err
	}
	c.inits = append(c.inits, *p)
	return nil
}

// Node describes an ONNX node to emit. Outputs default to one generated
// name.
type Node struct {
	Name    string
	OpType  string
	Domain  string
	Inputs  []string
	Outputs []string
	Attrs   []onnx.AttributeProto
}

// Add emits n and returns its output names.
func (c *Context) Add(n Node) []string {
	if n.Name == "" {
		n.Name = c.UniqueName(n.OpType)
	}
	if len(n.Outputs) == 0 {
		n.Outputs = []string{n.Name + ":0"}
	}
	c.nodes = append(c.nodes, onnx.NodeProto{
		Name:       n.Name,
		OpType:     n.OpType,
		Domain:     n.Domain,
		Inputs:     n.Inputs,
		Outputs:    n.Outputs,
		Attributes: n.Attrs,
	})
	return n.Outputs
}

// Unsqueeze inserts axes into x, passing axes the way the target opset
// expects.
func (c *Context) Unsqueeze(x string, axes ...int64) (string, error) {
	name := c.UniqueName("Unsqueeze")
	if c.opset >= unsqueezeAxesAsInput {
		axesName, err := c.Const(name+"_axes", tensor.Vector(axes...))
		if err != nil {
			return "", err
		}
		return c.Add(Node{Name: name, OpType: "Unsqueeze", Inputs: []string{x, axesName}})[0], nil
	}
	return c.Add(Node{Name: name, OpType: "Unsqueeze", Inputs: []string{x},
		Attrs: []onnx.AttributeProto{onnx.IntsAttr("axes", axes...)}})[0], nil
}

// InputName is the ONNX tensor name of a source value: its wire id.
func InputName(o graph.Output) string {
	return o.WireID()
}
