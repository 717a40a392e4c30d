// Package graph is the source representation: a small TensorFlow-style
// dataflow graph of string operators, built through plain functions over
// symbolic Outputs and executed by a Session.
//
// Builder functions never panic. The first construction error is recorded
// on the Graph and returned by Err; later builder calls on an errored graph
// are no-ops that return the zero Output.
package graph

import (
	"fmt"
	"sort"

	"github.com/born-ml/strops/internal/tensor"
)

// OutputSpec is the static type of one node output. Unknown dims are -1.
type OutputSpec struct {
	DType tensor.DataType
	Shape tensor.Shape
}

// Node is a single operation.
type Node struct {
	graph   *Graph
	name    string
	op      string
	inputs  []Output
	attrs   map[string]any
	outputs []OutputSpec
}

// Name returns the unique node name.
func (n *Node) Name() string { return n.name }

// Op returns the operation type (e.g. "StringJoin").
func (n *Node) Op() string { return n.op }

// Inputs returns the node's inputs in order.
func (n *Node) Inputs() []Output { return n.inputs }

// NumOutputs returns the number of output ports.
func (n *Node) NumOutputs() int { return len(n.outputs) }

// Output returns the symbolic tensor at port.
func (n *Node) Output(port int) Output { return Output{node: n, port: port} }

// Attr returns a raw attribute value.
func (n *Node) Attr(name string) (any, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

// AttrNames returns attribute names in sorted order.
func (n *Node) AttrNames() []string {
	names := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// AttrString returns a string attribute or defaultVal.
func (n *Node) AttrString(name, defaultVal string) string {
	if v, ok := n.attrs[name].(string); ok {
		return v
	}
	return defaultVal
}

// AttrInt returns an integer attribute or defaultVal.
func (n *Node) AttrInt(name string, defaultVal int64) int64 {
	if v, ok := n.attrs[name].(int64); ok {
		return v
	}
	return defaultVal
}

// AttrBool returns a bool attribute or defaultVal.
func (n *Node) AttrBool(name string, defaultVal bool) bool {
	if v, ok := n.attrs[name].(bool); ok {
		return v
	}
	return defaultVal
}

// AttrTensor returns a tensor attribute, or nil.
func (n *Node) AttrTensor(name string) *tensor.Tensor {
	v, _ := n.attrs[name].(*tensor.Tensor)
	return v
}

// Output addresses one output port of a node.
type Output struct {
	node *Node
	port int
}

// Valid reports whether o refers to a node.
func (o Output) Valid() bool { return o.node != nil }

// Node returns the producing node.
func (o Output) Node() *Node { return o.node }

// Port returns the output index.
func (o Output) Port() int { return o.port }

// Graph returns the owning graph, or nil for the zero Output.
func (o Output) Graph() *Graph {
	if o.node == nil {
		return nil
	}
	return o.node.graph
}

// WireID returns "<node>:<port>".
func (o Output) WireID() string {
	if o.node == nil {
		return "<invalid>"
	}
	return FormatWireID(o.node.name, o.port)
}

// DType returns the static element type.
func (o Output) DType() tensor.DataType { return o.node.outputs[o.port].DType }

// Shape returns the static shape; unknown dims are -1.
func (o Output) Shape() tensor.Shape { return o.node.outputs[o.port].Shape }

// Graph is an append-only collection of nodes in creation (topological) order.
type Graph struct {
	name   string
	nodes  []*Node
	byName map[string]*Node
	counts map[string]int
	err    error
}

// New creates an empty graph.
func New(name string) *Graph {
	return &Graph{
		name:   name,
		byName: make(map[string]*Node),
		counts: make(map[string]int),
	}
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Err returns the first construction error, if any.
func (g *Graph) Err() error { return g.err }

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Node looks up a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// Lookup resolves a wire id to an Output.
func (g *Graph) Lookup(id string) (Output, error) {
	name, port, err := ParseWireID(id)
	if err != nil {
		return Output{}, err
	}
	n, ok := g.byName[name]
	if !ok {
		return Output{}, fmt.Errorf("graph %s: no node named %q", g.name, name)
	}
	if port >= len(n.outputs) {
		return Output{}, fmt.Errorf("graph %s: node %q has %d outputs, port %d requested", g.name, name, len(n.outputs), port)
	}
	return n.Output(port), nil
}

// Placeholder declares a graph input. Names must be unique.
func (g *Graph) Placeholder(name string, dtype tensor.DataType, shape tensor.Shape) Output {
	if g.err != nil {
		return Output{}
	}
	if _, ok := g.byName[name]; ok {
		g.fail(fmt.Errorf("placeholder %q: name already used", name))
		return Output{}
	}
	n := g.addNode("Placeholder", name, nil, map[string]any{"dtype": dtype, "shape": shape.Clone()},
		[]OutputSpec{{DType: dtype, Shape: shape.Clone()}})
	return n.Output(0)
}

// Const embeds a constant value.
func (g *Graph) Const(name string, value *tensor.Tensor) Output {
	if g.err != nil {
		return Output{}
	}
	n := g.addNode("Const", name, nil, map[string]any{"value": value},
		[]OutputSpec{{DType: value.DType(), Shape: value.Shape().Clone()}})
	return n.Output(0)
}

// addNode appends a node, uniquifying name (defaulting to op) with a _N suffix.
func (g *Graph) addNode(op, name string, inputs []Output, attrs map[string]any, outputs []OutputSpec) *Node {
	if name == "" {
		name = op
	}
	base := name
	for {
		if _, taken := g.byName[name]; !taken {
			break
		}
		g.counts[base]++
		name = fmt.Sprintf("%s_%d", base, g.counts[base])
	}
	if attrs == nil {
		attrs = make(map[string]any)
	}
	n := &Node{graph: g, name: name, op: op, inputs: inputs, attrs: attrs, outputs: outputs}
	g.nodes = append(g.nodes, n)
	g.byName[name] = n
	return n
}

func (g *Graph) fail(err error) {
	if g.err == nil {
		g.err = err
	}
}
