// Package convert translates a source graph into an ONNX model whose
// string operations live in the ai.onnx.contrib custom domain.
//
// Conversion is a pure function of the graph and Options: generated names
// come from a per-conversion counter, so converting twice marshals to the
// same bytes. Only nodes the requested outputs depend on are converted.
package convert

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/strops/internal/contrib"
	"github.com/born-ml/strops/internal/graph"
	"github.com/born-ml/strops/internal/onnx"
)

// Supported default-domain opsets. Expand needs 8.
const (
	MinOpset     = 8
	MaxOpset     = 18
	DefaultOpset = 13
)

// Options configures a conversion.
type Options struct {
	// Opset is the default-domain opset version.
	Opset int64
	// ExtraOpset lists custom domains the model may use.
	ExtraOpset []onnx.OperatorSetID
	// InputNames are the placeholder wire ids that become graph inputs.
	// Empty means every placeholder the outputs depend on.
	InputNames []string
	// OutputNames are the wire ids that become graph outputs. Required.
	OutputNames []string
	// ProducerName is written into the model.
	ProducerName string
	// Logger receives per-node debug events. Nil disables logging.
	Logger *zap.Logger
}

// DefaultOptions targets opset 13 with the contrib domain imported.
func DefaultOptions() Options {
	return Options{
		Opset:        DefaultOpset,
		ExtraOpset:   []onnx.OperatorSetID{{Domain: contrib.Domain, Version: contrib.Version}},
		ProducerName: "strops",
	}
}

func (o *Options) opsets() (map[string]int64, error) {
	if o.Opset < MinOpset || o.Opset > MaxOpset {
		return nil, fmt.Errorf("%w: opset %d outside [%d, %d]", ErrInvalidOption, o.Opset, MinOpset, MaxOpset)
	}
	opsets := map[string]int64{"": o.Opset}
	for _, extra := range o.ExtraOpset {
		if extra.Domain == "" || extra.Domain == "ai.onnx" {
			return nil, fmt.Errorf("%w: extra opset uses the default domain", ErrInvalidOption)
		}
		if extra.Version < 1 {
			return nil, fmt.Errorf("%w: extra opset %s version %d", ErrInvalidOption, extra.Domain, extra.Version)
		}
		if _, dup := opsets[extra.Domain]; dup {
			return nil, fmt.Errorf("%w: extra opset %s listed twice", ErrInvalidOption, extra.Domain)
		}
		opsets[extra.Domain] = extra.Version
	}
	return opsets, nil
}

// Convert builds an ONNX model computing opts.OutputNames of g.
func Convert(g *graph.Graph, opts Options) (*onnx.ModelProto, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if g == nil {
		return nil, &Error{Err: fmt.Errorf("%w: nil graph", ErrInvalidGraph)}
	}
	if err := g.Err(); err != nil {
		return nil, &Error{Err: fmt.Errorf("%w: %w", ErrInvalidGraph, err)}
	}
	opsets, err := opts.opsets()
	if err != nil {
		return nil, &Error{Err: err}
	}
	if len(opts.OutputNames) == 0 {
		return nil, &Error{Err: fmt.Errorf("%w: no outputs requested", ErrInvalidOption)}
	}

	outputs, err := resolve(g, opts.OutputNames)
	if err != nil {
		return nil, err
	}
	needed := reachable(outputs)

	inputs, err := selectInputs(g, opts.InputNames, needed)
	if err != nil {
		return nil, err
	}

	reserved := make([]string, 0, len(g.Nodes()))
	for _, n := range g.Nodes() {
		reserved = append(reserved, n.Name())
	}
	c := newContext(opts.Opset, opsets, reserved)

	dims := 0
	dimParam := func(int) string {
		name := fmt.Sprintf("unk__%d", dims)
		dims++
		return name
	}

	gp := &onnx.GraphProto{Name: g.Name()}
	for _, in := range inputs {
		vi, err := onnx.ValueInfo(in.WireID(), in.DType(), in.Shape(), dimParam)
		if err != nil {
			return nil, &Error{Node: in.Node().Name(), Op: "Placeholder", Err: err}
		}
		gp.Inputs = append(gp.Inputs, vi)
	}

	// g.Nodes() is in creation order, which is topological.
	for _, n := range g.Nodes() {
		if !needed[n] || n.Op() == "Placeholder" {
			continue
		}
		if n.Op() == "Const" {
			if err := c.namedConst(n.Output(0).WireID(), n.AttrTensor("value")); err != nil {
				return nil, &Error{Node: n.Name(), Op: n.Op(), Err: err}
			}
			continue
		}
		h, ok := handlers[n.Op()]
		if !ok {
			return nil, &Error{Node: n.Name(), Op: n.Op(), Err: fmt.Errorf("%w: no converter for op %s", ErrUnsupported, n.Op())}
		}
		before := len(c.nodes)
		if err := h(c, n); err != nil {
			return nil, &Error{Node: n.Name(), Op: n.Op(), Err: err}
		}
		logger.Debug("converted node",
			zap.String("node", n.Name()),
			zap.String("op", n.Op()),
			zap.Int("onnx_nodes", len(c.nodes)-before))
	}

	for _, out := range outputs {
		vi, err := onnx.ValueInfo(out.WireID(), out.DType(), out.Shape(), dimParam)
		if err != nil {
			return nil, &Error{Node: out.Node().Name(), Op: out.Node().Op(), Err: err}
		}
		gp.Outputs = append(gp.Outputs, vi)
	}
	gp.Nodes = c.nodes
	gp.Initializers = c.inits

	model := &onnx.ModelProto{
		IRVersion:    onnx.DefaultIRVersion,
		ProducerName: opts.ProducerName,
		Graph:        gp,
		OpsetImport:  []onnx.OperatorSetID{{Version: opts.Opset}},
	}
	model.OpsetImport = append(model.OpsetImport, opts.ExtraOpset...)
	return model, nil
}

func resolve(g *graph.Graph, ids []string) ([]graph.Output, error) {
	outs := make([]graph.Output, len(ids))
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		o, err := g.Lookup(id)
		if err != nil {
			return nil, &Error{Err: fmt.Errorf("%w: output %s: %w", ErrInvalidGraph, id, err)}
		}
		if seen[o.WireID()] {
			return nil, &Error{Err: fmt.Errorf("%w: output %s requested twice", ErrInvalidOption, id)}
		}
		seen[o.WireID()] = true
		outs[i] = o
	}
	return outs, nil
}

// reachable returns the nodes outs depend on, outs' nodes included.
func reachable(outs []graph.Output) map[*graph.Node]bool {
	needed := make(map[*graph.Node]bool)
	var visit func(n *graph.Node)
	visit = func(n *graph.Node) {
		if needed[n] {
			return
		}
		needed[n] = true
		for _, in := range n.Inputs() {
			visit(in.Node())
		}
	}
	for _, o := range outs {
		visit(o.Node())
	}
	return needed
}

// selectInputs returns the graph inputs in order: the named placeholders,
// or every needed placeholder in creation order.
func selectInputs(g *graph.Graph, names []string, needed map[*graph.Node]bool) ([]graph.Output, error) {
	if len(names) == 0 {
		var inputs []graph.Output
		for _, n := range g.Nodes() {
			if n.Op() == "Placeholder" && needed[n] {
				inputs = append(inputs, n.Output(0))
			}
		}
		return inputs, nil
	}

	listed := make(map[*graph.Node]bool, len(names))
	inputs := make([]graph.Output, 0, len(names))
	for _, id := range names {
		o, err := g.Lookup(id)
		if err != nil {
			return nil, &Error{Err: fmt.Errorf("%w: input %s: %w", ErrInvalidGraph, id, err)}
		}
		if o.Node().Op() != "Placeholder" {
			return nil, &Error{Err: fmt.Errorf("%w: input %s is a %s, not a placeholder", ErrInvalidOption, id, o.Node().Op())}
		}
		if listed[o.Node()] {
			return nil, &Error{Err: fmt.Errorf("%w: input %s listed twice", ErrInvalidOption, id)}
		}
		listed[o.Node()] = true
		inputs = append(inputs, o)
	}
	for _, n := range g.Nodes() {
		if n.Op() == "Placeholder" && needed[n] && !listed[n] {
			return nil, &Error{Node: n.Name(), Op: n.Op(), Err: fmt.Errorf("%w: placeholder is needed but not an input", ErrInvalidGraph)}
		}
	}
	return inputs, nil
}
