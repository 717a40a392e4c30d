package onnx

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/strops/internal/onnx/operators"
	"github.com/born-ml/strops/internal/tensor"
)

// inputSpec is the declared type of a graph input.
type inputSpec struct {
	name     string
	dtype    tensor.DataType
	shape    tensor.Shape
	hasShape bool
}

// Model represents a loaded ONNX model ready for execution.
type Model struct {
	proto        *ModelProto
	registry     *operators.Registry
	logger       *zap.Logger
	tensors      map[string]*tensor.Tensor // Initializers
	inputs       []inputSpec
	inputNames   []string
	outputNames  []string
	sortedNodes  []NodeProto
	opNodes      []*operators.Node
	opsetVersion int64
}

// InputNames returns the names of model inputs.
func (m *Model) InputNames() []string {
	return m.inputNames
}

// OutputNames returns the names of model outputs.
func (m *Model) OutputNames() []string {
	return m.outputNames
}

// ForwardNamed runs the graph with named inputs.
// Returns a map of output name to tensor.
func (m *Model) ForwardNamed(inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	tensors, err := m.execute(inputs)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*tensor.Tensor, len(m.outputNames))
	for _, outputName := range m.outputNames {
		t, ok := tensors[outputName]
		if !ok {
			return nil, fmt.Errorf("missing output: %s", outputName)
		}
		result[outputName] = t
	}
	return result, nil
}

func (m *Model) checkInputs(inputs map[string]*tensor.Tensor) error {
	declared := make(map[string]bool, len(m.inputs))
	for _, spec := range m.inputs {
		declared[spec.name] = true
		t, ok := inputs[spec.name]
		if !ok || t == nil {
			return fmt.Errorf("missing input: %s", spec.name)
		}
		if t.DType() != spec.dtype {
			return fmt.Errorf("input %s: dtype %s, model declares %s", spec.name, t.DType(), spec.dtype)
		}
		if !spec.hasShape {
			continue
		}
		if t.Rank() != len(spec.shape) {
			return fmt.Errorf("input %s: shape %v, model declares %v", spec.name, t.Shape(), spec.shape)
		}
		for i, d := range spec.shape {
			if d >= 0 && t.Shape()[i] != d {
				return fmt.Errorf("input %s: shape %v, model declares %v", spec.name, t.Shape(), spec.shape)
			}
		}
	}
	for name := range inputs {
		if !declared[name] {
			return fmt.Errorf("unknown input: %s", name)
		}
	}
	return nil
}

// execute runs every node in topological order and returns all values.
func (m *Model) execute(inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	if err := m.checkInputs(inputs); err != nil {
		return nil, err
	}

	tensors := make(map[string]*tensor.Tensor, len(m.tensors)+len(inputs)+len(m.sortedNodes))
	for name, t := range m.tensors {
		tensors[name] = t
	}
	for name, t := range inputs {
		tensors[name] = t
	}

	ctx := &operators.Context{Opset: m.opsetVersion, Logger: m.logger}
	for nodeIdx := range m.sortedNodes {
		node := &m.sortedNodes[nodeIdx]
		nodeInputs := make([]*tensor.Tensor, len(node.Inputs))
		for i, inputName := range node.Inputs {
			if inputName == "" {
				// Optional input not provided
				continue
			}
			t, ok := tensors[inputName]
			if !ok {
				return nil, fmt.Errorf("node %s: missing input %s", node.Name, inputName)
			}
			nodeInputs[i] = t
		}

		outputs, err := m.registry.Execute(ctx, m.opNodes[nodeIdx], nodeInputs)
		if err != nil {
			return nil, fmt.Errorf("node %s (%s): %w", node.Name, operators.QualifiedName(node.Domain, node.OpType), err)
		}

		for i, outputName := range node.Outputs {
			if outputName == "" {
				continue
			}
			if i >= len(outputs) || outputs[i] == nil {
				return nil, fmt.Errorf("node %s (%s): output %d (%s) not produced", node.Name, node.OpType, i, outputName)
			}
			tensors[outputName] = outputs[i]
		}
		m.logger.Debug("executed node",
			zap.String("node", node.Name),
			zap.String("op", operators.QualifiedName(node.Domain, node.OpType)))
	}
	return tensors, nil
}

// compile prepares the model for execution.
func (m *Model) compile() error {
	graph := m.proto.Graph
	if graph == nil {
		return fmt.Errorf("model has no graph")
	}

	// Load initializers
	m.tensors = make(map[string]*tensor.Tensor)
	initNames := make(map[string]bool)
	for i := range graph.Initializers {
		init := &graph.Initializers[i]
		t, err := TensorFromProto(init)
		if err != nil {
			return fmt.Errorf("failed to load initializer %s: %w", init.Name, err)
		}
		m.tensors[init.Name] = t
		initNames[init.Name] = true
	}

	// Inputs are graph inputs minus initializers
	for i := range graph.Inputs {
		in := &graph.Inputs[i]
		if initNames[in.Name] {
			continue
		}
		dtype, shape, hasShape, err := valueSpec(in)
		if err != nil {
			return fmt.Errorf("graph input: %w", err)
		}
		m.inputs = append(m.inputs, inputSpec{name: in.Name, dtype: dtype, shape: shape, hasShape: hasShape})
		m.inputNames = append(m.inputNames, in.Name)
	}

	for i := range graph.Outputs {
		m.outputNames = append(m.outputNames, graph.Outputs[i].Name)
	}

	sorted, err := topologicalSort(graph.Nodes)
	if err != nil {
		return err
	}
	m.sortedNodes = sorted

	m.opNodes = make([]*operators.Node, len(sorted))
	for i := range sorted {
		n, err := nodeProtoToOperatorNode(&sorted[i])
		if err != nil {
			return err
		}
		m.opNodes[i] = n
	}

	m.opsetVersion = m.proto.OpsetVersion("")
	return nil
}

// nodeProtoToOperatorNode converts NodeProto to operators.Node, decoding
// tensor attributes once.
func nodeProtoToOperatorNode(proto *NodeProto) (*operators.Node, error) {
	attrs := make([]operators.Attribute, len(proto.Attributes))
	for i := range proto.Attributes {
		attr := &proto.Attributes[i]
		attrs[i] = operators.Attribute{
			Name:    attr.Name,
			Type:    attr.Type,
			F:       attr.F,
			I:       attr.I,
			S:       attr.S,
			Floats:  attr.Floats,
			Ints:    attr.Ints,
			Strings: attr.Strings,
		}
		if attr.T != nil {
			t, err := TensorFromProto(attr.T)
			if err != nil {
				return nil, fmt.Errorf("node %s attribute %s: %w", proto.Name, attr.Name, err)
			}
			attrs[i].T = t
		}
	}
	return &operators.Node{
		Name:       proto.Name,
		OpType:     proto.OpType,
		Inputs:     proto.Inputs,
		Outputs:    proto.Outputs,
		Attributes: attrs,
		Domain:     proto.Domain,
	}, nil
}

// topologicalSort sorts nodes in execution order.
// Ensures dependencies are executed before dependents; cycles are an error.
func topologicalSort(nodes []NodeProto) ([]NodeProto, error) {
	// Build output-to-node map
	outputToNode := make(map[string]int)
	for i := range nodes {
		for _, output := range nodes[i].Outputs {
			if output == "" {
				continue
			}
			if prev, ok := outputToNode[output]; ok {
				return nil, fmt.Errorf("value %s produced by nodes %d and %d", output, prev, i)
			}
			outputToNode[output] = i
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(nodes))
	result := make([]NodeProto, 0, len(nodes))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("graph has a cycle through node %s (%s)", nodes[i].Name, nodes[i].OpType)
		}
		state[i] = visiting

		// Visit dependencies first
		for _, input := range nodes[i].Inputs {
			if depIdx, ok := outputToNode[input]; ok {
				if err := visit(depIdx); err != nil {
					return err
				}
			}
		}

		state[i] = done
		result = append(result, nodes[i])
		return nil
	}

	for i := range nodes {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return result, nil
}
