package graph

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/strops/internal/tensor"
)

// ErrMissingFeed is returned when a fetched value depends on an unfed placeholder.
var ErrMissingFeed = errors.New("placeholder not fed")

// Session executes a graph. It holds no state between runs.
type Session struct {
	graph  *Graph
	logger *zap.Logger
}

// NewSession prepares g for execution. A nil logger disables logging.
func NewSession(g *Graph, logger *zap.Logger) (*Session, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	if err := g.Err(); err != nil {
		return nil, fmt.Errorf("graph %s is invalid: %w", g.name, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{graph: g, logger: logger}, nil
}

// Run evaluates fetches (wire ids) given feed (wire id -> value), computing
// only the nodes the fetches depend on. Results are in fetch order.
func (s *Session) Run(feed map[string]*tensor.Tensor, fetches []string) ([]*tensor.Tensor, error) {
	r := &run{
		session: s,
		fed:     make(map[Output]*tensor.Tensor, len(feed)),
		values:  make(map[*Node][]*tensor.Tensor),
	}
	for id, v := range feed {
		out, err := s.graph.Lookup(id)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", id, err)
		}
		if v == nil {
			return nil, fmt.Errorf("feed %s: nil value", id)
		}
		if err := checkCompatible(out, v); err != nil {
			return nil, fmt.Errorf("feed %s: %w", id, err)
		}
		r.fed[out] = v
	}

	results := make([]*tensor.Tensor, len(fetches))
	for i, id := range fetches {
		out, err := s.graph.Lookup(id)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", id, err)
		}
		v, err := r.eval(out)
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

// checkCompatible verifies v against the static type of out.
func checkCompatible(out Output, v *tensor.Tensor) error {
	if v.DType() != out.DType() {
		return fmt.Errorf("dtype %s, want %s", v.DType(), out.DType())
	}
	want := out.Shape()
	got := v.Shape()
	if len(want) != len(got) {
		return fmt.Errorf("shape %v, want %v", got, want)
	}
	for i := range want {
		if want[i] >= 0 && want[i] != got[i] {
			return fmt.Errorf("shape %v, want %v", got, want)
		}
	}
	return nil
}

type run struct {
	session *Session
	fed     map[Output]*tensor.Tensor
	values  map[*Node][]*tensor.Tensor
}

func (r *run) eval(out Output) (*tensor.Tensor, error) {
	if v, ok := r.fed[out]; ok {
		return v, nil
	}
	outs, err := r.evalNode(out.node)
	if err != nil {
		return nil, err
	}
	if out.port >= len(outs) {
		return nil, fmt.Errorf("node %s (%s): produced %d outputs, port %d requested", out.node.name, out.node.op, len(outs), out.port)
	}
	return outs[out.port], nil
}

func (r *run) evalNode(n *Node) ([]*tensor.Tensor, error) {
	if v, ok := r.values[n]; ok {
		return v, nil
	}
	if n.op == "Placeholder" {
		return nil, fmt.Errorf("%w: %s", ErrMissingFeed, n.name)
	}
	kernel, ok := kernels[n.op]
	if !ok {
		return nil, fmt.Errorf("node %s: no kernel for op %s", n.name, n.op)
	}

	inputs := make([]*tensor.Tensor, len(n.inputs))
	for i, in := range n.inputs {
		v, err := r.eval(in)
		if err != nil {
			return nil, err
		}
		inputs[i] = v
	}

	outs, err := kernel(n, inputs)
	if err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", n.name, n.op, err)
	}
	r.session.logger.Debug("executed node",
		zap.String("graph", r.session.graph.name),
		zap.String("node", n.name),
		zap.String("op", n.op))
	r.values[n] = outs
	return outs, nil
}
