package casefile

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/born-ml/strops/internal/graph"
	"github.com/born-ml/strops/internal/harness"
)

type regexAttrs struct {
	Pattern string `mapstructure:"pattern"`
	Rewrite string `mapstructure:"rewrite"`
	Global  *bool  `mapstructure:"global"`
}

type joinAttrs struct {
	Separator string `mapstructure:"separator"`
}

type splitAttrs struct {
	Sep      string `mapstructure:"sep"`
	MaxSplit *int64 `mapstructure:"maxsplit"`
}

type hashAttrs struct {
	NumBuckets int64 `mapstructure:"num_buckets"`
}

type caseAttrs struct {
	Encoding string `mapstructure:"encoding"`
}

type reshapeAttrs struct {
	Shape []int `mapstructure:"shape"`
}

// decodeAttrs fills out from attrs, failing on keys out does not declare.
func decodeAttrs(attrs map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(attrs)
}

// builder wires one case's nodes into a graph.
type builder struct {
	symbols map[string]graph.Output
}

func (b *builder) define(name string, o graph.Output) error {
	if _, dup := b.symbols[name]; dup {
		return fmt.Errorf("name %q defined twice", name)
	}
	b.symbols[name] = o
	return nil
}

func (b *builder) resolve(names []string) ([]graph.Output, error) {
	outs := make([]graph.Output, len(names))
	for i, name := range names {
		o, ok := b.symbols[name]
		if !ok {
			return nil, fmt.Errorf("unknown input %q", name)
		}
		outs[i] = o
	}
	return outs, nil
}

func wantInputs(n NodeSpec, counts ...int) error {
	for _, c := range counts {
		if len(n.Inputs) == c {
			return nil
		}
	}
	return fmt.Errorf("%s takes %v inputs, got %d", n.Op, counts, len(n.Inputs))
}

// add builds n and defines its outputs.
func (b *builder) add(n NodeSpec) error {
	if n.Name == "" {
		return fmt.Errorf("%s: name is required", n.Op)
	}
	if strings.ContainsAny(n.Name, ".:") {
		return fmt.Errorf("name %q may not contain '.' or ':'", n.Name)
	}
	in, err := b.resolve(n.Inputs)
	if err != nil {
		return err
	}

	switch n.Op {
	case "identity":
		if err := wantInputs(n, 1); err != nil {
			return err
		}
		if err := decodeAttrs(n.Attrs, &struct{}{}); err != nil {
			return err
		}
		return b.define(n.Name, graph.Identity(in[0], n.Name))

	case "reshape":
		var a reshapeAttrs
		if err := decodeAttrs(n.Attrs, &a); err != nil {
			return err
		}
		if err := wantInputs(n, 1); err != nil {
			return err
		}
		return b.define(n.Name, graph.Reshape(in[0], a.Shape...))

	case "regex_replace":
		var a regexAttrs
		if err := decodeAttrs(n.Attrs, &a); err != nil {
			return err
		}
		if err := wantInputs(n, 1, 3); err != nil {
			return err
		}
		global := a.Global == nil || *a.Global
		if len(in) == 3 {
			if a.Pattern != "" || a.Rewrite != "" {
				return fmt.Errorf("regex_replace with pattern and rewrite inputs takes no pattern or rewrite attrs")
			}
			return b.define(n.Name, graph.RegexReplaceT(in[0], in[1], in[2], global))
		}
		return b.define(n.Name, graph.RegexReplace(in[0], a.Pattern, a.Rewrite, global))

	case "join":
		var a joinAttrs
		if err := decodeAttrs(n.Attrs, &a); err != nil {
			return err
		}
		if len(in) == 0 {
			return fmt.Errorf("join needs at least one input")
		}
		return b.define(n.Name, graph.StringJoin(in, a.Separator))

	case "split":
		var a splitAttrs
		if err := decodeAttrs(n.Attrs, &a); err != nil {
			return err
		}
		if err := wantInputs(n, 1); err != nil {
			return err
		}
		maxSplit := int64(-1)
		if a.MaxSplit != nil {
			maxSplit = *a.MaxSplit
		}
		r := graph.StringSplitN(in[0], a.Sep, maxSplit)
		for name, o := range map[string]graph.Output{
			n.Name:                  r.FlatValues(),
			n.Name + ".values":      r.FlatValues(),
			n.Name + ".indices":     r.Indices(),
			n.Name + ".dense_shape": r.DenseShape(),
		} {
			if err := b.define(name, o); err != nil {
				return err
			}
		}
		return nil

	case "hash_bucket_fast":
		var a hashAttrs
		if err := decodeAttrs(n.Attrs, &a); err != nil {
			return err
		}
		if err := wantInputs(n, 1); err != nil {
			return err
		}
		return b.define(n.Name, graph.StringToHashBucketFast(in[0], a.NumBuckets))

	case "upper", "lower":
		var a caseAttrs
		if err := decodeAttrs(n.Attrs, &a); err != nil {
			return err
		}
		if err := wantInputs(n, 1); err != nil {
			return err
		}
		op := graph.StringUpper
		if n.Op == "lower" {
			op = graph.StringLower
		}
		return b.define(n.Name, op(in[0], a.Encoding))
	}
	return fmt.Errorf("unknown op %q", n.Op)
}

// build wires the nodes onto placeholders and returns the outputs named
// by the case.
func (c *CaseSpec) build(placeholders []graph.Output) ([]graph.Output, error) {
	b := &builder{symbols: make(map[string]graph.Output)}
	for i, in := range c.Inputs {
		if err := b.define(in.Name, placeholders[i]); err != nil {
			return nil, fmt.Errorf("inputs[%d]: %w", i, err)
		}
	}
	for i, n := range c.Nodes {
		if err := b.add(n); err != nil {
			return nil, fmt.Errorf("nodes[%d] (%s): %w", i, n.Name, err)
		}
	}
	return b.resolve(c.Outputs)
}

// Case converts c into a harness case. The nodes are built once on a
// scratch graph to resolve output names to wire ids; graph construction is
// deterministic, so the harness's own build yields the same ids.
func (c *CaseSpec) Case() (harness.Case, error) {
	fail := func(err error) (harness.Case, error) {
		return harness.Case{}, fmt.Errorf("%w: case %s: %w", ErrInvalidFile, c.Name, err)
	}

	feed := make(harness.Feed, len(c.Inputs))
	for i, in := range c.Inputs {
		v, err := in.Tensor()
		if err != nil {
			return fail(err)
		}
		feed[i] = harness.Binding{Name: in.Name, Value: v}
	}

	g := graph.New(c.Name)
	placeholders := make([]graph.Output, len(feed))
	for i, b := range feed {
		placeholders[i] = g.Placeholder(b.Name, b.Value.DType(), b.Value.Shape())
	}
	outs, err := c.build(placeholders)
	if err != nil {
		return fail(err)
	}
	if err := g.Err(); err != nil {
		return fail(err)
	}
	ports := make([]string, len(outs))
	for i, o := range outs {
		ports[i] = o.WireID()
	}

	spec := *c
	return harness.Case{
		Name: c.Name,
		Feed: feed,
		Build: func(in ...graph.Output) []graph.Output {
			outs, err := spec.build(in)
			if err != nil {
				return nil
			}
			return outs
		},
		Outputs: ports,
	}, nil
}
