package convert

import (
	"fmt"
	"sort"

	"github.com/born-ml/strops/internal/contrib"
	"github.com/born-ml/strops/internal/graph"
	"github.com/born-ml/strops/internal/onnx"
	"github.com/born-ml/strops/internal/tensor"
)

// Handler emits the ONNX nodes for one source node. The node's outputs
// must be produced under their wire ids.
type Handler func(c *Context, n *graph.Node) error

// handlers maps source op types to their converters. Placeholder and Const
// are handled by Convert itself.
var handlers = map[string]Handler{
	"Identity":               convertIdentity,
	"Reshape":                convertReshape,
	"StaticRegexReplace":     convertStaticRegexReplace,
	"RegexReplace":           convertRegexReplace,
	"StringJoin":             convertStringJoin,
	"StringSplitV2":          convertStringSplit,
	"StringToHashBucketFast": convertHashBucketFast,
	"StringUpper":            convertCase("StringUpper"),
	"StringLower":            convertCase("StringLower"),
}

// SupportedOps returns the source op types the converter understands.
func SupportedOps() []string {
	ops := []string{"Const", "Placeholder"}
	for op := range handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func inputNames(n *graph.Node) []string {
	names := make([]string, len(n.Inputs()))
	for i, in := range n.Inputs() {
		names[i] = InputName(in)
	}
	return names
}

func outputNames(n *graph.Node) []string {
	names := make([]string, n.NumOutputs())
	for i := range names {
		names[i] = n.Output(i).WireID()
	}
	return names
}

func convertIdentity(c *Context, n *graph.Node) error {
	c.Add(Node{Name: n.Name(), OpType: "Identity", Inputs: inputNames(n), Outputs: outputNames(n)})
	return nil
}

func convertReshape(c *Context, n *graph.Node) error {
	c.Add(Node{Name: n.Name(), OpType: "Reshape", Inputs: inputNames(n), Outputs: outputNames(n)})
	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func convertStaticRegexReplace(c *Context, n *graph.Node) error {
	if err := c.RequireDomain(contrib.Domain); err != nil {
		return err
	}
	pattern, err := c.Const(n.Name()+"_pattern", tensor.Vector(n.AttrString("pattern", "")))
	if err != nil {
		return err
	}
	rewrite, err := c.Const(n.Name()+"_rewrite", tensor.Vector(n.AttrString("rewrite", "")))
	if err != nil {
		return err
	}
	c.Add(Node{
		Name:    n.Name(),
		OpType:  "StringRegexReplace",
		Domain:  contrib.Domain,
		Inputs:  []string{InputName(n.Inputs()[0]), pattern, rewrite},
		Outputs: outputNames(n),
		Attrs:   []onnx.AttributeProto{onnx.IntAttr("global_replace", boolInt(n.AttrBool("replace_global", true)))},
	})
	return nil
}

func convertRegexReplace(c *Context, n *graph.Node) error {
	if err := c.RequireDomain(contrib.Domain); err != nil {
		return err
	}
	c.Add(Node{
		Name:    n.Name(),
		OpType:  "StringRegexReplace",
		Domain:  contrib.Domain,
		Inputs:  inputNames(n),
		Outputs: outputNames(n),
		Attrs:   []onnx.AttributeProto{onnx.IntAttr("global_replace", boolInt(n.AttrBool("replace_global", true)))},
	})
	return nil
}

// convertStringJoin stacks the inputs on a new leading axis and joins
// along it. Scalars are first expanded to the shape of the first
// non-scalar input.
func convertStringJoin(c *Context, n *graph.Node) error {
	if err := c.RequireDomain(contrib.Domain); err != nil {
		return err
	}
	inputs := n.Inputs()

	var shapeOf string
	for _, in := range inputs {
		if len(in.Shape()) > 0 {
			shapeOf = InputName(in)
			break
		}
	}

	var shapeName string
	stacked := make([]string, len(inputs))
	for i, in := range inputs {
		name := InputName(in)
		if len(in.Shape()) == 0 && shapeOf != "" {
			if shapeName == "" {
				shapeName = c.Add(Node{OpType: "Shape", Inputs: []string{shapeOf}})[0]
			}
			name = c.Add(Node{OpType: "Expand", Inputs: []string{name, shapeName}})[0]
		}
		u, err := c.Unsqueeze(name, 0)
		if err != nil {
			return err
		}
		stacked[i] = u
	}

	concat := c.Add(Node{OpType: "Concat", Inputs: stacked,
		Attrs: []onnx.AttributeProto{onnx.IntAttr("axis", 0)}})[0]
	sep, err := c.Const(n.Name()+"_separator", tensor.Vector(n.AttrString("separator", "")))
	if err != nil {
		return err
	}
	axis, err := c.Const(n.Name()+"_axis", tensor.Vector[int64](0))
	if err != nil {
		return err
	}
	c.Add(Node{
		Name:    n.Name(),
		OpType:  "StringJoin",
		Domain:  contrib.Domain,
		Inputs:  []string{concat, sep, axis},
		Outputs: outputNames(n),
	})
	return nil
}

// convertStringSplit maps StringSplitV2 onto contrib StringSplit, which
// treats its delimiter differently for the empty string and cannot limit
// the number of splits.
func convertStringSplit(c *Context, n *graph.Node) error {
	if err := c.RequireDomain(contrib.Domain); err != nil {
		return err
	}
	if maxSplit := n.AttrInt("maxsplit", -1); maxSplit != -1 {
		return fmt.Errorf("%w: maxsplit %d (only -1 converts)", ErrUnsupported, maxSplit)
	}
	sepIn := n.Inputs()[1]
	if sepIn.Node().Op() != "Const" {
		return fmt.Errorf("%w: separator must be a constant", ErrUnsupported)
	}
	if sep := sepIn.Node().AttrTensor("value"); sep == nil || len(sep.Strings()) != 1 || sep.Strings()[0] == "" {
		return fmt.Errorf("%w: empty separator (whitespace splitting has no equivalent)", ErrUnsupported)
	}

	sep, err := c.Unsqueeze(InputName(sepIn), 0)
	if err != nil {
		return err
	}
	skipEmpty, err := c.Const(n.Name()+"_skip_empty", tensor.Vector(false))
	if err != nil {
		return err
	}
	c.Add(Node{
		Name:    n.Name(),
		OpType:  "StringSplit",
		Domain:  contrib.Domain,
		Inputs:  []string{InputName(n.Inputs()[0]), sep, skipEmpty},
		Outputs: outputNames(n),
	})
	return nil
}

func convertHashBucketFast(c *Context, n *graph.Node) error {
	if err := c.RequireDomain(contrib.Domain); err != nil {
		return err
	}
	buckets, err := c.Const(n.Name()+"_num_buckets", tensor.Vector(n.AttrInt("num_buckets", 0)))
	if err != nil {
		return err
	}
	c.Add(Node{
		Name:    n.Name(),
		OpType:  "StringToHashBucketFast",
		Domain:  contrib.Domain,
		Inputs:  []string{InputName(n.Inputs()[0]), buckets},
		Outputs: outputNames(n),
	})
	return nil
}

func convertCase(op string) Handler {
	return func(c *Context, n *graph.Node) error {
		if err := c.RequireDomain(contrib.Domain); err != nil {
			return err
		}
		if enc := n.AttrString("encoding", ""); enc != "" {
			return fmt.Errorf("%w: encoding %q (the contrib op maps ASCII only)", ErrUnsupported, enc)
		}
		c.Add(Node{Name: n.Name(), OpType: op, Domain: contrib.Domain, Inputs: inputNames(n), Outputs: outputNames(n)})
		return nil
	}
}
