package graph

import (
	"fmt"

	"github.com/born-ml/strops/internal/tensor"
	"github.com/born-ml/strops/internal/textops"
)

// graphOf returns the graph shared by inputs, recording an error when they
// span graphs or include the zero Output. It returns nil if nothing can be
// built.
func graphOf(op string, inputs ...Output) *Graph {
	var g *Graph
	for _, in := range inputs {
		if in.Valid() {
			g = in.Graph()
			break
		}
	}
	if g == nil || g.err != nil {
		return nil
	}
	for i, in := range inputs {
		if !in.Valid() {
			g.fail(fmt.Errorf("%s: input %d is not a valid tensor", op, i))
			return nil
		}
		if in.Graph() != g {
			g.fail(fmt.Errorf("%s: input %d belongs to graph %s", op, i, in.Graph().name))
			return nil
		}
	}
	return g
}

func requireString(g *Graph, op string, inputs ...Output) bool {
	for i, in := range inputs {
		if in.DType() != tensor.String {
			g.fail(fmt.Errorf("%s: input %d must be string, got %s", op, i, in.DType()))
			return false
		}
	}
	return true
}

// Identity forwards x under a new name.
func Identity(x Output, name string) Output {
	g := graphOf("Identity", x)
	if g == nil {
		return Output{}
	}
	n := g.addNode("Identity", name, []Output{x}, nil, []OutputSpec{{DType: x.DType(), Shape: x.Shape().Clone()}})
	return n.Output(0)
}

// Reshape changes the shape of x. One dimension may be -1.
func Reshape(x Output, shape ...int) Output {
	g := graphOf("Reshape", x)
	if g == nil {
		return Output{}
	}
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	out := tensor.Shape(shape).Clone()
	if in := x.Shape(); in.IsFullyDefined() {
		resolved, err := tensor.ResolveShape(out, in.NumElements())
		if err != nil {
			g.fail(fmt.Errorf("Reshape %s: %w", x.WireID(), err))
			return Output{}
		}
		out = resolved
	}
	shapeConst := g.Const("", tensor.Vector(dims...))
	n := g.addNode("Reshape", "", []Output{x, shapeConst}, nil, []OutputSpec{{DType: x.DType(), Shape: out}})
	return n.Output(0)
}

// RegexReplace replaces matches of the RE2 pattern in every element of x.
// With global unset only the first match in each element is replaced.
func RegexReplace(x Output, pattern, rewrite string, global bool) Output {
	const op = "StaticRegexReplace"
	g := graphOf(op, x)
	if g == nil || !requireString(g, op, x) {
		return Output{}
	}
	re, err := textops.CompileRegex(pattern)
	if err != nil {
		g.fail(fmt.Errorf("%s: %w", op, err))
		return Output{}
	}
	if _, err := textops.ExpandTemplate(rewrite); err != nil {
		g.fail(fmt.Errorf("%s: %w", op, err))
		return Output{}
	}
	if err := textops.CheckRewrite(re, rewrite); err != nil {
		g.fail(fmt.Errorf("%s: %w", op, err))
		return Output{}
	}
	attrs := map[string]any{"pattern": pattern, "rewrite": rewrite, "replace_global": global}
	n := g.addNode(op, "", []Output{x}, attrs, []OutputSpec{{DType: tensor.String, Shape: x.Shape().Clone()}})
	return n.Output(0)
}

// RegexReplaceT is RegexReplace with pattern and rewrite supplied as scalar
// string tensors.
func RegexReplaceT(x, pattern, rewrite Output, global bool) Output {
	const op = "RegexReplace"
	g := graphOf(op, x, pattern, rewrite)
	if g == nil || !requireString(g, op, x, pattern, rewrite) {
		return Output{}
	}
	n := g.addNode(op, "", []Output{x, pattern, rewrite}, map[string]any{"replace_global": global},
		[]OutputSpec{{DType: tensor.String, Shape: x.Shape().Clone()}})
	return n.Output(0)
}

// StringJoin joins inputs element-wise with separator. Inputs must be
// scalars or share one shape; scalars are broadcast. With no inputs there
// is no graph to record the error on, so the result is an invalid Output.
func StringJoin(inputs []Output, separator string) Output {
	const op = "StringJoin"
	if len(inputs) == 0 {
		return Output{}
	}
	g := graphOf(op, inputs...)
	if g == nil || !requireString(g, op, inputs...) {
		return Output{}
	}
	shape := tensor.Shape{}
	for i, in := range inputs {
		s := in.Shape()
		if len(s) == 0 {
			continue
		}
		if len(shape) == 0 {
			shape = s.Clone()
			continue
		}
		merged, ok := sameShape(shape, s)
		if !ok {
			g.fail(fmt.Errorf("%s: input %d shape %v does not match %v", op, i, s, shape))
			return Output{}
		}
		shape = merged
	}
	attrs := map[string]any{"separator": separator, "N": int64(len(inputs))}
	n := g.addNode(op, "", append([]Output(nil), inputs...), attrs, []OutputSpec{{DType: tensor.String, Shape: shape}})
	return n.Output(0)
}

// sameShape reports whether a and b can be the same shape. Unknown (-1)
// dims match anything; the merged shape keeps the known ones.
func sameShape(a, b tensor.Shape) (tensor.Shape, bool) {
	if len(a) != len(b) {
		return nil, false
	}
	merged := a.Clone()
	for i := range a {
		switch {
		case a[i] == b[i]:
		case a[i] < 0:
			merged[i] = b[i]
		case b[i] < 0:
		default:
			return nil, false
		}
	}
	return merged, true
}

// Ragged is the result of StringSplit: a ragged tensor whose innermost
// values are the tokens of every input element in row-major order.
type Ragged struct {
	indices    Output
	values     Output
	denseShape Output
}

// FlatValues returns the tokens as a rank-1 string tensor.
func (r Ragged) FlatValues() Output { return r.values }

// Indices returns the [N, 2] (row, position) coordinates of the tokens.
func (r Ragged) Indices() Output { return r.indices }

// DenseShape returns [rows, max tokens per row].
func (r Ragged) DenseShape() Output { return r.denseShape }

// StringSplit splits every element of x on sep. An empty sep splits on
// whitespace runs. Inputs of rank other than 1 are flattened first.
func StringSplit(x Output, sep string) Ragged {
	return StringSplitN(x, sep, -1)
}

// StringSplitN is StringSplit with at most maxSplit splits per element.
func StringSplitN(x Output, sep string, maxSplit int64) Ragged {
	const op = "StringSplitV2"
	g := graphOf(op, x)
	if g == nil || !requireString(g, op, x) {
		return Ragged{}
	}
	if len(x.Shape()) != 1 {
		x = Reshape(x, -1)
	}
	sepConst := g.Const("", tensor.Scalar(sep))
	n := g.addNode(op, "", []Output{x, sepConst}, map[string]any{"maxsplit": maxSplit}, []OutputSpec{
		{DType: tensor.Int64, Shape: tensor.Shape{-1, 2}},
		{DType: tensor.String, Shape: tensor.Shape{-1}},
		{DType: tensor.Int64, Shape: tensor.Shape{2}},
	})
	return Ragged{indices: n.Output(0), values: n.Output(1), denseShape: n.Output(2)}
}

// StringToHashBucketFast maps every element of x to a bucket in
// [0, numBuckets) using a 64-bit fingerprint of its bytes.
func StringToHashBucketFast(x Output, numBuckets int64) Output {
	const op = "StringToHashBucketFast"
	g := graphOf(op, x)
	if g == nil || !requireString(g, op, x) {
		return Output{}
	}
	if numBuckets < 1 {
		g.fail(fmt.Errorf("%s: num_buckets must be >= 1, got %d", op, numBuckets))
		return Output{}
	}
	n := g.addNode(op, "", []Output{x}, map[string]any{"num_buckets": numBuckets},
		[]OutputSpec{{DType: tensor.Int64, Shape: x.Shape().Clone()}})
	return n.Output(0)
}

// StringUpper upper-cases x. encoding "" maps ASCII only, "utf-8" maps
// Unicode letters.
func StringUpper(x Output, encoding string) Output {
	return caseOp("StringUpper", x, encoding)
}

// StringLower lower-cases x. See StringUpper for encoding.
func StringLower(x Output, encoding string) Output {
	return caseOp("StringLower", x, encoding)
}

func caseOp(op string, x Output, encoding string) Output {
	g := graphOf(op, x)
	if g == nil || !requireString(g, op, x) {
		return Output{}
	}
	if encoding != "" && encoding != "utf-8" {
		g.fail(fmt.Errorf("%s: unsupported encoding %q", op, encoding))
		return Output{}
	}
	n := g.addNode(op, "", []Output{x}, map[string]any{"encoding": encoding},
		[]OutputSpec{{DType: tensor.String, Shape: x.Shape().Clone()}})
	return n.Output(0)
}
