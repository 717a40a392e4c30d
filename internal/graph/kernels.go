package graph

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/born-ml/strops/internal/tensor"
	"github.com/born-ml/strops/internal/textops"
)

// Kernel computes a node's outputs from its evaluated inputs.
type Kernel func(n *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error)

// kernels maps op types to their source-side implementations. Placeholder
// is resolved by the session from the feed.
var kernels = map[string]Kernel{
	"Const":                  constKernel,
	"Identity":               identityKernel,
	"Reshape":                reshapeKernel,
	"StaticRegexReplace":     staticRegexReplaceKernel,
	"RegexReplace":           regexReplaceKernel,
	"StringJoin":             stringJoinKernel,
	"StringSplitV2":          stringSplitKernel,
	"StringToHashBucketFast": hashBucketKernel,
	"StringUpper":            caseKernel(textops.ASCIIUpper, unicodeUpper),
	"StringLower":            caseKernel(textops.ASCIILower, unicodeLower),
}

// SupportedOps returns the op types the session can execute.
func SupportedOps() []string {
	ops := []string{"Placeholder"}
	for op := range kernels {
		ops = append(ops, op)
	}
	return ops
}

func one(t *tensor.Tensor) []*tensor.Tensor { return []*tensor.Tensor{t} }

func constKernel(n *Node, _ []*tensor.Tensor) ([]*tensor.Tensor, error) {
	v := n.AttrTensor("value")
	if v == nil {
		return nil, fmt.Errorf("const has no value")
	}
	return one(v), nil
}

func identityKernel(_ *Node, in []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return one(in[0]), nil
}

func reshapeKernel(_ *Node, in []*tensor.Tensor) ([]*tensor.Tensor, error) {
	dims, err := in[1].AsInt64s()
	if err != nil {
		return nil, err
	}
	shape := make(tensor.Shape, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}
	out, err := in[0].Reshape(shape)
	if err != nil {
		return nil, err
	}
	return one(out), nil
}

func stringInput(in *tensor.Tensor, what string) ([]string, error) {
	if in.DType() != tensor.String {
		return nil, fmt.Errorf("%s must be string, got %s", what, in.DType())
	}
	return in.Strings(), nil
}

func scalarString(in *tensor.Tensor, what string) (string, error) {
	vals, err := stringInput(in, what)
	if err != nil {
		return "", err
	}
	if len(vals) != 1 {
		return "", fmt.Errorf("%s must hold exactly one element, got shape %v", what, in.Shape())
	}
	return vals[0], nil
}

func replace(in *tensor.Tensor, pattern, rewrite string, global bool) ([]*tensor.Tensor, error) {
	text, err := stringInput(in, "input")
	if err != nil {
		return nil, err
	}
	vals, err := textops.RegexReplaceAll(text, pattern, rewrite, global)
	if err != nil {
		return nil, err
	}
	out, err := tensor.FromSlice(vals, in.Shape())
	if err != nil {
		return nil, err
	}
	return one(out), nil
}

func staticRegexReplaceKernel(n *Node, in []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return replace(in[0], n.AttrString("pattern", ""), n.AttrString("rewrite", ""), n.AttrBool("replace_global", true))
}

func regexReplaceKernel(n *Node, in []*tensor.Tensor) ([]*tensor.Tensor, error) {
	pattern, err := scalarString(in[1], "pattern")
	if err != nil {
		return nil, err
	}
	rewrite, err := scalarString(in[2], "rewrite")
	if err != nil {
		return nil, err
	}
	return replace(in[0], pattern, rewrite, n.AttrBool("replace_global", true))
}

func stringJoinKernel(n *Node, in []*tensor.Tensor) ([]*tensor.Tensor, error) {
	shape := tensor.Shape{}
	for _, t := range in {
		if t.Rank() > 0 {
			shape = t.Shape()
			break
		}
	}
	columns := make([][]string, len(in))
	for i, t := range in {
		if t.DType() != tensor.String {
			return nil, fmt.Errorf("input %d must be string, got %s", i, t.DType())
		}
		if t.Rank() > 0 && !t.Shape().Equal(shape) {
			return nil, fmt.Errorf("input %d shape %v does not match %v", i, t.Shape(), shape)
		}
		b, err := t.BroadcastTo(shape)
		if err != nil {
			return nil, err
		}
		columns[i] = b.Strings()
	}
	vals, err := textops.Join(columns, n.AttrString("separator", ""))
	if err != nil {
		return nil, err
	}
	out, err := tensor.FromSlice(vals, shape)
	if err != nil {
		return nil, err
	}
	return one(out), nil
}

func stringSplitKernel(n *Node, in []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if in[0].Rank() != 1 {
		return nil, fmt.Errorf("input must be rank 1, got shape %v", in[0].Shape())
	}
	text, err := stringInput(in[0], "input")
	if err != nil {
		return nil, err
	}
	sep, err := scalarString(in[1], "sep")
	if err != nil {
		return nil, err
	}
	maxSplit := int(n.AttrInt("maxsplit", -1))
	tokens := make([][]string, len(text))
	for i, s := range text {
		if sep == "" {
			tokens[i] = textops.SplitWhitespaceN(s, maxSplit)
		} else {
			tokens[i] = textops.Split(s, sep, maxSplit)
		}
	}
	return sparseFromTokens(tokens)
}

// sparseFromTokens packs per-row tokens into the (indices, values, shape)
// triple StringSplitV2 returns.
func sparseFromTokens(tokens [][]string) ([]*tensor.Tensor, error) {
	var indices []int64
	var values []string
	width := 0
	for row, toks := range tokens {
		width = max(width, len(toks))
		for col, tok := range toks {
			indices = append(indices, int64(row), int64(col))
			values = append(values, tok)
		}
	}
	idx, err := tensor.FromSlice(indices, tensor.Shape{len(values), 2})
	if err != nil {
		return nil, err
	}
	vals, err := tensor.FromSlice(values, tensor.Shape{len(values)})
	if err != nil {
		return nil, err
	}
	shape := tensor.Vector(int64(len(tokens)), int64(width))
	return []*tensor.Tensor{idx, vals, shape}, nil
}

func hashBucketKernel(n *Node, in []*tensor.Tensor) ([]*tensor.Tensor, error) {
	text, err := stringInput(in[0], "input")
	if err != nil {
		return nil, err
	}
	buckets := n.AttrInt("num_buckets", 0)
	if buckets < 1 {
		return nil, fmt.Errorf("num_buckets must be >= 1, got %d", buckets)
	}
	vals := make([]int64, len(text))
	for i, s := range text {
		vals[i] = textops.HashBucket(s, buckets)
	}
	out, err := tensor.FromSlice(vals, in[0].Shape())
	if err != nil {
		return nil, err
	}
	return one(out), nil
}

// Full Unicode case mapping; a Caser holds state, so each call gets its own.
func unicodeUpper(s string) string { return cases.Upper(language.Und).String(s) }
func unicodeLower(s string) string { return cases.Lower(language.Und).String(s) }

func caseKernel(ascii, unicode func(string) string) Kernel {
	return func(n *Node, in []*tensor.Tensor) ([]*tensor.Tensor, error) {
		text, err := stringInput(in[0], "input")
		if err != nil {
			return nil, err
		}
		fn := ascii
		if n.AttrString("encoding", "") == "utf-8" {
			fn = unicode
		}
		out, err := tensor.FromSlice(textops.Map(text, fn), in[0].Shape())
		if err != nil {
			return nil, err
		}
		return one(out), nil
	}
}
