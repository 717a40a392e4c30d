package contrib

import (
	"fmt"
	"strings"

	"github.com/born-ml/strops/internal/onnx/operators"
	"github.com/born-ml/strops/internal/tensor"
	"github.com/born-ml/strops/internal/textops"
)

func wantInputs(op string, inputs []*tensor.Tensor, n int) error {
	if len(inputs) != n {
		return fmt.Errorf("%s requires %d inputs, got %d", op, n, len(inputs))
	}
	for i, in := range inputs {
		if in == nil {
			return fmt.Errorf("%s: input %d is missing", op, i)
		}
	}
	return nil
}

func stringsOf(op, what string, t *tensor.Tensor) ([]string, error) {
	if t.DType() != tensor.String {
		return nil, fmt.Errorf("%s: %s must be string, got %s", op, what, t.DType())
	}
	return t.Strings(), nil
}

// single reads a scalar or one-element tensor.
func single[T tensor.Elem](op, what string, t *tensor.Tensor) (T, error) {
	var zero T
	vals, err := tensor.Values[T](t)
	if err != nil {
		return zero, fmt.Errorf("%s: %s: %w", op, what, err)
	}
	if len(vals) != 1 {
		return zero, fmt.Errorf("%s: %s must hold one element, has shape %v", op, what, t.Shape())
	}
	return vals[0], nil
}

func handleRegexReplace(_ *operators.Context, node *operators.Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	const op = "StringRegexReplace"
	if err := wantInputs(op, inputs, 3); err != nil {
		return nil, err
	}
	text, err := stringsOf(op, "text", inputs[0])
	if err != nil {
		return nil, err
	}
	pattern, err := single[string](op, "pattern", inputs[1])
	if err != nil {
		return nil, err
	}
	rewrite, err := single[string](op, "rewrite", inputs[2])
	if err != nil {
		return nil, err
	}
	global := operators.GetAttrInt(node, "global_replace", 1) != 0

	out, err := textops.RegexReplaceAll(text, pattern, rewrite, global)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t, err := tensor.FromSlice(out, inputs[0].Shape())
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{t}, nil
}

// handleJoin joins text along axis. The output drops that axis.
func handleJoin(_ *operators.Context, _ *operators.Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	const op = "StringJoin"
	if err := wantInputs(op, inputs, 3); err != nil {
		return nil, err
	}
	text, err := stringsOf(op, "text", inputs[0])
	if err != nil {
		return nil, err
	}
	sep, err := single[string](op, "separator", inputs[1])
	if err != nil {
		return nil, err
	}
	axisVals, err := inputs[2].AsInt64s()
	if err != nil || len(axisVals) != 1 {
		return nil, fmt.Errorf("%s: axis must be one integer", op)
	}

	shape := inputs[0].Shape()
	if len(shape) == 0 {
		return []*tensor.Tensor{tensor.Scalar(text[0])}, nil
	}
	axis := int(axisVals[0])
	if axis < 0 {
		axis += len(shape)
	}
	if axis < 0 || axis >= len(shape) {
		return nil, fmt.Errorf("%s: axis %d out of range for rank %d", op, axisVals[0], len(shape))
	}

	outShape := make(tensor.Shape, 0, len(shape)-1)
	outShape = append(outShape, shape[:axis]...)
	outShape = append(outShape, shape[axis+1:]...)
	inner := 1
	for _, d := range shape[axis+1:] {
		inner *= d
	}
	dim := shape[axis]

	out := make([]string, outShape.NumElements())
	parts := make([]string, dim)
	for i := range out {
		outer, in := i/inner, i%inner
		for k := 0; k < dim; k++ {
			parts[k] = text[(outer*dim+k)*inner+in]
		}
		out[i] = strings.Join(parts, sep)
	}
	t, err := tensor.FromSlice(out, outShape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{t}, nil
}

// splitAny cuts s at every byte contained in delims.
func splitAny(s, delims string, skipEmpty bool) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(delims, s[i]) < 0 {
			continue
		}
		if tok := s[start:i]; !skipEmpty || tok != "" {
			out = append(out, tok)
		}
		start = i + 1
	}
	if tok := s[start:]; !skipEmpty || tok != "" {
		out = append(out, tok)
	}
	return out
}

// handleSplit splits a 1-D tensor into a sparse result. A non-empty
// delimiter is a set of single-byte separators; an empty one splits every
// byte.
func handleSplit(_ *operators.Context, _ *operators.Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	const op = "StringSplit"
	if err := wantInputs(op, inputs, 3); err != nil {
		return nil, err
	}
	if inputs[0].Rank() != 1 {
		return nil, fmt.Errorf("%s: input must be 1-D, has shape %v", op, inputs[0].Shape())
	}
	text, err := stringsOf(op, "input", inputs[0])
	if err != nil {
		return nil, err
	}
	delim, err := single[string](op, "delimiter", inputs[1])
	if err != nil {
		return nil, err
	}
	skipEmpty, err := single[bool](op, "skip_empty", inputs[2])
	if err != nil {
		return nil, err
	}

	tokens := make([][]string, len(text))
	for i, s := range text {
		if delim == "" {
			tokens[i] = textops.SplitBytes(s, skipEmpty)
			continue
		}
		tokens[i] = splitAny(s, delim, skipEmpty)
	}
	return sparseFromTokens(tokens)
}

// sparseFromTokens lays out per-row tokens as (indices [N,2], values [N],
// dense_shape [2]).
func sparseFromTokens(tokens [][]string) ([]*tensor.Tensor, error) {
	var values []string
	var indices []int64
	width := 0
	for row, toks := range tokens {
		for col, tok := range toks {
			indices = append(indices, int64(row), int64(col))
			values = append(values, tok)
		}
		width = max(width, len(toks))
	}

	idx, err := tensor.FromSlice(indices, tensor.Shape{len(values), 2})
	if err != nil {
		return nil, err
	}
	vals, err := tensor.FromSlice(values, tensor.Shape{len(values)})
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{idx, vals, tensor.Vector(int64(len(tokens)), int64(width))}, nil
}

func handleHashBucketFast(_ *operators.Context, _ *operators.Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	const op = "StringToHashBucketFast"
	if err := wantInputs(op, inputs, 2); err != nil {
		return nil, err
	}
	text, err := stringsOf(op, "input", inputs[0])
	if err != nil {
		return nil, err
	}
	n, err := single[int64](op, "num_buckets", inputs[1])
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%s: num_buckets must be positive, got %d", op, n)
	}

	out := make([]int64, len(text))
	for i, s := range text {
		out[i] = textops.HashBucket(s, n)
	}
	t, err := tensor.FromSlice(out, inputs[0].Shape())
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{t}, nil
}

func caseHandler(op string, fn func(string) string) operators.OpHandler {
	return func(_ *operators.Context, _ *operators.Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
		if err := wantInputs(op, inputs, 1); err != nil {
			return nil, err
		}
		text, err := stringsOf(op, "input", inputs[0])
		if err != nil {
			return nil, err
		}
		t, err := tensor.FromSlice(textops.Map(text, fn), inputs[0].Shape())
		if err != nil {
			return nil, err
		}
		return []*tensor.Tensor{t}, nil
	}
}

var (
	handleUpper = caseHandler("StringUpper", textops.ASCIIUpper)
	handleLower = caseHandler("StringLower", textops.ASCIILower)
)
