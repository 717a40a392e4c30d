package harness

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/born-ml/strops/internal/tensor"
)

// Tolerance bounds float differences: |a-b| <= max(Rel*min(|a|,|b|), Abs).
type Tolerance struct {
	Rel float64
	Abs float64
}

// DefaultTolerance is the float tolerance used when none is configured.
func DefaultTolerance() Tolerance {
	return Tolerance{Rel: 1e-7, Abs: 1e-5}
}

func (t Tolerance) validate() error {
	if t.Rel < 0 || t.Abs < 0 {
		return fmt.Errorf("negative tolerance rel=%g abs=%g", t.Rel, t.Abs)
	}
	return nil
}

// Compare checks that target matches source. Dtype and shape must be equal;
// floats are compared within tol with NaNs equal, everything else exactly.
// The returned diff is empty when they match.
func Compare(source, target *tensor.Tensor, tol Tolerance) (string, error) {
	if source == nil || target == nil {
		if source == target {
			return "", nil
		}
		return "", fmt.Errorf("%w: missing value (source %v, target %v)", ErrMismatch, source, target)
	}
	if source.DType() != target.DType() {
		return "", fmt.Errorf("%w: dtype %s vs %s", ErrMismatch, source.DType(), target.DType())
	}
	if !source.Shape().Equal(target.Shape()) {
		return "", fmt.Errorf("%w: shape %v vs %v", ErrMismatch, source.Shape(), target.Shape())
	}

	var diff string
	switch source.DType() {
	case tensor.Float32:
		diff = cmp.Diff(widen(source.Float32s()), widen(target.Float32s()), floatOpts(tol)...)
	case tensor.Float64:
		diff = cmp.Diff(source.Float64s(), target.Float64s(), floatOpts(tol)...)
	default:
		diff = cmp.Diff(source.Data(), target.Data(), cmpopts.EquateEmpty())
	}
	if diff != "" {
		return diff, fmt.Errorf("%w: values (-source +target)", ErrMismatch)
	}
	return "", nil
}

func floatOpts(tol Tolerance) []cmp.Option {
	return []cmp.Option{cmpopts.EquateApprox(tol.Rel, tol.Abs), cmpopts.EquateNaNs(), cmpopts.EquateEmpty()}
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
