package tensor

import "fmt"

// Reshape returns a tensor sharing t's data with a new shape.
// One dimension may be -1 and is inferred from the element count.
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	resolved, err := ResolveShape(shape, t.Len())
	if err != nil {
		return nil, err
	}
	return &Tensor{shape: resolved, dtype: t.dtype, data: t.data}, nil
}

// ResolveShape infers a single -1 dimension so that shape holds n elements.
func ResolveShape(shape Shape, n int) (Shape, error) {
	out := shape.Clone()
	unknown := -1
	known := 1
	for i, dim := range out {
		switch {
		case dim == -1:
			if unknown >= 0 {
				return nil, fmt.Errorf("reshape %v: more than one -1 dimension", shape)
			}
			unknown = i
		case dim < 0:
			return nil, fmt.Errorf("reshape %v: invalid dimension %d", shape, dim)
		default:
			known *= dim
		}
	}
	if unknown >= 0 {
		if known == 0 || n%known != 0 {
			return nil, fmt.Errorf("reshape %v: cannot infer dimension for %d elements", shape, n)
		}
		out[unknown] = n / known
		return out, nil
	}
	if known != n {
		return nil, fmt.Errorf("reshape %v: needs %d elements, tensor has %d", shape, known, n)
	}
	return out, nil
}

// BroadcastTo expands t to shape using NumPy broadcasting.
func (t *Tensor) BroadcastTo(shape Shape) (*Tensor, error) {
	target, _, err := BroadcastShapes(t.shape, shape)
	if err != nil {
		return nil, err
	}
	if !target.Equal(shape) {
		return nil, fmt.Errorf("cannot broadcast %v to %v", t.shape, shape)
	}
	if target.Equal(t.shape) {
		return t, nil
	}

	// Source strides aligned to the target rank; broadcast dims get stride 0.
	srcStrides := t.shape.ComputeStrides()
	aligned := make([]int, len(target))
	offset := len(target) - len(t.shape)
	for i := range t.shape {
		if t.shape[i] != 1 {
			aligned[offset+i] = srcStrides[i]
		}
	}

	dstStrides := target.ComputeStrides()
	idx := make([]int, target.NumElements())
	for flat := range idx {
		rem := flat
		src := 0
		for d, stride := range dstStrides {
			coord := rem / stride
			rem %= stride
			src += coord * aligned[d]
		}
		idx[flat] = src
	}
	return &Tensor{shape: target.Clone(), dtype: t.dtype, data: gather(t.data, idx)}, nil
}

// Concat joins tensors along axis. All inputs must share dtype and rank and
// agree on every dimension except axis.
func Concat(ts []*Tensor, axis int) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("concat: no inputs")
	}
	first := ts[0]
	rank := first.Rank()
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, fmt.Errorf("concat: axis %d out of range for rank %d", axis, rank)
	}

	outShape := first.shape.Clone()
	outShape[axis] = 0
	starts := make([]int, len(ts))
	offsets := make([]int, len(ts))
	parts := make([]any, len(ts))
	total := 0
	for k, in := range ts {
		if in.dtype != first.dtype {
			return nil, fmt.Errorf("concat: input %d is %s, want %s", k, in.dtype, first.dtype)
		}
		if in.Rank() != rank {
			return nil, fmt.Errorf("concat: input %d has rank %d, want %d", k, in.Rank(), rank)
		}
		for d := range in.shape {
			if d != axis && in.shape[d] != first.shape[d] {
				return nil, fmt.Errorf("concat: input %d shape %v incompatible with %v", k, in.shape, first.shape)
			}
		}
		starts[k] = outShape[axis]
		offsets[k] = total
		outShape[axis] += in.shape[axis]
		total += in.Len()
		parts[k] = in.data
	}

	inner := 1
	for _, dim := range outShape[axis+1:] {
		inner *= dim
	}
	axisDim := outShape[axis]

	idx := make([]int, outShape.NumElements())
	for flat := range idx {
		outer := flat / (axisDim * inner)
		pos := (flat / inner) % axisDim
		in := flat % inner
		k := len(ts) - 1
		for k > 0 && starts[k] > pos {
			k--
		}
		dim := ts[k].shape[axis]
		idx[flat] = offsets[k] + outer*dim*inner + (pos-starts[k])*inner + in
	}

	return &Tensor{shape: outShape, dtype: first.dtype, data: gather(concatData(first.dtype, parts), idx)}, nil
}

// Gather returns a rank-1 tensor of the elements at the given flat indices.
func (t *Tensor) Gather(idx []int) *Tensor {
	return &Tensor{shape: Shape{len(idx)}, dtype: t.dtype, data: gather(t.data, idx)}
}

func gatherSlice[T any](src []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}

func gather(data any, idx []int) any {
	switch d := data.(type) {
	case []float32:
		return gatherSlice(d, idx)
	case []float64:
		return gatherSlice(d, idx)
	case []int32:
		return gatherSlice(d, idx)
	case []int64:
		return gatherSlice(d, idx)
	case []uint8:
		return gatherSlice(d, idx)
	case []bool:
		return gatherSlice(d, idx)
	case []string:
		return gatherSlice(d, idx)
	default:
		panic(fmt.Sprintf("tensor: unsupported backing type %T", data))
	}
}

func concatSlices[T any](parts []any) []T {
	var out []T
	for _, p := range parts {
		out = append(out, p.([]T)...)
	}
	return out
}

func concatData(dtype DataType, parts []any) any {
	switch dtype {
	case Float32:
		return concatSlices[float32](parts)
	case Float64:
		return concatSlices[float64](parts)
	case Int32:
		return concatSlices[int32](parts)
	case Int64:
		return concatSlices[int64](parts)
	case Uint8:
		return concatSlices[uint8](parts)
	case Bool:
		return concatSlices[bool](parts)
	case String:
		return concatSlices[string](parts)
	default:
		panic(fmt.Sprintf("tensor: unsupported dtype %s", dtype))
	}
}
