// Package tensor provides the dense float32 containers and the blocked
// parallel GEMM shared by the volume pipeline and the network backends.
//
// Layout convention is channels-last throughout: rank-4 values are (D,H,W,C)
// and rank-5 values are (N,D,H,W,C), flattened row-major with the last axis
// fastest.
package tensor

// Tensor is a dense row-major float32 value of arbitrary rank.
//
// Tensor does not perform any memory safety beyond the checks performed by
// Go's slice types; out-of-range indices will panic.
type Tensor struct {
	Shape []int
	Data  []float32
}

// New allocates a zero-initialised tensor with the given shape.
func New(shape ...int) *Tensor {
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, numel(shape)),
	}
}

// FromData wraps existing data in a tensor view. The data length must match
// the product of the shape. Modifications to the tensor update data.
func FromData(data []float32, shape ...int) *Tensor {
	if len(data) != numel(shape) {
		panic("tensor: data length mismatch")
	}
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  data,
	}
}

// Rank returns the number of axes.
func (t *Tensor) Rank() int { return len(t.Shape) }

// Dim returns the size of the i-th axis.
func (t *Tensor) Dim(i int) int { return t.Shape[i] }

// Numel returns the total number of elements.
func (t *Tensor) Numel() int { return numel(t.Shape) }

// SampleSize returns the number of elements per leading-axis entry. It is the
// stride between consecutive samples of a batched tensor.
func (t *Tensor) SampleSize() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return numel(t.Shape[1:])
}

// Slice returns a view of samples [i, i+n) along the leading axis. The view
// shares backing memory with t.
func (t *Tensor) Slice(i, n int) *Tensor {
	if len(t.Shape) == 0 {
		panic("tensor: slice of rank-0 tensor")
	}
	if i < 0 || n < 0 || i+n > t.Shape[0] {
		panic("tensor: slice out of range")
	}
	ss := t.SampleSize()
	shape := append([]int(nil), t.Shape...)
	shape[0] = n
	return &Tensor{
		Shape: shape,
		Data:  t.Data[i*ss : (i+n)*ss],
	}
}

// SameShape reports whether a and b have identical shapes.
func SameShape(a, b *Tensor) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			panic("tensor: negative dimension")
		}
		n *= d
	}
	return n
}
