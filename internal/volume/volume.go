// Package volume holds the brain-volume data model and the numeric
// transformations of the prediction pipeline: grid validation, zero padding
// to the network grid, percentile scaling and the [-1,1] normalisation.
//
// Layout is row-major (x,y,z) with z fastest; batched volumes carry the
// sample axis first.
package volume

import (
	"errors"
	"fmt"
)

// The fixed grids of the pipeline: inputs arrive co-registered on the
// atlas grid and are zero-padded to the grid the network consumes.
var (
	InputDims  = [3]int{77, 91, 77}
	PaddedDims = [3]int{80, 96, 80}

	padBefore = [3]int{2, 3, 2}
	padAfter  = [3]int{1, 2, 1}
)

// ErrShape reports an input volume that violates the grid contract. It is
// returned before any computation runs.
var ErrShape = errors.New("volume shape invalid")

// Volume is a dense float32 brain volume of rank 3 (x,y,z) or rank 4
// (n,x,y,z).
type Volume struct {
	Shape []int
	Data  []float32
}

// New allocates a zero-initialised volume.
func New(shape ...int) *Volume {
	return &Volume{
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, numel(shape)),
	}
}

// FromData wraps existing data in a volume. The data length must match the
// product of the shape.
func FromData(data []float32, shape ...int) *Volume {
	if len(data) != numel(shape) {
		panic("volume: data length mismatch")
	}
	return &Volume{
		Shape: append([]int(nil), shape...),
		Data:  data,
	}
}

// Rank returns the number of axes.
func (v *Volume) Rank() int { return len(v.Shape) }

// Batch returns the number of samples: 1 for rank-3 volumes, the leading
// dim for rank-4.
func (v *Volume) Batch() int {
	if len(v.Shape) == 4 {
		return v.Shape[0]
	}
	return 1
}

// SampleSize returns the number of voxels per sample.
func (v *Volume) SampleSize() int {
	if len(v.Shape) == 4 {
		return numel(v.Shape[1:])
	}
	return numel(v.Shape)
}

// Sample returns a view of the i-th sample. For rank-3 volumes only sample
// 0 exists.
func (v *Volume) Sample(i int) []float32 {
	n := v.Batch()
	if i < 0 || i >= n {
		panic("volume: sample index out of range")
	}
	ss := v.SampleSize()
	return v.Data[i*ss : (i+1)*ss]
}

// Spatial returns the three spatial dims, ignoring a batch axis.
func (v *Volume) Spatial() [3]int {
	s := v.Shape
	if len(s) == 4 {
		s = s[1:]
	}
	if len(s) != 3 {
		panic("volume: not rank 3 or 4")
	}
	return [3]int{s[0], s[1], s[2]}
}

// CheckPair validates a b0/T1 pair before the pipeline touches it: both
// volumes must share an identical shape, be rank 3 or rank 4 with at least
// one sample, and sit on the input grid. Violations return ErrShape.
func CheckPair(b0, t1 *Volume) error {
	if err := checkInput(b0, "b0"); err != nil {
		return err
	}
	if err := checkInput(t1, "t1"); err != nil {
		return err
	}
	if !sameShape(b0.Shape, t1.Shape) {
		return fmt.Errorf("%w: b0 %v and t1 %v differ", ErrShape, b0.Shape, t1.Shape)
	}
	return nil
}

func checkInput(v *Volume, name string) error {
	if v == nil {
		return fmt.Errorf("%w: %s volume is nil", ErrShape, name)
	}
	r := len(v.Shape)
	if r != 3 && r != 4 {
		return fmt.Errorf("%w: %s has rank %d, want 3 or 4", ErrShape, name, r)
	}
	if r == 4 && v.Shape[0] < 1 {
		return fmt.Errorf("%w: %s has empty batch axis", ErrShape, name)
	}
	spatial := v.Shape
	if r == 4 {
		spatial = v.Shape[1:]
	}
	for i := 0; i < 3; i++ {
		if spatial[i] != InputDims[i] {
			return fmt.Errorf("%w: %s spatial dims %v, want %v", ErrShape, name, spatial, InputDims)
		}
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			panic("volume: negative dimension")
		}
		n *= d
	}
	return n
}
