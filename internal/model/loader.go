package model

import (
	"errors"
	"fmt"

	"github.com/fieldmapless/synb0/internal/safetensors"
)

// ErrShapeMismatch reports a weight file whose tensor set does not match
// the architecture: a missing or unexpected tensor, or one stored with
// the wrong shape. Callers match it with errors.Is.
var ErrShapeMismatch = errors.New("model: weights do not match architecture")

// TensorSpec names one stored weight tensor and its required shape.
type TensorSpec struct {
	Name  string
	Shape []int
}

// WeightSpec lists every tensor a weight file must provide, in graph
// order. Convolution kernels are stored (k,k,k,cin,cout), transposed
// convolution kernels (k,k,k,cout,cin); gamma, beta and bias vectors are
// flat (c). Blocks with a norm nest their tensors under .conv and .norm;
// the two linear heads store a bare kernel and bias.
func WeightSpec() []TensorSpec {
	specs := make([]TensorSpec, 0, len(unetSpec)*3)
	for _, b := range unetSpec {
		kshape := storedKernelShape(b)
		if b.bias {
			specs = append(specs,
				TensorSpec{Name: b.name + ".kernel", Shape: kshape},
				TensorSpec{Name: b.name + ".bias", Shape: []int{b.cout}})
			continue
		}
		specs = append(specs,
			TensorSpec{Name: b.name + ".conv.kernel", Shape: kshape},
			TensorSpec{Name: b.name + ".norm.gamma", Shape: []int{b.cout}},
			TensorSpec{Name: b.name + ".norm.beta", Shape: []int{b.cout}})
	}
	return specs
}

// ParamCount is the number of trainable scalars in the architecture.
func ParamCount() int64 {
	var n int64
	for _, t := range WeightSpec() {
		e := int64(1)
		for _, d := range t.Shape {
			e *= int64(d)
		}
		n += e
	}
	return n
}

func storedKernelShape(b blockSpec) []int {
	k := b.kernel
	if b.transposed {
		return []int{k, k, k, b.cout, b.cin}
	}
	return []int{k, k, k, b.cin, b.cout}
}

// LoadWeights opens a safetensors file and installs its parameters.
func (m *Instance) LoadWeights(path string) error {
	f, err := safetensors.Open(path)
	if err != nil {
		return fmt.Errorf("open weights: %w", err)
	}
	defer f.Close()
	return m.LoadWeightsFrom(f)
}

// LoadWeightsFrom validates every tensor in f against the architecture
// and installs the parameters. The instance is left untouched on error.
func (m *Instance) LoadWeightsFrom(f *safetensors.File) error {
	type params struct {
		kernel, gamma, beta, bias []float32
	}
	loaded := make([]params, len(m.blocks))
	seen := make(map[string]bool, len(m.blocks)*3)

	for i := range m.blocks {
		sp := m.blocks[i].spec
		kname := sp.name + ".conv.kernel"
		if sp.bias {
			kname = sp.name + ".kernel"
		}
		kvals, err := readExact(f, kname, storedKernelShape(sp))
		if err != nil {
			return err
		}
		seen[kname] = true
		loaded[i].kernel = convKernel(sp, kvals)

		if sp.bias {
			bname := sp.name + ".bias"
			if loaded[i].bias, err = readExact(f, bname, []int{sp.cout}); err != nil {
				return err
			}
			seen[bname] = true
			continue
		}
		gname := sp.name + ".norm.gamma"
		if loaded[i].gamma, err = readExact(f, gname, []int{sp.cout}); err != nil {
			return err
		}
		seen[gname] = true
		bname := sp.name + ".norm.beta"
		if loaded[i].beta, err = readExact(f, bname, []int{sp.cout}); err != nil {
			return err
		}
		seen[bname] = true
	}

	for _, name := range f.Names() {
		if !seen[name] {
			return fmt.Errorf("%w: unexpected tensor %q", ErrShapeMismatch, name)
		}
	}

	for i := range m.blocks {
		b := &m.blocks[i]
		copy(b.kernel.Data, loaded[i].kernel)
		copy(b.gamma, loaded[i].gamma)
		copy(b.beta, loaded[i].beta)
		copy(b.bias, loaded[i].bias)
	}
	m.weights = &WeightsInfo{
		Path:     f.Path,
		Tensors:  len(f.Tensors),
		Params:   ParamCount(),
		Metadata: f.Metadata,
	}
	return nil
}

// readExact reads one named tensor, requiring its exact stored shape.
func readExact(f *safetensors.File, name string, shape []int) ([]float32, error) {
	info, ok := f.Tensor(name)
	if !ok {
		return nil, fmt.Errorf("%w: missing tensor %q", ErrShapeMismatch, name)
	}
	if !equalShape(info.Shape, shape) {
		return nil, fmt.Errorf("%w: tensor %q has shape %v, want %v",
			ErrShapeMismatch, name, info.Shape, shape)
	}
	vals, _, err := f.ReadTensorF32(name)
	if err != nil {
		return nil, fmt.Errorf("read tensor %q: %w", name, err)
	}
	return vals, nil
}

// convKernel rewrites a stored kernel into convolution layout
// (k,k,k,cin,cout). Transposed kernels swap their channel axes, and
// stride-1 transposed kernels additionally flip their spatial taps, which
// turns the transposed convolution into the plain convolution the forward
// pass executes. The 2x2x2 stride-2 kernels keep their tap orientation:
// the scatter in UpConv3D already addresses output voxels by tap offset.
func convKernel(sp blockSpec, stored []float32) []float32 {
	if !sp.transposed {
		return stored
	}
	k, ci, co := sp.kernel, sp.cin, sp.cout
	out := make([]float32, len(stored))
	for dz := 0; dz < k; dz++ {
		for dy := 0; dy < k; dy++ {
			for dx := 0; dx < k; dx++ {
				sz, sy, sx := dz, dy, dx
				if !sp.up {
					sz, sy, sx = k-1-dz, k-1-dy, k-1-dx
				}
				src := ((sz*k+sy)*k + sx) * co * ci
				dst := ((dz*k+dy)*k + dx) * ci * co
				for c := 0; c < co; c++ {
					for c2 := 0; c2 < ci; c2++ {
						out[dst+c2*co+c] = stored[src+c*ci+c2]
					}
				}
			}
		}
	}
	return out
}

func equalShape(a, b []int) bool {
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
