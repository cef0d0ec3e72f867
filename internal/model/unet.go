// Package model implements the fixed 3D U-Net that predicts a synthetic
// distortion-free b0 volume from a padded, normalised b0/T1 pair.
//
// The architecture is a constant: three encoder levels of paired
// convolutions with max-pool downsampling, a 1x1x1 latent head, and a
// mirrored decoder of transposed convolutions with skip concatenations.
// Construction allocates parameters and scratch for the standard grid;
// LoadWeights installs a trained parameter set from a safetensors file.
// A fresh Instance carries zero kernels and identity norms, which is
// enough for shape checks and throughput measurement but produces
// all-zero predictions.
package model

import (
	"fmt"

	"github.com/fieldmapless/synb0/internal/backend"
	"github.com/fieldmapless/synb0/internal/tensor"
)

const (
	// Network grid. Inputs are (N, GridD, GridH, GridW, InChannels)
	// channels-last tensors.
	GridD = 80
	GridH = 96
	GridW = 80

	InChannels = 2

	normEps    = 1e-3
	leakySlope = 0.01
)

// blockSpec describes one parameterised layer. Kernels are stored in the
// weight file as (k,k,k,cin,cout) for convolutions and (k,k,k,cout,cin)
// for transposed convolutions; in memory every kernel is held in
// convolution layout.
type blockSpec struct {
	name       string
	cin, cout  int
	kernel     int
	up         bool // 2x2x2 stride-2 transposed convolution
	transposed bool // stored in transposed-convolution layout
	bias       bool // carries a bias and skips norm and activation
}

// unetSpec lists every layer in execution order. The decoder's cin values
// at dc8, dc5 and dc2 include the concatenated skip channels.
var unetSpec = []blockSpec{
	{name: "ec0", cin: InChannels, cout: 32, kernel: 3},
	{name: "ec1", cin: 32, cout: 64, kernel: 3},
	{name: "ec2", cin: 64, cout: 64, kernel: 3},
	{name: "ec3", cin: 64, cout: 128, kernel: 3},
	{name: "ec4", cin: 128, cout: 128, kernel: 3},
	{name: "ec5", cin: 128, cout: 256, kernel: 3},
	{name: "ec6", cin: 256, cout: 256, kernel: 3},
	{name: "ec7", cin: 256, cout: 512, kernel: 3},
	{name: "el", cin: 512, cout: 512, kernel: 1, bias: true},
	{name: "dc9", cin: 512, cout: 512, kernel: 2, up: true, transposed: true},
	{name: "dc8", cin: 768, cout: 256, kernel: 3, transposed: true},
	{name: "dc7", cin: 256, cout: 256, kernel: 3, transposed: true},
	{name: "dc6", cin: 256, cout: 256, kernel: 2, up: true, transposed: true},
	{name: "dc5", cin: 384, cout: 128, kernel: 3, transposed: true},
	{name: "dc4", cin: 128, cout: 128, kernel: 3, transposed: true},
	{name: "dc3", cin: 128, cout: 128, kernel: 2, up: true, transposed: true},
	{name: "dc2", cin: 192, cout: 64, kernel: 3, transposed: true},
	{name: "dc1", cin: 64, cout: 64, kernel: 3, transposed: true},
	{name: "dc0", cin: 64, cout: 1, kernel: 1, transposed: true},
	{name: "dl", cin: 1, cout: 1, kernel: 1, transposed: true, bias: true},
}

type block struct {
	spec   blockSpec
	kernel *tensor.Tensor // (k,k,k,cin,cout)
	gamma  []float32
	beta   []float32
	bias   []float32
}

// Instance is one materialised network. It owns its parameters and
// scratch and is not safe for concurrent Forward calls.
type Instance struct {
	ops     backend.Ops
	d, h, w int
	blocks  []block
	weights *WeightsInfo
	scr     scratch
}

// WeightsInfo describes the parameter set installed by LoadWeights.
type WeightsInfo struct {
	Path     string
	Tensors  int
	Params   int64
	Metadata map[string]string
}

// scratch holds the activation buffers for a single-sample forward pass,
// sized for the widest tensors that live at each resolution level. About
// 1.2 GiB on the standard grid.
type scratch struct {
	a0, b0, c0 []float32 // full grid: up to 192, 128, 64 channels
	a1, b1, c1 []float32 // half grid: 384, 256, 128
	a2, b2, c2 []float32 // quarter grid: 768, 512, 256
	a3, b3     []float32 // eighth grid: 512, 512
}

func (s *scratch) alloc(d, h, w int) {
	v0 := d * h * w
	v1 := v0 / 8
	v2 := v1 / 8
	v3 := v2 / 8
	s.a0 = make([]float32, v0*192)
	s.b0 = make([]float32, v0*128)
	s.c0 = make([]float32, v0*64)
	s.a1 = make([]float32, v1*384)
	s.b1 = make([]float32, v1*256)
	s.c1 = make([]float32, v1*128)
	s.a2 = make([]float32, v2*768)
	s.b2 = make([]float32, v2*512)
	s.c2 = make([]float32, v2*256)
	s.a3 = make([]float32, v3*512)
	s.b3 = make([]float32, v3*512)
}

// New builds the network on the standard grid with zero-valued weights.
func New(ops backend.Ops) *Instance {
	return newWithGrid(ops, GridD, GridH, GridW)
}

// newWithGrid exists so tests can run the full graph on a small grid.
// Three pooling stages require every spatial dim to divide by 8.
func newWithGrid(ops backend.Ops, d, h, w int) *Instance {
	if d%8 != 0 || h%8 != 0 || w%8 != 0 {
		panic(fmt.Sprintf("model: grid (%d,%d,%d) not divisible by 8", d, h, w))
	}
	m := &Instance{ops: ops, d: d, h: h, w: w}
	m.blocks = make([]block, len(unetSpec))
	for i, spec := range unetSpec {
		b := block{spec: spec}
		k := spec.kernel
		b.kernel = tensor.New(k, k, k, spec.cin, spec.cout)
		if spec.bias {
			b.bias = make([]float32, spec.cout)
		} else {
			b.gamma = make([]float32, spec.cout)
			b.beta = make([]float32, spec.cout)
			for j := range b.gamma {
				b.gamma[j] = 1
			}
		}
		m.blocks[i] = b
	}
	m.scr.alloc(d, h, w)
	return m
}

// Backend names the kernel set the instance executes on.
func (m *Instance) Backend() string { return m.ops.Name() }

// Weights reports the installed parameter set, or false when the instance
// still carries its zero initialisation.
func (m *Instance) Weights() (WeightsInfo, bool) {
	if m.weights == nil {
		return WeightsInfo{}, false
	}
	return *m.weights, true
}

// Forward runs a (N,80,96,80,2) channels-last batch through the network
// and returns a fresh (N,80,96,80) prediction with the channel axis
// squeezed. Samples are processed one at a time against shared scratch.
func (m *Instance) Forward(in *tensor.Tensor) (*tensor.Tensor, error) {
	if in == nil {
		return nil, fmt.Errorf("model: nil input")
	}
	if in.Rank() != 5 || in.Dim(1) != m.d || in.Dim(2) != m.h || in.Dim(3) != m.w || in.Dim(4) != InChannels {
		return nil, fmt.Errorf("model: input shape %v, want (N,%d,%d,%d,%d)",
			in.Shape, m.d, m.h, m.w, InChannels)
	}
	n := in.Dim(0)
	if n < 1 {
		return nil, fmt.Errorf("model: empty batch")
	}
	out := tensor.New(n, m.d, m.h, m.w)
	ss := m.d * m.h * m.w
	for i := 0; i < n; i++ {
		m.forwardSample(in.Slice(i, 1), out.Data[i*ss:(i+1)*ss])
	}
	return out, nil
}

// forwardSample runs one sample through the graph. The buffer schedule
// keeps at most three live activations per level; every step reads one
// buffer and writes a different one.
func (m *Instance) forwardSample(x *tensor.Tensor, out []float32) {
	var dims [4][3]int
	dims[0] = [3]int{m.d, m.h, m.w}
	for l := 1; l < 4; l++ {
		dims[l] = [3]int{dims[l-1][0] / 2, dims[l-1][1] / 2, dims[l-1][2] / 2}
	}
	view := func(buf []float32, l, c int) *tensor.Tensor {
		d := dims[l]
		return tensor.FromData(buf[:d[0]*d[1]*d[2]*c], 1, d[0], d[1], d[2], c)
	}
	s := &m.scr

	// Encoder. syn0..syn2 feed the skip concatenations.
	e0 := view(s.b0, 0, 32)
	m.run("ec0", e0, x)
	syn0 := view(s.c0, 0, 64)
	m.run("ec1", syn0, e0)

	p0 := view(s.b1, 1, 64)
	m.ops.MaxPool3D(p0, syn0)
	e2 := view(s.a1, 1, 64)
	m.run("ec2", e2, p0)
	syn1 := view(s.c1, 1, 128)
	m.run("ec3", syn1, e2)

	p1 := view(s.b2, 2, 128)
	m.ops.MaxPool3D(p1, syn1)
	e4 := view(s.a2, 2, 128)
	m.run("ec4", e4, p1)
	syn2 := view(s.c2, 2, 256)
	m.run("ec5", syn2, e4)

	p2 := view(s.a3, 3, 256)
	m.ops.MaxPool3D(p2, syn2)
	e6 := view(s.b3, 3, 256)
	m.run("ec6", e6, p2)
	e7 := view(s.a3, 3, 512)
	m.run("ec7", e7, e6)
	latent := view(s.b3, 3, 512)
	m.run("el", latent, e7)

	// Decoder.
	u9 := view(s.b2, 2, 512)
	m.run("dc9", u9, latent)
	cat := view(s.a2, 2, 768)
	m.ops.ConcatChannels(cat, u9, syn2)
	d8 := view(s.b2, 2, 256)
	m.run("dc8", d8, cat)
	d7 := view(s.c2, 2, 256)
	m.run("dc7", d7, d8)

	u6 := view(s.b1, 1, 256)
	m.run("dc6", u6, d7)
	cat = view(s.a1, 1, 384)
	m.ops.ConcatChannels(cat, u6, syn1)
	d5 := view(s.b1, 1, 128)
	m.run("dc5", d5, cat)
	d4 := view(s.c1, 1, 128)
	m.run("dc4", d4, d5)

	u3 := view(s.b0, 0, 128)
	m.run("dc3", u3, d4)
	cat = view(s.a0, 0, 192)
	m.ops.ConcatChannels(cat, u3, syn0)
	d2 := view(s.b0, 0, 64)
	m.run("dc2", d2, cat)
	d1 := view(s.c0, 0, 64)
	m.run("dc1", d1, d2)
	head := view(s.b0, 0, 1)
	m.run("dc0", head, d1)
	m.run("dl", tensor.FromData(out, 1, dims[0][0], dims[0][1], dims[0][2], 1), head)
}

// run executes one named block: the convolution (or its stride-2
// transposed variant), then instance norm and leaky ReLU unless the block
// is one of the bias-carrying linear heads. Stride-1 transposed blocks
// were lowered to plain convolutions when their kernels were installed.
func (m *Instance) run(name string, dst, src *tensor.Tensor) {
	b := m.block(name)
	if b.spec.up {
		m.ops.UpConv3D(dst, src, b.kernel, b.bias)
	} else {
		m.ops.Conv3D(dst, src, b.kernel, b.bias)
	}
	if b.spec.bias {
		return
	}
	m.ops.InstanceNorm(dst, dst, b.gamma, b.beta, normEps)
	m.ops.LeakyReLU(dst, leakySlope)
}

func (m *Instance) block(name string) *block {
	for i := range m.blocks {
		if m.blocks[i].spec.name == name {
			return &m.blocks[i]
		}
	}
	panic("model: unknown block " + name)
}
