// Package backend selects the kernel set the network executes on.
//
// Two sets are built in: "native" (blocked parallel GEMM convolutions,
// chunked spatial kernels) and "ref" (literal loops, the test oracle).
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fieldmapless/synb0/internal/backend/native"
	"github.com/fieldmapless/synb0/internal/backend/ref"
	"github.com/fieldmapless/synb0/internal/tensor"
)

const (
	Native = "native"
	Ref    = "ref"
	Auto   = "auto"
)

// ErrUnavailable reports that a requested kernel set does not exist in this
// build. Callers match it with errors.Is.
var ErrUnavailable = errors.New("backend unavailable")

// Ops is the kernel set a network executes on. Implementations may keep
// internal scratch between calls and are not safe for concurrent use.
type Ops interface {
	Name() string

	// Conv3D computes a stride-1 zero-padded convolution. src is
	// (N,D,H,W,Cin), kernel is (kd,kh,kw,Cin,Cout) with odd cubic spatial
	// dims, dst is (N,D,H,W,Cout). bias has length Cout or is nil.
	Conv3D(dst, src, kernel *tensor.Tensor, bias []float32)

	// UpConv3D computes a 2x2x2 stride-2 transposed convolution doubling
	// every spatial dim. kernel is (2,2,2,Cin,Cout); bias may be nil.
	UpConv3D(dst, src, kernel *tensor.Tensor, bias []float32)

	// MaxPool3D computes 2x2x2 stride-2 max pooling, halving every spatial
	// dim of src (N,D,H,W,C).
	MaxPool3D(dst, src *tensor.Tensor)

	// InstanceNorm normalises each (sample, channel) pair of src over its
	// spatial extent using the population variance, then applies
	// gamma*x+beta. dst may alias src.
	InstanceNorm(dst, src *tensor.Tensor, gamma, beta []float32, eps float32)

	// LeakyReLU applies x -> max(x, alpha*x) in place.
	LeakyReLU(x *tensor.Tensor, alpha float32)

	// ConcatChannels writes a followed by b along the trailing channel axis
	// of every voxel. a and b share (N,D,H,W); dst has Ca+Cb channels.
	ConcatChannels(dst, a, b *tensor.Tensor)
}

// Normalize canonicalises a kernel-set name. The empty string maps to Auto;
// unknown names report ErrUnavailable.
func Normalize(name string) (string, error) {
	b := strings.ToLower(strings.TrimSpace(name))
	if b == "" {
		return Auto, nil
	}
	switch b {
	case Native, Ref, Auto:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q (available: %s)", ErrUnavailable, name, Available())
	}
}

// Select resolves a kernel-set name to a fresh Ops instance. Auto picks the
// native set.
func Select(name string) (Ops, error) {
	b, err := Normalize(name)
	if err != nil {
		return nil, err
	}
	switch b {
	case Auto, Native:
		return native.New(), nil
	case Ref:
		return ref.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnavailable, name)
}

// Available returns a comma-separated list of available kernel sets.
func Available() string {
	return strings.Join([]string{Native, Ref}, ",")
}
