package native

import (
	"github.com/fieldmapless/synb0/internal/tensor"
)

// LeakyReLU applies x -> max(x, alpha*x) in place.
func (b *Backend) LeakyReLU(x *tensor.Tensor, alpha float32) {
	data := x.Data
	for i, v := range data {
		if v < 0 {
			data[i] = alpha * v
		}
	}
}

// ConcatChannels writes the channels of x followed by the channels of y for
// every voxel.
func (b *Backend) ConcatChannels(dst, x, y *tensor.Tensor) {
	n, d, h, w, cx := dims5(x)
	cy := y.Dim(4)
	checkDims5(y, n, d, h, w, cy)
	checkDims5(dst, n, d, h, w, cx+cy)

	co := cx + cy
	parallelFor(n*d*h*w, b.workers, func(v0, v1 int) {
		for v := v0; v < v1; v++ {
			out := dst.Data[v*co : (v+1)*co]
			copy(out[:cx], x.Data[v*cx:(v+1)*cx])
			copy(out[cx:], y.Data[v*cy:(v+1)*cy])
		}
	})
}
