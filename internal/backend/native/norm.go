package native

import (
	"math"

	"github.com/fieldmapless/synb0/internal/tensor"
)

// InstanceNorm normalises each (sample, channel) pair over its spatial
// extent using the population mean and variance, then applies the affine
// transform gamma*x+beta. dst may alias src.
func (b *Backend) InstanceNorm(dst, src *tensor.Tensor, gamma, beta []float32, eps float32) {
	n, d, h, w, c := dims5(src)
	checkDims5(dst, n, d, h, w, c)
	if len(gamma) != c || len(beta) != c {
		panic("instancenorm: affine parameter length mismatch")
	}

	spatial := d * h * w
	parallelFor(n*c, b.workers, func(u0, u1 int) {
		for u := u0; u < u1; u++ {
			nn, ch := u/c, u%c
			base := nn*spatial*c + ch

			var sum float64
			for i := 0; i < spatial; i++ {
				sum += float64(src.Data[base+i*c])
			}
			mean := sum / float64(spatial)

			var varSum float64
			for i := 0; i < spatial; i++ {
				dv := float64(src.Data[base+i*c]) - mean
				varSum += dv * dv
			}
			variance := varSum / float64(spatial)

			scale := float32(1/math.Sqrt(variance+float64(eps))) * gamma[ch]
			shift := beta[ch] - float32(mean)*scale
			for i := 0; i < spatial; i++ {
				idx := base + i*c
				dst.Data[idx] = src.Data[idx]*scale + shift
			}
		}
	})
}
