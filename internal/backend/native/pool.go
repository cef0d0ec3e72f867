package native

import (
	"github.com/fieldmapless/synb0/internal/tensor"
)

// MaxPool3D halves every spatial dimension with a 2x2x2 stride-2 window.
func (b *Backend) MaxPool3D(dst, src *tensor.Tensor) {
	n, d, h, w, c := dims5(src)
	if d%2 != 0 || h%2 != 0 || w%2 != 0 {
		panic("maxpool3d: spatial dims must be even")
	}
	do, ho, wo := d/2, h/2, w/2
	checkDims5(dst, n, do, ho, wo, c)

	parallelFor(n*do, b.workers, func(p0, p1 int) {
		for p := p0; p < p1; p++ {
			nn, zo := p/do, p%do
			for yo := 0; yo < ho; yo++ {
				for xo := 0; xo < wo; xo++ {
					dOff := (((nn*do+zo)*ho+yo)*wo + xo) * c
					s000 := (((nn*d+2*zo)*h+2*yo)*w + 2*xo) * c
					// the eight source corners, (dz,dy,dx) order
					corners := [8]int{
						s000,
						s000 + c,
						s000 + w*c,
						s000 + (w+1)*c,
						s000 + h*w*c,
						s000 + (h*w+1)*c,
						s000 + (h*w+w)*c,
						s000 + (h*w+w+1)*c,
					}
					for ch := 0; ch < c; ch++ {
						m := src.Data[corners[0]+ch]
						for t := 1; t < 8; t++ {
							if v := src.Data[corners[t]+ch]; v > m {
								m = v
							}
						}
						dst.Data[dOff+ch] = m
					}
				}
			}
		}
	})
}
