// Package ref implements the loop-literal kernel set. It is the oracle the
// native kernels are tested against and trades all performance for
// obviousness.
package ref

import (
	"math"

	"github.com/fieldmapless/synb0/internal/tensor"
)

type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return "ref" }

func (*Backend) Conv3D(dst, src, kernel *tensor.Tensor, bias []float32) {
	n, d, h, w, cin := dims5(src)
	k := kernel.Dim(0)
	cout := kernel.Dim(4)
	pad := k / 2

	for nn := 0; nn < n; nn++ {
		for zo := 0; zo < d; zo++ {
			for yo := 0; yo < h; yo++ {
				for xo := 0; xo < w; xo++ {
					for co := 0; co < cout; co++ {
						var sum float32
						if bias != nil {
							sum = bias[co]
						}
						for dz := 0; dz < k; dz++ {
							zi := zo + dz - pad
							if zi < 0 || zi >= d {
								continue
							}
							for dy := 0; dy < k; dy++ {
								yi := yo + dy - pad
								if yi < 0 || yi >= h {
									continue
								}
								for dx := 0; dx < k; dx++ {
									xi := xo + dx - pad
									if xi < 0 || xi >= w {
										continue
									}
									for ci := 0; ci < cin; ci++ {
										s := src.Data[(((nn*d+zi)*h+yi)*w+xi)*cin+ci]
										kv := kernel.Data[(((dz*k+dy)*k+dx)*cin+ci)*cout+co]
										sum += s * kv
									}
								}
							}
						}
						dst.Data[(((nn*d+zo)*h+yo)*w+xo)*cout+co] = sum
					}
				}
			}
		}
	}
}

func (*Backend) UpConv3D(dst, src, kernel *tensor.Tensor, bias []float32) {
	n, d, h, w, cin := dims5(src)
	cout := kernel.Dim(4)
	do, ho, wo := 2*d, 2*h, 2*w

	clear(dst.Data)
	for nn := 0; nn < n; nn++ {
		for z := 0; z < d; z++ {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					for dz := 0; dz < 2; dz++ {
						for dy := 0; dy < 2; dy++ {
							for dx := 0; dx < 2; dx++ {
								o := (((nn*do+2*z+dz)*ho+2*y+dy)*wo + 2*x + dx) * cout
								for co := 0; co < cout; co++ {
									var sum float32
									for ci := 0; ci < cin; ci++ {
										s := src.Data[(((nn*d+z)*h+y)*w+x)*cin+ci]
										kv := kernel.Data[(((dz*2+dy)*2+dx)*cin+ci)*cout+co]
										sum += s * kv
									}
									dst.Data[o+co] += sum
								}
							}
						}
					}
				}
			}
		}
	}
	if bias != nil {
		for v := 0; v < n*do*ho*wo; v++ {
			for co := 0; co < cout; co++ {
				dst.Data[v*cout+co] += bias[co]
			}
		}
	}
}

func (*Backend) MaxPool3D(dst, src *tensor.Tensor) {
	n, d, h, w, c := dims5(src)
	do, ho, wo := d/2, h/2, w/2

	for nn := 0; nn < n; nn++ {
		for zo := 0; zo < do; zo++ {
			for yo := 0; yo < ho; yo++ {
				for xo := 0; xo < wo; xo++ {
					for ch := 0; ch < c; ch++ {
						m := float32(math.Inf(-1))
						for dz := 0; dz < 2; dz++ {
							for dy := 0; dy < 2; dy++ {
								for dx := 0; dx < 2; dx++ {
									v := src.Data[(((nn*d+2*zo+dz)*h+2*yo+dy)*w+2*xo+dx)*c+ch]
									if v > m {
										m = v
									}
								}
							}
						}
						dst.Data[(((nn*do+zo)*ho+yo)*wo+xo)*c+ch] = m
					}
				}
			}
		}
	}
}

func (*Backend) InstanceNorm(dst, src *tensor.Tensor, gamma, beta []float32, eps float32) {
	n, d, h, w, c := dims5(src)
	spatial := d * h * w

	for nn := 0; nn < n; nn++ {
		for ch := 0; ch < c; ch++ {
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

			for i := 0; i < spatial; i++ {
				idx := base + i*c
				norm := (float64(src.Data[idx]) - mean) / math.Sqrt(variance+float64(eps))
				dst.Data[idx] = float32(norm)*gamma[ch] + beta[ch]
			}
		}
	}
}

func (*Backend) LeakyReLU(x *tensor.Tensor, alpha float32) {
	for i, v := range x.Data {
		if alpha*v > v {
			x.Data[i] = alpha * v
		}
	}
}

func (*Backend) ConcatChannels(dst, x, y *tensor.Tensor) {
	n, d, h, w, cx := dims5(x)
	cy := y.Dim(4)
	co := cx + cy

	for v := 0; v < n*d*h*w; v++ {
		for ci := 0; ci < cx; ci++ {
			dst.Data[v*co+ci] = x.Data[v*cx+ci]
		}
		for ci := 0; ci < cy; ci++ {
			dst.Data[v*co+cx+ci] = y.Data[v*cy+ci]
		}
	}
}

func dims5(t *tensor.Tensor) (n, d, h, w, c int) {
	if t.Rank() != 5 {
		panic("kernel value must be rank 5")
	}
	return t.Dim(0), t.Dim(1), t.Dim(2), t.Dim(3), t.Dim(4)
}
