package native

import (
	"github.com/fieldmapless/synb0/internal/tensor"
)

// Conv3D lowers the convolution to patch-matrix by kernel-matrix products,
// one GEMM per output z-plane. 1x1x1 kernels skip the gather and run a
// single GEMM over all voxels.
func (b *Backend) Conv3D(dst, src, kernel *tensor.Tensor, bias []float32) {
	n, d, h, w, cin := dims5(src)
	kd, kh, kw := kernel.Dim(0), kernel.Dim(1), kernel.Dim(2)
	cout := kernel.Dim(4)
	if kd != kh || kh != kw || kd%2 == 0 {
		panic("conv3d: kernel must be cubic with odd size")
	}
	if kernel.Dim(3) != cin {
		panic("conv3d: kernel input channel mismatch")
	}
	checkDims5(dst, n, d, h, w, cout)

	if kd == 1 {
		rows := n * d * h * w
		A := tensor.NewMatFromData(rows, cin, src.Data)
		B := tensor.NewMatFromData(cin, cout, kernel.Data)
		C := tensor.NewMatFromData(rows, cout, dst.Data)
		tensor.GemmPar(&C, &A, &B, 1, 0, b.workers)
		if bias != nil {
			b.addBias(dst.Data, bias)
		}
		return
	}

	k := kd
	pad := k / 2
	patchCols := k * k * k * cin
	patch := b.scratchFor(h * w * patchCols)
	B := tensor.NewMatFromData(patchCols, cout, kernel.Data)

	for nn := 0; nn < n; nn++ {
		for zo := 0; zo < d; zo++ {
			b.gatherPlane(patch, src, nn, zo, k, pad)
			off := (nn*d + zo) * h * w * cout
			A := tensor.NewMatFromData(h*w, patchCols, patch)
			C := tensor.NewMatFromData(h*w, cout, dst.Data[off:off+h*w*cout])
			tensor.GemmPar(&C, &A, &B, 1, 0, b.workers)
		}
	}
	if bias != nil {
		b.addBias(dst.Data, bias)
	}
}

// gatherPlane builds the patch matrix for one output z-plane. Row (yo*W+xo)
// holds the k*k*k*cin input window around voxel (yo,xo), columns ordered
// (dz,dy,dx,ci) to match the kernel flattening. Out-of-range taps are zero.
func (b *Backend) gatherPlane(patch []float32, src *tensor.Tensor, nn, zo, k, pad int) {
	_, d, h, w, cin := dims5(src)
	rowLen := k * k * k * cin
	segZ := k * k * cin
	segY := k * cin
	sampleOff := nn * d * h * w * cin

	parallelFor(h, b.workers, func(y0, y1 int) {
		for yo := y0; yo < y1; yo++ {
			for xo := 0; xo < w; xo++ {
				row := patch[(yo*w+xo)*rowLen : (yo*w+xo+1)*rowLen]
				for dz := 0; dz < k; dz++ {
					zi := zo + dz - pad
					zSeg := row[dz*segZ : (dz+1)*segZ]
					if zi < 0 || zi >= d {
						clear(zSeg)
						continue
					}
					planeOff := sampleOff + zi*h*w*cin
					for dy := 0; dy < k; dy++ {
						yi := yo + dy - pad
						ySeg := zSeg[dy*segY : (dy+1)*segY]
						if yi < 0 || yi >= h {
							clear(ySeg)
							continue
						}
						rowOff := planeOff + yi*w*cin
						x0 := xo - pad
						lo := max(x0, 0)
						hi := min(x0+k, w)
						if lo > x0 {
							clear(ySeg[:(lo-x0)*cin])
						}
						copy(ySeg[(lo-x0)*cin:(hi-x0)*cin], src.Data[rowOff+lo*cin:rowOff+hi*cin])
						if hi < x0+k {
							clear(ySeg[(hi-x0)*cin:])
						}
					}
				}
			}
		}
	})
}

// UpConv3D runs the eight kernel taps as independent GEMMs over every
// source voxel. With stride 2 and size 2 each output voxel receives exactly
// one tap, so the per-tap products scatter disjointly.
func (b *Backend) UpConv3D(dst, src, kernel *tensor.Tensor, bias []float32) {
	n, d, h, w, cin := dims5(src)
	if kernel.Dim(0) != 2 || kernel.Dim(1) != 2 || kernel.Dim(2) != 2 {
		panic("upconv3d: kernel must be 2x2x2")
	}
	if kernel.Dim(3) != cin {
		panic("upconv3d: kernel input channel mismatch")
	}
	cout := kernel.Dim(4)
	do, ho, wo := 2*d, 2*h, 2*w
	checkDims5(dst, n, do, ho, wo, cout)

	rows := n * d * h * w
	A := tensor.NewMatFromData(rows, cin, src.Data)
	tmp := b.scratchFor(rows * cout)

	for tap := 0; tap < 8; tap++ {
		dz, dy, dx := tap>>2&1, tap>>1&1, tap&1
		off := tap * cin * cout
		B := tensor.NewMatFromData(cin, cout, kernel.Data[off:off+cin*cout])
		C := tensor.NewMatFromData(rows, cout, tmp)
		tensor.GemmPar(&C, &A, &B, 1, 0, b.workers)

		parallelFor(n*d, b.workers, func(p0, p1 int) {
			for p := p0; p < p1; p++ {
				nn, z := p/d, p%d
				for y := 0; y < h; y++ {
					srcRow := (p*h + y) * w
					dstOff := ((nn*do+2*z+dz)*ho + 2*y + dy) * wo
					for x := 0; x < w; x++ {
						v := srcRow + x
						o := (dstOff + 2*x + dx) * cout
						out := dst.Data[o : o+cout]
						copy(out, tmp[v*cout:(v+1)*cout])
						if bias != nil {
							tensor.Add(out, bias)
						}
					}
				}
			}
		})
	}
}

// addBias adds bias[c] to channel c of every voxel row.
func (b *Backend) addBias(data, bias []float32) {
	c := len(bias)
	parallelFor(len(data)/c, b.workers, func(v0, v1 int) {
		for v := v0; v < v1; v++ {
			tensor.Add(data[v*c:(v+1)*c], bias)
		}
	})
}

func dims5(t *tensor.Tensor) (n, d, h, w, c int) {
	if t.Rank() != 5 {
		panic("kernel value must be rank 5")
	}
	return t.Dim(0), t.Dim(1), t.Dim(2), t.Dim(3), t.Dim(4)
}

func checkDims5(t *tensor.Tensor, n, d, h, w, c int) {
	if t.Rank() != 5 || t.Dim(0) != n || t.Dim(1) != d || t.Dim(2) != h || t.Dim(3) != w || t.Dim(4) != c {
		panic("kernel value shape mismatch")
	}
}
