package volume

// Pad zero-pads every sample from the input grid (77,91,77) to the network
// grid (80,96,80) with margins (2,1),(3,2),(2,1). The batch axis, if
// present, is preserved.
func Pad(v *Volume) *Volume {
	requireSpatial(v, InputDims)

	n := v.Batch()
	out := New(withBatch(v, PaddedDims)...)

	ix, iy, iz := InputDims[0], InputDims[1], InputDims[2]
	py, pz := PaddedDims[1], PaddedDims[2]

	for s := 0; s < n; s++ {
		src := v.Sample(s)
		dst := out.Sample(s)
		for x := 0; x < ix; x++ {
			for y := 0; y < iy; y++ {
				srcOff := (x*iy + y) * iz
				dstOff := ((x+padBefore[0])*py+y+padBefore[1])*pz + padBefore[2]
				copy(dst[dstOff:dstOff+iz], src[srcOff:srcOff+iz])
			}
		}
	}
	return out
}

// Crop is the exact inverse of Pad: it strips the margins from every sample
// of a network-grid volume.
func Crop(v *Volume) *Volume {
	requireSpatial(v, PaddedDims)

	n := v.Batch()
	out := New(withBatch(v, InputDims)...)

	ix, iy, iz := InputDims[0], InputDims[1], InputDims[2]
	py, pz := PaddedDims[1], PaddedDims[2]

	for s := 0; s < n; s++ {
		src := v.Sample(s)
		dst := out.Sample(s)
		for x := 0; x < ix; x++ {
			for y := 0; y < iy; y++ {
				srcOff := ((x+padBefore[0])*py+y+padBefore[1])*pz + padBefore[2]
				dstOff := (x*iy + y) * iz
				copy(dst[dstOff:dstOff+iz], src[srcOff:srcOff+iz])
			}
		}
	}
	return out
}

// withBatch builds the output shape, carrying v's batch axis when present.
func withBatch(v *Volume, spatial [3]int) []int {
	if len(v.Shape) == 4 {
		return []int{v.Shape[0], spatial[0], spatial[1], spatial[2]}
	}
	return []int{spatial[0], spatial[1], spatial[2]}
}

func requireSpatial(v *Volume, want [3]int) {
	got := v.Spatial()
	if got != want {
		panic("volume: unexpected spatial dims")
	}
}
