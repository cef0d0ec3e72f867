package inference

import (
	"github.com/fieldmapless/synb0/internal/tensor"
	"github.com/fieldmapless/synb0/internal/volume"
)

// preprocess pads both volumes to the network grid, normalises them in
// place and stacks them channels-last. The b0 window is its own 99th
// percentile, computed per sample over the padded grid; the returned
// slice holds one window per sample for the inverse transform.
func (e *Engine) preprocess(b0, t1 *volume.Volume) (*tensor.Tensor, []float64) {
	pb0 := volume.Pad(b0)
	pt1 := volume.Pad(t1)

	n := pb0.Batch()
	p99 := make([]float64, n)
	for i := 0; i < n; i++ {
		s := pb0.Sample(i)
		p := volume.Percentile(s, b0Percentile)
		if p == 0 {
			e.log.Warn("b0 intensity range is empty, normalising against a unit window", "sample", i)
		}
		p99[i] = p
		volume.Normalize(s, p, 0)
		volume.Normalize(pt1.Sample(i), t1Ceiling, 0)
	}

	d := volume.PaddedDims
	in := tensor.New(n, d[0], d[1], d[2], 2)
	for i := range pb0.Data {
		in.Data[2*i] = pb0.Data[i]
		in.Data[2*i+1] = pt1.Data[i]
	}
	return in, p99
}

// postprocess rescales each sample with the inverse of its normalisation,
// crops the padding margins and restores the caller's rank.
func postprocess(raw *tensor.Tensor, p99 []float64, batched bool) *volume.Volume {
	padded := volume.FromData(raw.Data, raw.Shape...)
	for i := range p99 {
		volume.Denormalize(padded.Sample(i), p99[i], 0)
	}
	out := volume.Crop(padded)
	if !batched {
		d := volume.InputDims
		return volume.FromData(out.Data, d[0], d[1], d[2])
	}
	return out
}
