package volume

import "github.com/fieldmapless/synb0/pkg/nifti"

// FromImage wraps a decoded NIfTI image as a volume without copying. 4D
// images become batched volumes with the frame count as the leading dim;
// both share the z-fastest layout, so the data slice is reused directly.
func FromImage(im *nifti.Image) *Volume {
	if im.NDim == 4 {
		return FromData(im.Data, im.NT, im.NX, im.NY, im.NZ)
	}
	return FromData(im.Data, im.NX, im.NY, im.NZ)
}

// ToImage wraps a volume for NIfTI encoding. Rank-4 volumes become 4D
// time series. Pixel dims default to unit spacing; callers carrying a
// source header adjust the returned image before writing.
func ToImage(v *Volume) *nifti.Image {
	s := v.Spatial()
	im := &nifti.Image{
		NDim: 3,
		NX:   s[0], NY: s[1], NZ: s[2], NT: 1,
		PixDim: [3]float32{1, 1, 1},
		Data:   v.Data,
	}
	if v.Rank() == 4 {
		im.NDim = 4
		im.NT = v.Batch()
	}
	return im
}
