package volume

// Normalize maps data from [min,max] to [-1,1] in place:
// ((x-min)/(max-min) - 0.5) * 2. Values outside [min,max] are not clamped
// and land outside [-1,1]. A degenerate range (max == min) clamps the
// divisor to 1 so the transform stays finite; callers decide whether that
// deserves a warning.
func Normalize(data []float32, max, min float64) {
	r := max - min
	if r == 0 {
		r = 1
	}
	for i, v := range data {
		data[i] = float32(((float64(v)-min)/r - 0.5) * 2)
	}
}

// Denormalize inverts Normalize in place: (x+1)/2*(max-min) + min. A
// degenerate range needs no special case here; the output collapses to min.
func Denormalize(data []float32, max, min float64) {
	r := max - min
	for i, v := range data {
		data[i] = float32((float64(v)+1)/2*r + min)
	}
}
