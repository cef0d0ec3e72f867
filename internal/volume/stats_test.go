package volume

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	oneToTen := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		name string
		data []float32
		p    float64
		want float64
	}{
		{"median even", oneToTen, 50, 5.5},
		{"p99 interpolated", oneToTen, 99, 9.91},
		{"p0 is min", oneToTen, 0, 1},
		{"p100 is max", oneToTen, 100, 10},
		{"single element", []float32{42}, 99, 42},
		{"unsorted", []float32{3, 1, 2}, 50, 2},
		{"interpolation", []float32{2, 8, 4, 6}, 99, 7.94},
		{"all zero", []float32{0, 0, 0, 0}, 99, 0},
	}
	for _, tc := range tests {
		got := Percentile(tc.data, tc.p)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: got %g, want %g", tc.name, got, tc.want)
		}
	}
}

func TestPercentileExactRank(t *testing.T) {
	// 101 values 0..100: the 99th percentile lands exactly on rank 99.
	data := make([]float32, 101)
	for i := range data {
		data[i] = float32(i)
	}
	if got := Percentile(data, 99); got != 99 {
		t.Fatalf("got %g, want 99", got)
	}
}

func TestPercentileDoesNotMutate(t *testing.T) {
	data := []float32{5, 1, 3}
	Percentile(data, 50)
	if data[0] != 5 || data[1] != 1 || data[2] != 3 {
		t.Fatalf("input mutated: %v", data)
	}
}

func TestNormalize(t *testing.T) {
	data := []float32{0, 75, 150, 300}
	Normalize(data, 150, 0)

	want := []float32{-1, 0, 1, 3} // out-of-range values stay unclamped
	for i := range want {
		if math.Abs(float64(data[i]-want[i])) > 1e-6 {
			t.Fatalf("data[%d]: got %g, want %g", i, data[i], want[i])
		}
	}
}

func TestNormalizeDenormalizeRoundTrip(t *testing.T) {
	orig := []float32{0, 12.5, 99.9, 1400}
	data := append([]float32(nil), orig...)

	Normalize(data, 1400, 0)
	Denormalize(data, 1400, 0)

	for i := range orig {
		if math.Abs(float64(data[i]-orig[i])) > 1e-3 {
			t.Fatalf("data[%d]: got %g, want %g", i, data[i], orig[i])
		}
	}
}

func TestNormalizeDegenerateRange(t *testing.T) {
	// All-zero input with a zero percentile: the divisor clamps to 1 and
	// the transform maps everything to -1 instead of NaN.
	data := []float32{0, 0, 0}
	Normalize(data, 0, 0)
	for i, v := range data {
		if v != -1 {
			t.Fatalf("data[%d]: got %g, want -1", i, v)
		}
		if math.IsNaN(float64(v)) {
			t.Fatalf("data[%d] is NaN", i)
		}
	}

	// The inverse of a degenerate range collapses to min, whatever the
	// network produced.
	pred := []float32{-1, 0.25, 1}
	Denormalize(pred, 0, 0)
	for i, v := range pred {
		if v != 0 {
			t.Fatalf("pred[%d]: got %g, want 0", i, v)
		}
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float32{1, 2, 3, 4})
	if s.Min != 1 || s.Max != 4 {
		t.Fatalf("min/max: got %g/%g", s.Min, s.Max)
	}
	if math.Abs(s.Mean-2.5) > 1e-12 {
		t.Fatalf("mean: got %g, want 2.5", s.Mean)
	}
	if math.Abs(s.Std-math.Sqrt(5.0/3.0)) > 1e-12 {
		t.Fatalf("std: got %g, want %g", s.Std, math.Sqrt(5.0/3.0))
	}

	if s := Summarize(nil); s != (Summary{}) {
		t.Fatalf("empty summary: got %+v", s)
	}
	if s := Summarize([]float32{7}); s.Std != 0 || s.Mean != 7 {
		t.Fatalf("single-element summary: got %+v", s)
	}
}
