package volume

import (
	"math/rand"
	"testing"
)

func TestMarginsConsistent(t *testing.T) {
	for i := 0; i < 3; i++ {
		got := InputDims[i] + padBefore[i] + padAfter[i]
		if got != PaddedDims[i] {
			t.Fatalf("axis %d: %d + %d + %d = %d, want %d",
				i, InputDims[i], padBefore[i], padAfter[i], got, PaddedDims[i])
		}
	}
}

func TestPadShape(t *testing.T) {
	p := Pad(New(77, 91, 77))
	if p.Shape[0] != 80 || p.Shape[1] != 96 || p.Shape[2] != 80 {
		t.Fatalf("rank-3 padded shape: got %v", p.Shape)
	}

	p = Pad(New(2, 77, 91, 77))
	if p.Shape[0] != 2 || p.Shape[1] != 80 || p.Shape[2] != 96 || p.Shape[3] != 80 {
		t.Fatalf("rank-4 padded shape: got %v", p.Shape)
	}
}

func TestPadPlacement(t *testing.T) {
	v := New(77, 91, 77)
	at := func(data []float32, x, y, z int, dims [3]int) float32 {
		return data[(x*dims[1]+y)*dims[2]+z]
	}
	// corner markers
	v.Data[0] = 1                                      // (0,0,0)
	v.Data[(76*91+90)*77+76] = 2                       // (76,90,76)
	p := Pad(v)

	if got := at(p.Data, 2, 3, 2, PaddedDims); got != 1 {
		t.Fatalf("low corner landed wrong: got %g", got)
	}
	if got := at(p.Data, 78, 93, 78, PaddedDims); got != 2 {
		t.Fatalf("high corner landed wrong: got %g", got)
	}
	// margins stay zero
	if got := at(p.Data, 0, 0, 0, PaddedDims); got != 0 {
		t.Fatalf("low margin not zero: got %g", got)
	}
	if got := at(p.Data, 79, 95, 79, PaddedDims); got != 0 {
		t.Fatalf("high margin not zero: got %g", got)
	}
}

func TestPadCropRoundTrip(t *testing.T) {
	for _, shape := range [][]int{{77, 91, 77}, {2, 77, 91, 77}} {
		v := New(shape...)
		rng := rand.New(rand.NewSource(1))
		for i := range v.Data {
			v.Data[i] = rng.Float32()
		}

		out := Crop(Pad(v))
		if len(out.Shape) != len(shape) {
			t.Fatalf("round-trip rank changed: got %v", out.Shape)
		}
		for i := range v.Data {
			if out.Data[i] != v.Data[i] {
				t.Fatalf("shape %v: voxel %d changed: got %g, want %g",
					shape, i, out.Data[i], v.Data[i])
			}
		}
	}
}

func TestPadRejectsWrongGrid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-input grid")
		}
	}()
	Pad(New(80, 96, 80))
}

func TestCropRejectsWrongGrid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-network grid")
		}
	}()
	Crop(New(77, 91, 77))
}
