package volume

import (
	"testing"

	"github.com/fieldmapless/synb0/pkg/nifti"
)

func TestFromImage(t *testing.T) {
	im := &nifti.Image{NDim: 3, NX: 4, NY: 3, NZ: 2, NT: 1, Data: make([]float32, 24)}
	im.Data[5] = 7
	v := FromImage(im)
	if v.Rank() != 3 || v.Shape[0] != 4 || v.Shape[1] != 3 || v.Shape[2] != 2 {
		t.Fatalf("shape: got %v", v.Shape)
	}
	if v.Data[5] != 7 {
		t.Fatal("data not shared")
	}

	im4 := &nifti.Image{NDim: 4, NX: 4, NY: 3, NZ: 2, NT: 5, Data: make([]float32, 120)}
	v4 := FromImage(im4)
	if v4.Rank() != 4 || v4.Batch() != 5 {
		t.Fatalf("4D shape: got %v", v4.Shape)
	}
}

func TestToImage(t *testing.T) {
	v := New(4, 3, 2)
	im := ToImage(v)
	if im.NDim != 3 || im.NX != 4 || im.NY != 3 || im.NZ != 2 || im.NT != 1 {
		t.Fatalf("image dims: got %+v", im)
	}
	if &im.Data[0] != &v.Data[0] {
		t.Fatal("data not shared")
	}

	v4 := New(5, 4, 3, 2)
	im4 := ToImage(v4)
	if im4.NDim != 4 || im4.NT != 5 || im4.NX != 4 {
		t.Fatalf("4D image dims: got %+v", im4)
	}
}
