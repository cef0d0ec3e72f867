package tensor

import (
	"testing"
)

func TestNewShapeAndNumel(t *testing.T) {
	tr := New(2, 3, 4)
	if tr.Rank() != 3 {
		t.Fatalf("rank: got %d, want 3", tr.Rank())
	}
	if tr.Numel() != 24 {
		t.Fatalf("numel: got %d, want 24", tr.Numel())
	}
	if len(tr.Data) != 24 {
		t.Fatalf("data length: got %d, want 24", len(tr.Data))
	}
	if tr.Dim(1) != 3 {
		t.Fatalf("dim 1: got %d, want 3", tr.Dim(1))
	}
}

func TestFromDataLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on length mismatch")
		}
	}()
	FromData(make([]float32, 5), 2, 3)
}

func TestFromDataShapeIsCopied(t *testing.T) {
	shape := []int{2, 2}
	tr := FromData(make([]float32, 4), shape...)
	shape[0] = 99
	if tr.Shape[0] != 2 {
		t.Fatalf("tensor shape aliases caller slice: got %d", tr.Shape[0])
	}
}

func TestSliceSharesBacking(t *testing.T) {
	tr := New(4, 2, 3)
	for i := range tr.Data {
		tr.Data[i] = float32(i)
	}

	v := tr.Slice(1, 2)
	if v.Shape[0] != 2 || v.Shape[1] != 2 || v.Shape[2] != 3 {
		t.Fatalf("slice shape: got %v", v.Shape)
	}
	if v.Numel() != 12 {
		t.Fatalf("slice numel: got %d, want 12", v.Numel())
	}
	if v.Data[0] != 6 {
		t.Fatalf("slice start: got %g, want 6", v.Data[0])
	}

	v.Data[0] = -1
	if tr.Data[6] != -1 {
		t.Fatal("slice does not share backing memory")
	}
}

func TestSliceOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range slice")
		}
	}()
	New(3, 2).Slice(2, 2)
}

func TestSameShape(t *testing.T) {
	if !SameShape(New(2, 3), New(2, 3)) {
		t.Fatal("identical shapes reported unequal")
	}
	if SameShape(New(2, 3), New(3, 2)) {
		t.Fatal("different shapes reported equal")
	}
	if SameShape(New(2, 3), New(2, 3, 1)) {
		t.Fatal("different ranks reported equal")
	}
}

func TestAdd(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}
	Add(a, b)
	if a[0] != 5 || a[1] != 7 || a[2] != 9 {
		t.Fatalf("add: got %v", a)
	}
}
