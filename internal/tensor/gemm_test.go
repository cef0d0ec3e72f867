package tensor

import (
	"math"
	"testing"
)

func gemmNaive(C, A, B *Mat) {
	for i := 0; i < A.R; i++ {
		for j := 0; j < B.C; j++ {
			var sum float32
			for kk := 0; kk < A.C; kk++ {
				sum += A.Row(i)[kk] * B.Row(kk)[j]
			}
			C.Row(i)[j] = sum
		}
	}
}

func maxAbsDiff(a, b []float32) float64 {
	var maxAbs float64
	for i := range a {
		d := math.Abs(float64(a[i] - b[i]))
		if d > maxAbs {
			maxAbs = d
		}
	}
	return maxAbs
}

func TestGemmParMatchesNaive(t *testing.T) {
	A := NewMat(50, 70)
	B := NewMat(70, 45)
	C0 := NewMat(50, 45)
	C1 := NewMat(50, 45)

	FillRand(&A, 1)
	FillRand(&B, 2)

	gemmNaive(&C0, &A, &B)
	GemmPar(&C1, &A, &B, 1, 0, 4)

	if maxAbs := maxAbsDiff(C0.Data, C1.Data); maxAbs > 1e-3 {
		t.Fatalf("max abs diff %g", maxAbs)
	}
}

func TestGemmParAlphaBeta(t *testing.T) {
	A := NewMat(20, 30)
	B := NewMat(30, 25)
	C0 := NewMat(20, 25)
	C1 := NewMat(20, 25)

	FillRand(&A, 5)
	FillRand(&B, 6)
	FillRand(&C0, 7)
	copy(C1.Data, C0.Data)

	// C0 = 2*A*B + 0.5*C0, computed naively.
	tmp := NewMat(20, 25)
	gemmNaive(&tmp, &A, &B)
	for i := range C0.Data {
		C0.Data[i] = 2*tmp.Data[i] + 0.5*C0.Data[i]
	}

	GemmPar(&C1, &A, &B, 2, 0.5, 3)

	if maxAbs := maxAbsDiff(C0.Data, C1.Data); maxAbs > 1e-3 {
		t.Fatalf("max abs diff %g", maxAbs)
	}
}

func TestGemmParTallSkinny(t *testing.T) {
	// The 1x1x1-convolution shape: many rows, few columns.
	A := NewMat(613, 2)
	B := NewMat(2, 32)
	C0 := NewMat(613, 32)
	C1 := NewMat(613, 32)

	FillRand(&A, 8)
	FillRand(&B, 9)

	gemmNaive(&C0, &A, &B)
	GemmPar(&C1, &A, &B, 1, 0, 0)

	if maxAbs := maxAbsDiff(C0.Data, C1.Data); maxAbs > 1e-3 {
		t.Fatalf("max abs diff %g", maxAbs)
	}
}

func TestGemmParNoAllocs(t *testing.T) {
	A := NewMat(16, 16)
	B := NewMat(16, 16)
	C := NewMat(16, 16)

	FillRand(&A, 3)
	FillRand(&B, 4)

	allocs := testing.AllocsPerRun(100, func() {
		GemmPar(&C, &A, &B, 1, 0, 2)
	})

	if allocs != 0 {
		t.Fatalf("unexpected allocs: %v", allocs)
	}
}

func TestGemmParDimensionMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on dimension mismatch")
		}
	}()
	A := NewMat(4, 5)
	B := NewMat(6, 7)
	C := NewMat(4, 7)
	GemmPar(&C, &A, &B, 1, 0, 1)
}

func BenchmarkGemmPar(b *testing.B) {
	// One voxel-rows-by-channels product from the bottleneck of the network.
	A := NewMat(1200, 512)
	B := NewMat(512, 512)
	C := NewMat(1200, 512)
	FillRand(&A, 10)
	FillRand(&B, 11)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GemmPar(&C, &A, &B, 1, 0, 0)
	}
}
