package inference

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/fieldmapless/synb0/internal/logger"
	"github.com/fieldmapless/synb0/internal/tensor"
	"github.com/fieldmapless/synb0/internal/volume"
)

// passthroughModel mirrors the real contract but returns the b0 channel
// unchanged, so the whole pipeline reduces to normalise + denormalise.
type passthroughModel struct {
	batches []int
	err     error
	onCall  func(call int)
}

func (m *passthroughModel) Forward(in *tensor.Tensor) (*tensor.Tensor, error) {
	m.batches = append(m.batches, in.Dim(0))
	if m.onCall != nil {
		m.onCall(len(m.batches))
	}
	if m.err != nil {
		return nil, m.err
	}
	out := tensor.New(in.Dim(0), in.Dim(1), in.Dim(2), in.Dim(3))
	for i := range out.Data {
		out.Data[i] = in.Data[2*i]
	}
	return out, nil
}

func testLogger(buf *bytes.Buffer) logger.Logger {
	return logger.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func constVolume(shape []int, fill func(sample int) float32) *volume.Volume {
	v := volume.New(shape...)
	for s := 0; s < v.Batch(); s++ {
		data := v.Sample(s)
		val := fill(s)
		for i := range data {
			data[i] = val
		}
	}
	return v
}

func TestPredictBatchChunking(t *testing.T) {
	m := &passthroughModel{}
	e := New(m, nil)

	// Sample s is the constant s+1, which survives the round trip exactly:
	// its padded p99 is s+1, so the interior normalises to 1 and comes back
	// as s+1 while the margins map -1 back to 0.
	b0 := constVolume([]int{5, 77, 91, 77}, func(s int) float32 { return float32(s + 1) })
	t1 := constVolume([]int{5, 77, 91, 77}, func(int) float32 { return 100 })

	out, err := e.Predict(context.Background(), b0, t1, PredictOptions{BatchSize: 2})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	wantBatches := []int{2, 2, 1}
	if len(m.batches) != len(wantBatches) {
		t.Fatalf("forward calls: got %v, want %v", m.batches, wantBatches)
	}
	for i, b := range wantBatches {
		if m.batches[i] != b {
			t.Fatalf("forward calls: got %v, want %v", m.batches, wantBatches)
		}
	}
	if out.Rank() != 4 || out.Batch() != 5 {
		t.Fatalf("output shape: got %v", out.Shape)
	}
	for s := 0; s < 5; s++ {
		want := float32(s + 1)
		for i, v := range out.Sample(s) {
			if v != want {
				t.Fatalf("sample %d voxel %d: got %g, want %g", s, i, v, want)
			}
		}
	}
}

func TestPredictBatchLargerThanInput(t *testing.T) {
	m := &passthroughModel{}
	e := New(m, nil)
	b0 := volume.New(2, 77, 91, 77)
	t1 := volume.New(2, 77, 91, 77)
	if _, err := e.Predict(context.Background(), b0, t1, PredictOptions{BatchSize: 16}); err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(m.batches) != 1 || m.batches[0] != 2 {
		t.Fatalf("forward calls: got %v, want [2]", m.batches)
	}
}

func TestPredictUnbatchedIgnoresBatchSize(t *testing.T) {
	m := &passthroughModel{}
	var buf bytes.Buffer
	e := New(m, testLogger(&buf))

	b0 := constVolume([]int{77, 91, 77}, func(int) float32 { return 3 })
	t1 := volume.New(77, 91, 77)
	out, err := e.Predict(context.Background(), b0, t1, PredictOptions{BatchSize: 8})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(m.batches) != 1 || m.batches[0] != 1 {
		t.Fatalf("forward calls: got %v, want one single-sample pass", m.batches)
	}
	if out.Rank() != 3 {
		t.Fatalf("output rank: got %v, want the input's rank 3", out.Shape)
	}
	if !strings.Contains(buf.String(), "batch size ignored") {
		t.Fatalf("expected a warning about the ignored batch size, log:\n%s", buf.String())
	}
}

func TestPredictShapeErrorBeforeForward(t *testing.T) {
	m := &passthroughModel{}
	e := New(m, nil)
	_, err := e.Predict(context.Background(), volume.New(10, 10, 10), volume.New(10, 10, 10), PredictOptions{})
	if !errors.Is(err, volume.ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
	if len(m.batches) != 0 {
		t.Fatalf("model ran despite invalid input: %v", m.batches)
	}

	_, err = e.Predict(context.Background(), volume.New(77, 91, 77), volume.New(2, 77, 91, 77), PredictOptions{})
	if !errors.Is(err, volume.ErrShape) {
		t.Fatalf("expected ErrShape for mismatched pair, got %v", err)
	}
}

func TestPredictWrapsModelError(t *testing.T) {
	cause := errors.New("kernel exploded")
	m := &passthroughModel{err: cause}
	e := New(m, nil)
	_, err := e.Predict(context.Background(), volume.New(2, 77, 91, 77), volume.New(2, 77, 91, 77), PredictOptions{})
	if !errors.Is(err, ErrPrediction) {
		t.Fatalf("expected ErrPrediction, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("model error lost from the chain: %v", err)
	}
	if len(m.batches) != 1 {
		t.Fatalf("forward calls: got %v, want the failing first chunk only", m.batches)
	}
}

func TestPredictCancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &passthroughModel{onCall: func(int) { cancel() }}
	e := New(m, nil)
	_, err := e.Predict(ctx, volume.New(3, 77, 91, 77), volume.New(3, 77, 91, 77), PredictOptions{BatchSize: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(m.batches) != 1 {
		t.Fatalf("forward calls after cancel: got %v, want 1", m.batches)
	}
}

func TestPredictAllZeroB0(t *testing.T) {
	m := &passthroughModel{}
	var buf bytes.Buffer
	e := New(m, testLogger(&buf))

	out, err := e.Predict(context.Background(), volume.New(77, 91, 77), volume.New(77, 91, 77), PredictOptions{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i, v := range out.Data {
		if v != 0 {
			t.Fatalf("voxel %d: got %g, want 0", i, v)
		}
		if math.IsNaN(float64(v)) {
			t.Fatalf("voxel %d is NaN", i)
		}
	}
	if !strings.Contains(buf.String(), "intensity range is empty") {
		t.Fatalf("expected a degenerate-range warning, log:\n%s", buf.String())
	}
}

func TestPredictRoundTripValues(t *testing.T) {
	m := &passthroughModel{}
	e := New(m, nil)

	rng := rand.New(rand.NewSource(7))
	b0 := volume.New(77, 91, 77)
	for i := range b0.Data {
		b0.Data[i] = rng.Float32() * 100
	}
	t1 := volume.New(77, 91, 77)
	for i := range t1.Data {
		t1.Data[i] = rng.Float32() * 150
	}

	out, err := e.Predict(context.Background(), b0, t1, PredictOptions{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := range b0.Data {
		if d := math.Abs(float64(out.Data[i] - b0.Data[i])); d > 1e-3 {
			t.Fatalf("voxel %d: got %g, want %g (diff %g)", i, out.Data[i], b0.Data[i], d)
		}
	}
}

func TestPreprocessStacking(t *testing.T) {
	e := New(&passthroughModel{}, nil)

	b0 := constVolume([]int{77, 91, 77}, func(int) float32 { return 5 })
	t1 := constVolume([]int{77, 91, 77}, func(int) float32 { return 75 })
	in, p99 := e.preprocess(b0, t1)

	wantShape := []int{1, 80, 96, 80, 2}
	if !tensor.SameShape(in, tensor.New(wantShape...)) {
		t.Fatalf("stacked shape: got %v, want %v", in.Shape, wantShape)
	}
	if len(p99) != 1 || p99[0] != 5 {
		t.Fatalf("p99: got %v, want [5]", p99)
	}

	// Interior voxel (2,3,2) is the original (0,0,0): b0 5 -> 1, t1 75 -> 0.
	at := func(x, y, z, c int) float32 {
		return in.Data[(((x*96)+y)*80+z)*2+c]
	}
	if got := at(2, 3, 2, 0); got != 1 {
		t.Fatalf("b0 channel interior: got %g, want 1", got)
	}
	if got := at(2, 3, 2, 1); got != 0 {
		t.Fatalf("t1 channel interior: got %g, want 0", got)
	}
	// Margin voxels normalise from zero to -1 on both channels.
	if got := at(0, 0, 0, 0); got != -1 {
		t.Fatalf("b0 channel margin: got %g, want -1", got)
	}
	if got := at(0, 0, 0, 1); got != -1 {
		t.Fatalf("t1 channel margin: got %g, want -1", got)
	}
}

func TestPredictNilContext(t *testing.T) {
	e := New(&passthroughModel{}, nil)
	var ctx context.Context
	if _, err := e.Predict(ctx, volume.New(77, 91, 77), volume.New(77, 91, 77), PredictOptions{}); err != nil {
		t.Fatalf("Predict with nil context: %v", err)
	}
}
