// Package inference runs the synthetic-b0 pipeline: pad and normalise a
// co-registered b0/T1 pair, drive the network over the batch in chunks,
// and restore the output to the caller's grid and intensity scale.
package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldmapless/synb0/internal/logger"
	"github.com/fieldmapless/synb0/internal/tensor"
	"github.com/fieldmapless/synb0/internal/volume"
)

// Model is the network the pipeline drives: one forward pass over a
// (N,80,96,80,2) channels-last batch producing (N,80,96,80).
type Model interface {
	Forward(in *tensor.Tensor) (*tensor.Tensor, error)
}

// ErrPrediction wraps any failure the model reports during a forward
// pass. Callers match it with errors.Is; the model's own error stays in
// the chain.
var ErrPrediction = errors.New("prediction failed")

const (
	// T1 volumes normalise against a fixed [0,150] window; b0 volumes
	// against [0, p99] computed per sample after padding.
	t1Ceiling    = 150
	b0Percentile = 99
)

// PredictOptions tunes one Predict call. BatchSize is the number of
// samples per forward pass for batched input; values below 1 select the
// default of 1. It is ignored, with a logged warning, when the input has
// no batch axis.
type PredictOptions struct {
	BatchSize int
}

// Engine owns a model and runs predictions against it. Safe for
// sequential use only: the model's scratch is shared across calls.
type Engine struct {
	model Model
	log   logger.Logger
}

func New(model Model, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Default()
	}
	return &Engine{model: model, log: log}
}

// Predict produces the synthetic distortion-free b0 for a b0/T1 pair.
// Both volumes must be (77,91,77) or (N,77,91,77) with identical shapes;
// the result mirrors the input rank. Batched input is processed in
// consecutive chunks of BatchSize samples with cancellation checked
// between chunks.
func (e *Engine) Predict(ctx context.Context, b0, t1 *volume.Volume, opts PredictOptions) (*volume.Volume, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := volume.CheckPair(b0, t1); err != nil {
		return nil, err
	}
	batched := b0.Rank() == 4

	start := time.Now()
	in, p99 := e.preprocess(b0, t1)
	raw, err := e.predictBatches(ctx, in, batched, opts.BatchSize)
	if err != nil {
		return nil, err
	}
	out := postprocess(raw, p99, batched)
	e.log.Debug("prediction complete",
		"samples", len(p99), "batch_size", opts.BatchSize, "duration", time.Since(start))
	return out, nil
}

// predictBatches drives the model over the padded input. Unbatched input
// takes exactly one forward pass; batched input is chunked, with each
// chunk's output copied into its slice of the full result.
func (e *Engine) predictBatches(ctx context.Context, in *tensor.Tensor, batched bool, batchSize int) (*tensor.Tensor, error) {
	if !batched {
		if batchSize > 0 {
			e.log.Warn("batch size ignored: input has no batch axis", "batch_size", batchSize)
		}
		return e.forward(in)
	}

	if batchSize < 1 {
		batchSize = 1
	}
	n := in.Dim(0)
	out := tensor.New(n, in.Dim(1), in.Dim(2), in.Dim(3))
	for start := 0; start < n; start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m := min(batchSize, n-start)
		chunk, err := e.forward(in.Slice(start, m))
		if err != nil {
			return nil, err
		}
		copy(out.Slice(start, m).Data, chunk.Data)
	}
	return out, nil
}

func (e *Engine) forward(in *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := e.model.Forward(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrediction, err)
	}
	if out == nil || out.Rank() != 4 || out.Dim(0) != in.Dim(0) {
		return nil, fmt.Errorf("%w: model returned %v for input %v", ErrPrediction, shapeOf(out), in.Shape)
	}
	return out, nil
}

func shapeOf(t *tensor.Tensor) []int {
	if t == nil {
		return nil
	}
	return t.Shape
}
