package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/fieldmapless/synb0/internal/backend"
	"github.com/fieldmapless/synb0/internal/inference"
	"github.com/fieldmapless/synb0/internal/model"
	"github.com/fieldmapless/synb0/internal/volume"
)

func benchmarkCmd() *cli.Command {
	var (
		warmupRuns int64
		benchRuns  int64
		batch      int64
	)

	flags := append([]cli.Flag{}, commonModelFlags()...)
	flags = append(flags, loggingFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "warmup",
			Usage:       "number of warmup runs",
			Value:       1,
			Destination: &warmupRuns,
		},
		&cli.Int64Flag{
			Name:        "runs",
			Usage:       "number of benchmark runs",
			Value:       3,
			Destination: &benchRuns,
		},
		&cli.Int64Flag{
			Name:        "batch",
			Usage:       "samples per run",
			Value:       1,
			Destination: &batch,
		},
	)

	return &cli.Command{
		Name:  "benchmark",
		Usage: "Run standardized performance benchmarks",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			log := initLogging()

			ops, err := backend.Select(backendName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: select backend: %v", err), 1)
			}
			m := model.New(ops)

			// Weights are optional; the zero-initialized net has the
			// same forward cost.
			weightsLabel := "(zero-initialized)"
			var loadDuration time.Duration
			if weightsPath != "" || weightsDir != "" || os.Getenv(envSynb0WeightsDir) != "" {
				resolved, err := resolveWeightsPath(weightsPath, weightsDir, os.Stderr)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: resolve weights: %v", err), 1)
				}
				loadStart := time.Now()
				if err := m.LoadWeights(resolved); err != nil {
					return cli.Exit(fmt.Sprintf("error: load weights: %v", err), 1)
				}
				loadDuration = time.Since(loadStart)
				weightsLabel = resolved
			}

			fmt.Println("=== Synb0 Benchmark ===")
			fmt.Printf("Weights:  %s\n", weightsLabel)
			fmt.Printf("Backend:  %s\n", m.Backend())
			fmt.Printf("CPUs:     %d\n", runtime.NumCPU())
			fmt.Printf("GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
			if loadDuration > 0 {
				fmt.Printf("Load:     %s\n", loadDuration.Round(time.Millisecond))
			}
			fmt.Printf("Batch:    %d sample(s)\n", batch)
			fmt.Printf("Warmup:   %d runs\n", warmupRuns)
			fmt.Printf("Runs:     %d\n", benchRuns)
			fmt.Println()

			b0, t1 := syntheticPair(int(batch))
			engine := inference.New(m, log)
			opts := inference.PredictOptions{}

			for i := range int(warmupRuns) {
				log.Info("warmup run", "run", i+1)
				if _, err := engine.Predict(ctx, b0, t1, opts); err != nil {
					return cli.Exit(fmt.Sprintf("error: warmup run %d: %v", i+1, err), 1)
				}
			}

			type runResult struct {
				Duration  time.Duration
				PerSample time.Duration
				MVoxPS    float64
			}
			voxels := float64(batch) * float64(volume.InputDims[0]*volume.InputDims[1]*volume.InputDims[2])
			results := make([]runResult, 0, benchRuns)

			for i := range int(benchRuns) {
				log.Info("benchmark run", "run", i+1)
				start := time.Now()
				if _, err := engine.Predict(ctx, b0, t1, opts); err != nil {
					return cli.Exit(fmt.Sprintf("error: benchmark run %d: %v", i+1, err), 1)
				}
				d := time.Since(start)
				results = append(results, runResult{
					Duration:  d,
					PerSample: d / time.Duration(batch),
					MVoxPS:    voxels / d.Seconds() / 1e6,
				})
			}

			fmt.Println("=== Results ===")
			fmt.Printf("%-6s %12s %12s %10s\n", "Run", "Duration", "Per-sample", "Mvox/s")

			var sumDur time.Duration
			var sumMVox float64
			for i, r := range results {
				fmt.Printf("%-6d %12s %12s %10.2f\n",
					i+1, r.Duration.Round(time.Millisecond), r.PerSample.Round(time.Millisecond), r.MVoxPS)
				sumDur += r.Duration
				sumMVox += r.MVoxPS
			}

			n := len(results)
			fmt.Printf("\n%-6s %12s %12s %10.2f\n", "Avg",
				(sumDur / time.Duration(n)).Round(time.Millisecond),
				(sumDur / time.Duration(n) / time.Duration(batch)).Round(time.Millisecond),
				sumMVox/float64(n))

			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			fmt.Printf("\nMemory: %.1f MB alloc, %.1f MB sys\n",
				float64(mem.Alloc)/(1024*1024),
				float64(mem.Sys)/(1024*1024))

			return nil
		},
	}
}

// syntheticPair builds a deterministic b0/T1 batch with realistic
// intensity ranges for throughput measurement.
func syntheticPair(batch int) (*volume.Volume, *volume.Volume) {
	if batch < 1 {
		batch = 1
	}
	r := rand.New(rand.NewSource(42))
	shape := []int{batch, volume.InputDims[0], volume.InputDims[1], volume.InputDims[2]}
	b0 := volume.New(shape...)
	t1 := volume.New(shape...)
	for i := range b0.Data {
		b0.Data[i] = r.Float32() * 1200
		t1.Data[i] = r.Float32() * 150
	}
	return b0, t1
}
