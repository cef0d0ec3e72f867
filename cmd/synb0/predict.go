package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/fieldmapless/synb0/internal/backend"
	"github.com/fieldmapless/synb0/internal/inference"
	"github.com/fieldmapless/synb0/internal/model"
	"github.com/fieldmapless/synb0/internal/volume"
	"github.com/fieldmapless/synb0/pkg/nifti"
)

func predictCmd() *cli.Command {
	var (
		b0Path      string
		t1Path      string
		outPath     string
		batchSize   int64
		showSummary bool
	)

	flags := append([]cli.Flag{}, commonModelFlags()...)
	flags = append(flags, loggingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "b0",
			Usage:       "path to the distorted b0 NIfTI volume",
			Required:    true,
			Destination: &b0Path,
		},
		&cli.StringFlag{
			Name:        "t1",
			Usage:       "path to the co-registered T1 NIfTI volume",
			Required:    true,
			Destination: &t1Path,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "output path for the synthetic b0 (.nii or .nii.gz)",
			Value:       "b0_synthetic.nii.gz",
			Destination: &outPath,
		},
		&cli.Int64Flag{
			Name:        "batch-size",
			Usage:       "samples per forward pass for 4D inputs (default 1)",
			Destination: &batchSize,
		},
		&cli.BoolFlag{
			Name:        "summary",
			Usage:       "print output intensity statistics",
			Destination: &showSummary,
		},
	)

	return &cli.Command{
		Name:  "predict",
		Usage: "Predict a distortion-free b0 from a b0/T1 pair",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			applyPredictConfig(c, LoadConfig(), &batchSize)
			log := initLogging()

			resolved, err := resolveWeightsPath(weightsPath, weightsDir, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve weights: %v", err), 1)
			}

			ops, err := backend.Select(backendName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: select backend: %v", err), 1)
			}

			loadStart := time.Now()
			fmt.Printf("Loading weights: %s\n", resolved)
			m := model.New(ops)
			if err := m.LoadWeights(resolved); err != nil {
				return cli.Exit(fmt.Sprintf("error: load weights: %v", err), 1)
			}
			fmt.Printf("Weights loaded in %s\n", time.Since(loadStart).Round(time.Millisecond))

			b0, err := readVolume(b0Path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read b0: %v", err), 1)
			}
			t1, err := readVolume(t1Path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read t1: %v", err), 1)
			}

			engine := inference.New(m, log)
			predictStart := time.Now()
			out, err := engine.Predict(ctx, b0, t1, inference.PredictOptions{BatchSize: int(batchSize)})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: predict: %v", err), 1)
			}
			fmt.Printf("Predicted %d sample(s) in %s\n", out.Batch(), time.Since(predictStart).Round(time.Millisecond))

			if err := volume.ToImage(out).Write(outPath); err != nil {
				return cli.Exit(fmt.Sprintf("error: write output: %v", err), 1)
			}
			fmt.Printf("Wrote %s\n", outPath)

			if showSummary {
				s := volume.Summarize(out.Data)
				fmt.Printf("Summary: min=%.3f max=%.3f mean=%.3f std=%.3f\n", s.Min, s.Max, s.Mean, s.Std)
			}
			return nil
		},
	}
}

func readVolume(path string) (*volume.Volume, error) {
	im, err := nifti.Read(path)
	if err != nil {
		return nil, err
	}
	return volume.FromImage(im), nil
}
