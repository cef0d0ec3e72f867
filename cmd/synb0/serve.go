package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/fieldmapless/synb0/internal/api"
	"github.com/fieldmapless/synb0/internal/backend"
	"github.com/fieldmapless/synb0/internal/inference"
	"github.com/fieldmapless/synb0/internal/model"
	"github.com/fieldmapless/synb0/internal/volume"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	flags := append([]cli.Flag{}, commonModelFlags()...)
	flags = append(flags, loggingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read header timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the prediction REST API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			applyServeConfig(c, LoadConfig(), &addr)
			log := initLogging()

			resolved, err := resolveWeightsPath(weightsPath, weightsDir, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve weights: %v", err), 1)
			}

			ops, err := backend.Select(backendName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: select backend: %v", err), 1)
			}

			m := model.New(ops)
			loadStart := time.Now()
			if err := m.LoadWeights(resolved); err != nil {
				return cli.Exit(fmt.Sprintf("error: load weights: %v", err), 1)
			}
			log.Info("weights loaded", "path", resolved, "elapsed", time.Since(loadStart).Round(time.Millisecond))

			engine := inference.New(m, log)
			info := api.ModelResponse{
				Object:      "model",
				Name:        "synb0",
				Backend:     m.Backend(),
				InputShape:  volume.InputDims[:],
				OutputShape: volume.InputDims[:],
				Parameters:  int(model.ParamCount()),
				WeightsPath: resolved,
				Loaded:      true,
			}
			server := api.NewServer(engine, api.NewJobStore(), info, log)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "backend", m.Backend())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
