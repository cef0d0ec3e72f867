package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/fieldmapless/synb0/internal/logger"
)

var (
	weightsPath string
	weightsDir  string
	backendName string
	logLevel    string
	logFormat   string
	debug       bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "weights",
			Aliases:     []string{"w"},
			Usage:       "path to .safetensors weights file",
			Destination: &weightsPath,
		},
		&cli.StringFlag{
			Name:        "weights-dir",
			Usage:       "path to directory containing .safetensors weights",
			Destination: &weightsDir,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "kernel set (auto, native, ref)",
			Value:       "auto",
			Destination: &backendName,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// initLogging builds the command logger from the logging flags.
func initLogging() logger.Logger {
	if debug {
		logLevel = "debug"
	}
	if err := logger.SetLevel(logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	level := logger.ParseLevel(logLevel)
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	default:
		return logger.Pretty(os.Stderr, level)
	}
}
