package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const envSynb0WeightsDir = "SYNB0_WEIGHTS_DIR"

func resolveWeightsPath(weightsFlag, dirFlag string, stderr io.Writer) (string, error) {
	weightsFlag = strings.TrimSpace(weightsFlag)
	if weightsFlag != "" {
		return filepath.Clean(weightsFlag), nil
	}

	dir := strings.TrimSpace(dirFlag)
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv(envSynb0WeightsDir))
	}
	if dir == "" {
		return "", fmt.Errorf("--weights or --weights-dir is required unless %s is set", envSynb0WeightsDir)
	}

	weights, err := discoverWeights(dir)
	if err != nil {
		return "", err
	}
	switch len(weights) {
	case 0:
		return "", fmt.Errorf("no .safetensors weights found in %s", dir)
	case 1:
		_, _ = fmt.Fprintf(stderr, "using weights %s\n", weights[0])
		return weights[0], nil
	default:
		return "", fmt.Errorf("multiple weight files found in %s; set --weights", dir)
	}
}

func discoverWeights(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("weights directory is empty")
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("weights path is not a directory: %s", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	weights := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".safetensors") {
			continue
		}
		weights = append(weights, filepath.Join(dir, name))
	}
	sort.Strings(weights)
	return weights, nil
}
