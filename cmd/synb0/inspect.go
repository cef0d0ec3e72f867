package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/fieldmapless/synb0/internal/model"
	"github.com/fieldmapless/synb0/internal/safetensors"
	"github.com/fieldmapless/synb0/internal/volume"
)

func inspectCmd() *cli.Command {
	var (
		path         string
		showAll      bool
		showTensors  bool
		showMetadata bool
		showStats    bool
		verify       bool
		tensorLimit  int
		tensorFilter string
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of a .safetensors weight file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "weights",
				Aliases:     []string{"w"},
				Usage:       "path to .safetensors file",
				Destination: &path,
				Required:    true,
			},
			&cli.BoolFlag{Name: "all", Usage: "show tensors, metadata and verification", Destination: &showAll},
			&cli.BoolFlag{Name: "tensors", Usage: "list the tensor index", Destination: &showTensors},
			&cli.BoolFlag{Name: "metadata", Usage: "show header metadata", Destination: &showMetadata},
			&cli.BoolFlag{Name: "stats", Usage: "decode listed tensors and print value statistics", Destination: &showStats},
			&cli.BoolFlag{Name: "verify", Usage: "check the file against the expected network layout", Destination: &verify},
			&cli.IntFlag{Name: "tensors-limit", Usage: "limit tensor listing (0 = no limit)", Value: 50, Destination: &tensorLimit},
			&cli.StringFlag{Name: "tensor-filter", Usage: "substring filter for tensor listing", Destination: &tensorFilter},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			if showAll {
				showTensors = true
				showMetadata = true
				showStats = true
				verify = true
				if tensorLimit == 50 {
					tensorLimit = 0
				}
			}

			stat, err := os.Stat(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat weights path %q: %v", path, err), 1)
			}
			if stat.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".safetensors") {
				return cli.Exit("error: synb0 inspect only supports .safetensors files", 1)
			}

			sf, err := safetensors.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open safetensors: %v", err), 1)
			}
			defer func() { _ = sf.Close() }()

			fmt.Printf("Safetensors Inspect: %s\n", path)
			fmt.Printf("File: %s (%s)\n", filepath.Base(path), formatBytes(stat.Size()))
			fmt.Printf("Header: %s data_start=%d\n", formatBytes(sf.DataStart), sf.DataStart)

			printTensorSummary(sf)

			if showTensors {
				printTensorIndex(sf, tensorFilter, tensorLimit, showStats)
			}
			if showMetadata {
				printMetadata(sf.Metadata)
			}
			if verify {
				printVerification(sf)
			}

			return nil
		},
	}
}

func printTensorSummary(sf *safetensors.File) {
	section("Tensor Summary")
	rowInt("tensors", len(sf.Tensors))

	dtypeCounts := map[string]int{}
	dtypeBytes := map[string]int64{}
	var total int64
	var params int64
	for _, t := range sf.Tensors {
		dtypeCounts[t.DType]++
		dtypeBytes[t.DType] += t.SizeBytes()
		total += t.SizeBytes()
		n := int64(1)
		for _, d := range t.Shape {
			n *= int64(d)
		}
		params += n
	}
	row("data_size", formatBytes(total))
	row("parameters", fmt.Sprintf("%d", params))

	keys := make([]string, 0, len(dtypeCounts))
	for k := range dtypeCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row(fmt.Sprintf("dtype_%s", k), fmt.Sprintf("%d (%s)", dtypeCounts[k], formatBytes(dtypeBytes[k])))
	}
}

func printTensorIndex(sf *safetensors.File, filter string, limit int, stats bool) {
	section("Tensor Index")
	names := sf.Names()
	count := len(names)
	printed := 0
	for _, name := range names {
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		t := sf.Tensors[name]
		line := fmt.Sprintf("%s  dtype=%s shape=%s size=%s", name, t.DType, formatShape(t.Shape), formatBytes(t.SizeBytes()))
		if stats {
			if data, _, err := sf.ReadTensorF32(name); err == nil {
				s := volume.Summarize(data)
				line += fmt.Sprintf(" min=%.4g max=%.4g mean=%.4g std=%.4g", s.Min, s.Max, s.Mean, s.Std)
			}
		}
		fmt.Println(line)
		printed++
		if limit > 0 && printed >= limit {
			break
		}
	}
	if limit > 0 && printed < count {
		fmt.Printf("... (%d shown of %d)\n", printed, count)
	}
}

func printMetadata(meta map[string]string) {
	section("Metadata")
	if len(meta) == 0 {
		fmt.Println("(none)")
		return
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row(k, meta[k])
	}
}

func printVerification(sf *safetensors.File) {
	section("Verification")
	specs := model.WeightSpec()
	want := make(map[string][]int, len(specs))
	for _, s := range specs {
		want[s.Name] = s.Shape
	}

	var missing, mismatched, badDType, extra int
	for _, s := range specs {
		t, ok := sf.Tensor(s.Name)
		switch {
		case !ok:
			fmt.Printf("missing   %s\n", s.Name)
			missing++
		case !slices.Equal(t.Shape, s.Shape):
			fmt.Printf("shape     %s got=%s want=%s\n", s.Name, formatShape(t.Shape), formatShape(s.Shape))
			mismatched++
		case t.DType != "F32":
			fmt.Printf("dtype     %s got=%s want=F32\n", s.Name, t.DType)
			badDType++
		}
	}
	for name := range sf.Tensors {
		if _, ok := want[name]; !ok {
			fmt.Printf("extra     %s\n", name)
			extra++
		}
	}

	if missing+mismatched+badDType+extra == 0 {
		fmt.Printf("ok: all %d tensors match the expected layout\n", len(specs))
		return
	}
	fmt.Printf("failed: missing=%d shape=%d dtype=%d extra=%d\n", missing, mismatched, badDType, extra)
}

func section(title string) {
	line := strings.Repeat("-", len(title)+8)
	fmt.Printf("\n%s\n--- %s ---\n%s\n", line, title, line)
}

func row(label, value string) {
	if value == "" {
		return
	}
	fmt.Printf("%-24s %s\n", label+":", value)
}

func rowInt(label string, v int) {
	if v == 0 {
		return
	}
	row(label, fmt.Sprintf("%d", v))
}

func formatShape(shape []int) string {
	if len(shape) == 0 {
		return "[]"
	}
	parts := make([]string, len(shape))
	for i, v := range shape {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
		tb = 1024 * gb
	)
	switch {
	case b >= tb:
		return fmt.Sprintf("%.2f TiB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
