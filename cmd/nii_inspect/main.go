package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fieldmapless/synb0/internal/volume"
	"github.com/fieldmapless/synb0/pkg/nifti"
)

func main() {
	var (
		showStats = flag.Bool("stats", false, "decode the voxel data and print intensity statistics")
		showSrow  = flag.Bool("srow", false, "print the sform affine rows")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: nii_inspect [--stats] [--srow] <path.nii[.gz]>")
		os.Exit(2)
	}

	path := flag.Arg(0)
	hdr, order, err := nifti.ReadHeader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	ndim := int(hdr.Dim[0])
	fmt.Printf("File: %s\n", path)
	fmt.Printf("NIfTI-1 | magic=%q | byte_order=%v\n", cstr(hdr.Magic[:]), order)
	fmt.Printf("  %-14s %s\n", "dim:", formatDim(hdr.Dim))
	fmt.Printf("  %-14s %s\n", "datatype:", nifti.DataTypeName(hdr.Datatype))
	fmt.Printf("  %-14s %d\n", "bitpix:", hdr.Bitpix)
	fmt.Printf("  %-14s %s\n", "pixdim:", formatPixdim(hdr.Pixdim, ndim))
	fmt.Printf("  %-14s %g\n", "vox_offset:", hdr.VoxOffset)
	if hdr.SclSlope != 0 && (hdr.SclSlope != 1 || hdr.SclInter != 0) {
		fmt.Printf("  %-14s %g*x + %g\n", "scaling:", hdr.SclSlope, hdr.SclInter)
	}
	if d := cstr(hdr.Descrip[:]); d != "" {
		fmt.Printf("  %-14s %s\n", "descrip:", d)
	}
	fmt.Printf("  %-14s qform=%d sform=%d\n", "xform:", hdr.QformCode, hdr.SformCode)

	if *showSrow {
		fmt.Printf("  %-14s %v\n", "srow_x:", hdr.SrowX)
		fmt.Printf("  %-14s %v\n", "srow_y:", hdr.SrowY)
		fmt.Printf("  %-14s %v\n", "srow_z:", hdr.SrowZ)
	}

	if *showStats {
		im, err := nifti.Read(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		s := volume.Summarize(im.Data)
		fmt.Println()
		fmt.Println("Voxels:")
		fmt.Printf("  %-14s %d\n", "count:", len(im.Data))
		fmt.Printf("  %-14s %g\n", "min:", s.Min)
		fmt.Printf("  %-14s %g\n", "max:", s.Max)
		fmt.Printf("  %-14s %g\n", "mean:", s.Mean)
		fmt.Printf("  %-14s %g\n", "std:", s.Std)
	}
}

func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func formatDim(dim [8]int16) string {
	n := int(dim[0])
	if n < 1 || n > 7 {
		return fmt.Sprintf("(ndim=%d)", n)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%d", dim[i+1])
	}
	return "[" + strings.Join(parts, "x") + "]"
}

func formatPixdim(pixdim [8]float32, ndim int) string {
	if ndim < 1 || ndim > 7 {
		return "[]"
	}
	parts := make([]string, ndim)
	for i := 0; i < ndim; i++ {
		parts[i] = fmt.Sprintf("%g", pixdim[i+1])
	}
	return "[" + strings.Join(parts, "x") + "] mm"
}
