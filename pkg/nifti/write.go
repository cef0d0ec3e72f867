package nifti

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Encode writes the image as an uncompressed little-endian float32 .nii
// stream.
func (im *Image) Encode(w io.Writer) error {
	if im.NDim != 3 && im.NDim != 4 {
		return fmt.Errorf("nifti: cannot encode a %d-dimensional image", im.NDim)
	}
	nx, ny, nz, nt := im.NX, im.NY, im.NZ, im.NT
	if im.NDim == 3 {
		nt = 1
	}
	if nx < 1 || ny < 1 || nz < 1 || nt < 1 {
		return fmt.Errorf("nifti: non-positive dims (%d,%d,%d,%d)", nx, ny, nz, nt)
	}
	n := nx * ny * nz * nt
	if len(im.Data) != n {
		return fmt.Errorf("nifti: %d values for %d voxels", len(im.Data), n)
	}

	hdr := Header{
		SizeofHdr: headerSize,
		Datatype:  DTFloat32,
		Bitpix:    32,
		VoxOffset: dataOffset,
		SclSlope:  1,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim[0] = int16(im.NDim)
	hdr.Dim[1], hdr.Dim[2], hdr.Dim[3] = int16(nx), int16(ny), int16(nz)
	hdr.Dim[4], hdr.Dim[5], hdr.Dim[6], hdr.Dim[7] = 1, 1, 1, 1
	if im.NDim == 4 {
		hdr.Dim[4] = int16(nt)
	}
	for i := range hdr.Pixdim {
		hdr.Pixdim[i] = 1
	}
	for i, p := range im.PixDim {
		if p > 0 {
			hdr.Pixdim[i+1] = p
		}
	}
	copy(hdr.Descrip[:len(hdr.Descrip)-1], im.Descrip)

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	// Extension flag: no extensions follow.
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return err
	}

	// Transpose back to the file's x-fastest order.
	fileOrder := make([]float32, n)
	i := 0
	for t := 0; t < nt; t++ {
		base := t * nx * ny * nz
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					fileOrder[i] = im.Data[base+(x*ny+y)*nz+z]
					i++
				}
			}
		}
	}
	return binary.Write(w, binary.LittleEndian, fileOrder)
}

// Write stores the image at path, gzip-compressed when the name ends in
// .gz.
func (im *Image) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, ".gz") {
		zw := gzip.NewWriter(f)
		if err := im.Encode(zw); err != nil {
			f.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	if err := im.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
