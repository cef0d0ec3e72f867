// Package nifti reads and writes single-file NIfTI-1 volumes (.nii and
// .nii.gz), the interchange format the prediction pipeline consumes and
// produces.
//
// Decoding accepts both byte orders, the integer and floating dtypes a
// scanner pipeline actually emits, and the scl_slope/scl_inter intensity
// scaling. Decoded data is single precision in (t,x,y,z) order with z
// fastest, which is the layout the rest of the pipeline uses; the on-disk
// x-fastest order is transposed on the way in and out. Encoding always
// writes little-endian float32 with data at offset 352.
package nifti

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"
)

// ErrFormat reports a file that is not a usable single-file NIfTI-1
// volume. Callers match it with errors.Is.
var ErrFormat = errors.New("nifti: invalid file")

const (
	headerSize = 348
	dataOffset = 352 // header plus the 4-byte extension flag
)

// NIfTI-1 datatype codes.
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
)

// DataTypeName returns the conventional name for a datatype code.
func DataTypeName(code int16) string {
	switch code {
	case DTUint8:
		return "uint8"
	case DTInt16:
		return "int16"
	case DTInt32:
		return "int32"
	case DTFloat32:
		return "float32"
	case DTFloat64:
		return "float64"
	default:
		return fmt.Sprintf("unknown(%d)", code)
	}
}

// Header is the 348-byte NIfTI-1 header, laid out field for field so the
// whole struct round-trips through encoding/binary.
type Header struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// Image is a decoded volume: single-precision voxels in (t,x,y,z) order
// with z fastest. NDim distinguishes a plain 3D volume from a 4D series,
// including the single-frame 4D case.
type Image struct {
	NDim           int // 3 or 4
	NX, NY, NZ, NT int
	PixDim         [3]float32
	Descrip        string
	Data           []float32
}

// Read decodes the NIfTI file at path, transparently handling gzip.
func Read(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	im, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return im, nil
}

// Decode decodes a NIfTI stream. Gzip is detected from the magic bytes,
// not the file name.
func Decode(r io.Reader) (*Image, error) {
	raw, err := readMaybeGzip(r)
	if err != nil {
		return nil, err
	}
	hdr, order, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}
	return decodeBody(hdr, order, raw)
}

// ReadHeader decodes only the header, for inspection tools. The returned
// byte order is the one the file is stored in.
func ReadHeader(path string) (*Header, binary.ByteOrder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	raw, err := readMaybeGzip(f)
	if err != nil {
		return nil, nil, err
	}
	return parseHeader(raw)
}

func readMaybeGzip(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		defer zr.Close()
		if raw, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
	}
	return raw, nil
}

// parseHeader finds the byte order by requiring sizeof_hdr == 348 in one
// of the two orders, then validates the magic.
func parseHeader(raw []byte) (*Header, binary.ByteOrder, error) {
	if len(raw) < headerSize {
		return nil, nil, fmt.Errorf("%w: %d bytes is shorter than the 348-byte header", ErrFormat, len(raw))
	}
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		var hdr Header
		if err := binary.Read(bytes.NewReader(raw[:headerSize]), order, &hdr); err != nil {
			return nil, nil, err
		}
		if hdr.SizeofHdr != headerSize {
			continue
		}
		switch magic := string(hdr.Magic[:3]); magic {
		case "n+1":
			return &hdr, order, nil
		case "ni1":
			return nil, nil, fmt.Errorf("%w: two-file .hdr/.img pairs are not supported", ErrFormat)
		default:
			return nil, nil, fmt.Errorf("%w: bad magic %q", ErrFormat, magic)
		}
	}
	return nil, nil, fmt.Errorf("%w: sizeof_hdr is not 348 in either byte order", ErrFormat)
}

func decodeBody(hdr *Header, order binary.ByteOrder, raw []byte) (*Image, error) {
	ndim := int(hdr.Dim[0])
	if ndim != 3 && ndim != 4 {
		return nil, fmt.Errorf("%w: %d-dimensional image, want 3 or 4", ErrFormat, ndim)
	}
	nx, ny, nz := int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("%w: non-positive dims %v", ErrFormat, hdr.Dim[1:4])
	}
	nt := 1
	if ndim == 4 {
		if nt = int(hdr.Dim[4]); nt < 1 {
			return nil, fmt.Errorf("%w: non-positive time dim %d", ErrFormat, hdr.Dim[4])
		}
	}

	bytesPer, err := bytesPerVoxel(hdr.Datatype)
	if err != nil {
		return nil, err
	}
	off := int64(hdr.VoxOffset)
	if off < headerSize {
		return nil, fmt.Errorf("%w: vox_offset %d overlaps the header", ErrFormat, off)
	}
	n := nx * ny * nz * nt
	if off+int64(n*bytesPer) > int64(len(raw)) {
		return nil, fmt.Errorf("%w: %d voxels need %d bytes, file has %d after the header",
			ErrFormat, n, n*bytesPer, int64(len(raw))-off)
	}

	vals := decodeVoxels(raw[off:off+int64(n*bytesPer)], hdr.Datatype, order)
	if slope := hdr.SclSlope; slope != 0 && (slope != 1 || hdr.SclInter != 0) {
		for i := range vals {
			vals[i] = vals[i]*slope + hdr.SclInter
		}
	}

	// File order is x fastest; the pipeline wants z fastest.
	data := make([]float32, n)
	i := 0
	for t := 0; t < nt; t++ {
		base := t * nx * ny * nz
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					data[base+(x*ny+y)*nz+z] = vals[i]
					i++
				}
			}
		}
	}

	im := &Image{
		NDim: ndim,
		NX:   nx, NY: ny, NZ: nz, NT: nt,
		PixDim:  [3]float32{hdr.Pixdim[1], hdr.Pixdim[2], hdr.Pixdim[3]},
		Descrip: cstring(hdr.Descrip[:]),
		Data:    data,
	}
	return im, nil
}

func bytesPerVoxel(datatype int16) (int, error) {
	switch datatype {
	case DTUint8:
		return 1, nil
	case DTInt16:
		return 2, nil
	case DTInt32, DTFloat32:
		return 4, nil
	case DTFloat64:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: unsupported datatype %d", ErrFormat, datatype)
	}
}

func decodeVoxels(raw []byte, datatype int16, order binary.ByteOrder) []float32 {
	switch datatype {
	case DTUint8:
		vals := make([]float32, len(raw))
		for i, b := range raw {
			vals[i] = float32(b)
		}
		return vals
	case DTInt16:
		vals := make([]float32, len(raw)/2)
		for i := range vals {
			vals[i] = float32(int16(order.Uint16(raw[i*2:])))
		}
		return vals
	case DTInt32:
		vals := make([]float32, len(raw)/4)
		for i := range vals {
			vals[i] = float32(int32(order.Uint32(raw[i*4:])))
		}
		return vals
	case DTFloat32:
		vals := make([]float32, len(raw)/4)
		for i := range vals {
			vals[i] = math.Float32frombits(order.Uint32(raw[i*4:]))
		}
		return vals
	case DTFloat64:
		vals := make([]float32, len(raw)/8)
		for i := range vals {
			vals[i] = float32(math.Float64frombits(order.Uint64(raw[i*8:])))
		}
		return vals
	}
	panic("nifti: unreachable datatype")
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
