package imaging

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
)

// GeoTIFF model tags.
const (
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264

	typeDouble = 12
)

var errNotTIFF = errors.New("not a TIFF file")

// ReadGeoTransform reads the pixel-to-world transform from the first IFD of
// a GeoTIFF. It returns nil without error when the file carries no model
// tags. ModelTransformation takes precedence over ModelTiepoint plus
// ModelPixelScale. BigTIFF files are not inspected.
func ReadGeoTransform(r io.ReaderAt) (*geometry.Affine, error) {
	var header [8]byte
	if _, err := r.ReadAt(header[:], 0); err != nil {
		return nil, fmt.Errorf("read TIFF header: %w", err)
	}

	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, errNotTIFF
	}
	if order.Uint16(header[2:4]) != 42 {
		return nil, nil
	}

	ifd := int64(order.Uint32(header[4:8]))
	var countBuf [2]byte
	if _, err := r.ReadAt(countBuf[:], ifd); err != nil {
		return nil, fmt.Errorf("read IFD: %w", err)
	}
	n := int(order.Uint16(countBuf[:]))

	entries := make([]byte, n*12)
	if _, err := r.ReadAt(entries, ifd+2); err != nil {
		return nil, fmt.Errorf("read IFD entries: %w", err)
	}

	var scale, tiepoint, matrix []float64
	for i := 0; i < n; i++ {
		e := entries[i*12 : i*12+12]
		tag := order.Uint16(e[0:2])
		if tag != tagModelPixelScale && tag != tagModelTiepoint && tag != tagModelTransformation {
			continue
		}
		if order.Uint16(e[2:4]) != typeDouble {
			return nil, fmt.Errorf("geotag %d: expected DOUBLE values", tag)
		}
		vals, err := readDoubles(r, order, int64(order.Uint32(e[8:12])), int(order.Uint32(e[4:8])))
		if err != nil {
			return nil, fmt.Errorf("geotag %d: %w", tag, err)
		}
		switch tag {
		case tagModelPixelScale:
			scale = vals
		case tagModelTiepoint:
			tiepoint = vals
		case tagModelTransformation:
			matrix = vals
		}
	}

	switch {
	case len(matrix) >= 16:
		return &geometry.Affine{
			A: matrix[0], B: matrix[1], C: matrix[3],
			D: matrix[4], E: matrix[5], F: matrix[7],
		}, nil
	case len(scale) >= 2 && len(tiepoint) >= 6:
		i, j := tiepoint[0], tiepoint[1]
		x, y := tiepoint[3], tiepoint[4]
		sx, sy := scale[0], scale[1]
		return &geometry.Affine{
			A: sx, C: x - i*sx,
			E: -sy, F: y + j*sy,
		}, nil
	}
	return nil, nil
}

// readDoubles reads count float64 values stored at offset. A single DOUBLE
// never fits in the 4-byte value field, so the offset is always a pointer.
func readDoubles(r io.ReaderAt, order binary.ByteOrder, offset int64, count int) ([]float64, error) {
	if count <= 0 || count > 1<<16 {
		return nil, fmt.Errorf("invalid value count %d", count)
	}
	buf := make([]byte, count*8)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = math.Float64frombits(order.Uint64(buf[i*8:]))
	}
	return out, nil
}
