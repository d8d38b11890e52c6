package raster

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrUnsupportedFormat is returned for tile containers that cannot be decoded.
var ErrUnsupportedFormat = errors.New("raster: unsupported tile format")

// LoadOptions control how raw tile samples become radiance values.
type LoadOptions struct {
	// Corners are used when the tile carries no geolocation of its own
	// and no sidecar metadata exists.
	Corners Corners

	// Scale and Offset convert integer digital numbers of image tiles:
	// value = raw*Scale + Offset. A zero Scale means 1.
	Scale  float64
	Offset float64
}

// DefaultExtension is the tile format archives are expected to serve.
const DefaultExtension = ".tif"

// CheckExtension returns ErrUnsupportedFormat unless Load can decode files
// ending with ext.
func CheckExtension(ext string) error {
	switch ext = strings.ToLower(ext); ext {
	case ".asc", ".tif", ".tiff", ".png", ".bmp":
		return nil
	case ".h5", ".he5", ".hdf":
		return fmt.Errorf("%w: %s (convert HDF5 tiles to GeoTIFF or ESRI ASCII grid)", ErrUnsupportedFormat, ext)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Load decodes the tile at path according to its extension.
func Load(path string, opts LoadOptions) (*Raster, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if err := CheckExtension(ext); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if ext == ".asc" {
		return DecodeASCIIGrid(f)
	}

	corners, found, err := ReadSidecar(path)
	if err != nil {
		return nil, err
	}
	if !found {
		corners = opts.Corners
	}
	if !corners.Valid() {
		return nil, fmt.Errorf("%w: no corners for %s", ErrMetadata, path)
	}

	return DecodeImage(f, corners, opts.Scale, opts.Offset)
}

// DecodeImage reads a single-band image (TIFF, PNG, BMP) into a raster.
// Multi-band images are reduced to 16-bit luminance.
func DecodeImage(r io.Reader, corners Corners, scale, offset float64) (*Raster, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	if scale == 0 {
		scale = 1
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float64, 0, w*h)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var raw uint16
			switch src := img.(type) {
			case *image.Gray16:
				raw = src.Gray16At(x, y).Y
			case *image.Gray:
				raw = uint16(src.GrayAt(x, y).Y)
			default:
				raw = color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y
			}
			data = append(data, float64(raw)*scale+offset)
		}
	}

	return New(w, h, data, corners.UpperLeft, corners.LowerRight)
}

// DecodeASCIIGrid reads an ESRI ASCII grid. Samples are taken as-is; the
// grid's own lower-left anchor and cell size define the corners.
func DecodeASCIIGrid(r io.Reader) (*Raster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	header := make(map[string]float64, 6)
	var data []float64

	for sc.Scan() {
		tok := sc.Text()
		key := strings.ToLower(tok)

		if data == nil && isGridKey(key) {
			if !sc.Scan() {
				return nil, fmt.Errorf("%w: missing value for %s", ErrMetadata, tok)
			}
			v, err := strconv.ParseFloat(sc.Text(), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMetadata, tok, err)
			}
			header[key] = v
			continue
		}

		if data == nil {
			ncols, nrows := int(header["ncols"]), int(header["nrows"])
			if ncols <= 0 || nrows <= 0 {
				return nil, fmt.Errorf("%w: ncols/nrows missing", ErrMetadata)
			}
			data = make([]float64, 0, ncols*nrows)
		}

		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("raster: sample %d: %w", len(data), err)
		}
		data = append(data, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	cell, ok := header["cellsize"]
	if !ok || cell <= 0 {
		return nil, fmt.Errorf("%w: cellsize missing", ErrMetadata)
	}

	xll, okX := header["xllcorner"]
	if c, ok := header["xllcenter"]; ok {
		xll, okX = c-cell/2, true
	}
	yll, okY := header["yllcorner"]
	if c, ok := header["yllcenter"]; ok {
		yll, okY = c-cell/2, true
	}
	if !okX || !okY {
		return nil, fmt.Errorf("%w: lower-left anchor missing", ErrMetadata)
	}

	ncols, nrows := int(header["ncols"]), int(header["nrows"])
	return New(ncols, nrows, data,
		Coord{X: xll, Y: yll + float64(nrows)*cell},
		Coord{X: xll + float64(ncols)*cell, Y: yll},
	)
}

func isGridKey(key string) bool {
	switch key {
	case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter", "cellsize", "nodata_value":
		return true
	}
	return false
}
