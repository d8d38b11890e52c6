// Package raster holds the in-memory radiance grid and the loaders that
// materialize it from tile files.
package raster

import (
	"errors"
	"fmt"
	"image"
)

// ErrShape is returned when the sample slice does not match the declared dimensions.
var ErrShape = errors.New("raster: sample count does not match dimensions")

// Coord is a projected coordinate (degrees for geographic tiles).
type Coord struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Raster is a row-major grid of samples anchored by its upper-left and
// lower-right corners. A Raster is never modified after construction.
type Raster struct {
	data       []float64
	UpperLeft  Coord
	LowerRight Coord
	Width      int
	Height     int
}

// New wraps data (len == width*height, row-major) into a Raster.
// The slice is owned by the raster afterwards.
func New(width, height int, data []float64, upperLeft, lowerRight Coord) (*Raster, error) {
	if width < 0 || height < 0 || len(data) != width*height {
		return nil, fmt.Errorf("%w: %dx%d with %d samples", ErrShape, width, height, len(data))
	}

	return &Raster{
		Width:      width,
		Height:     height,
		data:       data,
		UpperLeft:  upperLeft,
		LowerRight: lowerRight,
	}, nil
}

// Bounds returns the pixel rectangle of the raster, origin at (0, 0).
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// Empty reports whether the raster has no samples.
func (r *Raster) Empty() bool {
	return r.Width == 0 || r.Height == 0
}

// At returns the sample at column x, row y. It panics when out of bounds.
func (r *Raster) At(x, y int) float64 {
	return r.data[y*r.Width+x]
}

// Samples returns a copy of all samples in row-major order.
func (r *Raster) Samples() []float64 {
	out := make([]float64, len(r.data))
	copy(out, r.data)
	return out
}

// Extent returns the physical width and height spanned by the corners.
func (r *Raster) Extent() (dx, dy float64) {
	return r.LowerRight.X - r.UpperLeft.X, r.UpperLeft.Y - r.LowerRight.Y
}

// Resolution returns the per-axis pixel size derived from the corners.
func (r *Raster) Resolution() (rx, ry float64) {
	if r.Empty() {
		return 0, 0
	}
	dx, dy := r.Extent()
	return dx / float64(r.Width), dy / float64(r.Height)
}

// Crop returns the sub-raster covered by rect intersected with the raster
// bounds. The corners of the result are derived from the source resolution.
func (r *Raster) Crop(rect image.Rectangle) *Raster {
	rect = rect.Intersect(r.Bounds())
	w, h := rect.Dx(), rect.Dy()

	data := make([]float64, 0, w*h)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := r.data[y*r.Width : (y+1)*r.Width]
		data = append(data, row[rect.Min.X:rect.Max.X]...)
	}

	rx, ry := r.Resolution()
	return &Raster{
		Width:  w,
		Height: h,
		data:   data,
		UpperLeft: Coord{
			X: r.UpperLeft.X + float64(rect.Min.X)*rx,
			Y: r.UpperLeft.Y - float64(rect.Min.Y)*ry,
		},
		LowerRight: Coord{
			X: r.UpperLeft.X + float64(rect.Max.X)*rx,
			Y: r.UpperLeft.Y - float64(rect.Max.Y)*ry,
		},
	}
}

// Upscale replicates every sample into a k×k block (Kronecker product with
// a ones matrix). The corners are unchanged, so resolution shrinks by k.
// k == 1 returns the receiver.
func (r *Raster) Upscale(k int) (*Raster, error) {
	if k < 1 {
		return nil, fmt.Errorf("raster: scale factor must be >= 1, got %d", k)
	}
	if k == 1 {
		return r, nil
	}

	w, h := r.Width*k, r.Height*k
	data := make([]float64, w*h)
	for y := 0; y < h; y++ {
		src := r.data[(y/k)*r.Width : (y/k+1)*r.Width]
		dst := data[y*w : (y+1)*w]
		for x := range dst {
			dst[x] = src[x/k]
		}
	}

	return &Raster{
		Width:      w,
		Height:     h,
		data:       data,
		UpperLeft:  r.UpperLeft,
		LowerRight: r.LowerRight,
	}, nil
}
