// Package rasterize maps a geographic boundary onto raster pixels: it projects
// the polygon, closes its discrete border, fills the interior from the
// centroid and recovers enclosed pixels the centroid fill cannot reach.
//
// The package is pure and single-threaded; every call owns the structures it
// builds and only reads the input raster.
package rasterize

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/woozymasta/radiance/internal/geo"
	"github.com/woozymasta/radiance/internal/raster"
)

var (
	// ErrInvalidPolygon is returned for polygons with fewer than 3 vertices,
	// non-finite coordinates or a bounding box far larger than the raster.
	ErrInvalidPolygon = errors.New("rasterize: invalid polygon")

	// ErrEmptyCrop is returned when the polygon bounding box does not
	// overlap the raster.
	ErrEmptyCrop = errors.New("rasterize: empty crop")

	// ErrDegenerateCentroid is returned when the polygon area is zero.
	ErrDegenerateCentroid = errors.New("rasterize: degenerate centroid")

	// ErrInvalidScale is returned for scale factors below 1.
	ErrInvalidScale = errors.New("rasterize: scale factor must be >= 1")
)

// ResolutionMode selects where the pixel size comes from.
type ResolutionMode string

const (
	// ResolutionFixed divides a constant product tile extent by the raster
	// dimensions.
	ResolutionFixed ResolutionMode = "fixed"

	// ResolutionCorners divides the extent spanned by the raster corners.
	ResolutionCorners ResolutionMode = "corners"
)

// maxBoxSpan bounds how far, in raster sizes, a polygon overlapping the
// raster may extend past its edges.
const maxBoxSpan = 4

// DefaultTileExtent is the physical tile edge of the VNP46 grid, in degrees.
const DefaultTileExtent = 10.0

// Vec is a fractional pixel coordinate.
type Vec struct {
	X, Y float64
}

// Pixel returns the integer pixel containing v.
func (v Vec) Pixel() image.Point {
	return image.Pt(int(math.Floor(v.X)), int(math.Floor(v.Y)))
}

// Round returns the nearest integer pixel to v.
func (v Vec) Round() image.Point {
	return image.Pt(int(math.Round(v.X)), int(math.Round(v.Y)))
}

// Sides flags the four edges of a crop.
type Sides struct {
	Left, Top, Right, Bottom bool
}

// Not returns the complementary set of sides.
func (s Sides) Not() Sides {
	return Sides{Left: !s.Left, Top: !s.Top, Right: !s.Right, Bottom: !s.Bottom}
}

// Projector converts geographic polygons into pixel space of a raster.
type Projector struct {
	// Mode defaults to ResolutionFixed.
	Mode ResolutionMode

	// TileExtentX and TileExtentY are used in fixed mode; zero means
	// DefaultTileExtent.
	TileExtentX float64
	TileExtentY float64

	// Scale replicates every cropped sample into a Scale×Scale block.
	// Zero means 1.
	Scale int
}

// Projection is a polygon expressed in the pixel space of its crop.
type Projection struct {
	// Raster is the cropped, possibly upscaled, raster.
	Raster *raster.Raster

	// Vertices are relative to the crop origin and already scaled.
	Vertices []Vec

	// Crop is the cropped window in source raster pixels.
	Crop image.Rectangle

	// Clamped marks crop sides cut by the raster edge instead of
	// carrying the one-pixel margin around the polygon.
	Clamped Sides

	Scale int
}

// Resolution returns the pixel size used to project onto r.
func (p Projector) Resolution(r *raster.Raster) (rx, ry float64) {
	if p.Mode == ResolutionCorners {
		return r.Resolution()
	}

	ex, ey := p.TileExtentX, p.TileExtentY
	if ex == 0 {
		ex = DefaultTileExtent
	}
	if ey == 0 {
		ey = DefaultTileExtent
	}
	return ex / float64(r.Width), ey / float64(r.Height)
}

// Project maps poly onto r, crops r to the polygon bounding box plus a
// one-pixel margin and applies the scale factor.
func (p Projector) Project(r *raster.Raster, poly geo.Polygon) (*Projection, error) {
	if len(poly) < 3 {
		return nil, fmt.Errorf("%w: %d vertices", ErrInvalidPolygon, len(poly))
	}

	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	if scale < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScale, scale)
	}

	if r.Empty() {
		return nil, ErrEmptyCrop
	}

	rx, ry := p.Resolution(r)
	if !(rx > 0) || !(ry > 0) {
		return nil, fmt.Errorf("rasterize: non-positive resolution %gx%g", rx, ry)
	}

	ux, uy := r.UpperLeft.X, r.UpperLeft.Y
	px := make([]Vec, len(poly))
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)

	for i, pt := range poly {
		v := Vec{X: (pt.Lon - ux) / rx, Y: (uy - pt.Lat) / ry}
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
			return nil, fmt.Errorf("%w: vertex %d is not finite", ErrInvalidPolygon, i)
		}

		px[i] = v
		minX, maxX = math.Min(minX, v.X), math.Max(maxX, v.X)
		minY, maxY = math.Min(minY, v.Y), math.Max(maxY, v.Y)
	}

	w, h := float64(r.Width), float64(r.Height)
	x0, y0 := math.Floor(minX)-1, math.Floor(minY)-1
	x1, y1 := math.Ceil(maxX)+1, math.Ceil(maxY)+1
	if x0 >= w || y0 >= h || x1 <= 0 || y1 <= 0 {
		return nil, fmt.Errorf("%w: box [%g,%g]-[%g,%g] outside raster %v", ErrEmptyCrop, x0, y0, x1, y1, r.Bounds())
	}

	// bounded before the int conversion
	limit := maxBoxSpan * math.Max(w, h)
	if x0 < -limit || y0 < -limit || x1 > w+limit || y1 > h+limit {
		return nil, fmt.Errorf("%w: box [%g,%g]-[%g,%g] exceeds raster %v", ErrInvalidPolygon, x0, y0, x1, y1, r.Bounds())
	}

	box := image.Rect(int(x0), int(y0), int(x1), int(y1))
	crop := box.Intersect(r.Bounds())
	if crop.Empty() {
		return nil, fmt.Errorf("%w: box %v outside raster %v", ErrEmptyCrop, box, r.Bounds())
	}

	up, err := r.Crop(crop).Upscale(scale)
	if err != nil {
		return nil, err
	}

	k := float64(scale)
	for i := range px {
		px[i].X = (px[i].X - float64(crop.Min.X)) * k
		px[i].Y = (px[i].Y - float64(crop.Min.Y)) * k
	}

	return &Projection{
		Raster:   up,
		Vertices: px,
		Crop:     crop,
		Scale:    scale,
		Clamped: Sides{
			Left:   crop.Min.X > box.Min.X,
			Top:    crop.Min.Y > box.Min.Y,
			Right:  crop.Max.X < box.Max.X,
			Bottom: crop.Max.Y < box.Max.Y,
		},
	}, nil
}
