package rasterize

import (
	"fmt"
	"math"
)

// minArea is the smallest absolute polygon area, in square pixels, that
// still yields a centroid.
const minArea = 1e-9

// Centroid returns the area-weighted centroid of a closed polygon using the
// shoelace accumulation. Vertex order may be clockwise or counter-clockwise.
func Centroid(vertices []Vec) (Vec, error) {
	var area, cx, cy float64

	n := len(vertices)
	for i := 0; i < n; i++ {
		p0, p1 := vertices[i], vertices[(i+1)%n]
		cross := p0.X*p1.Y - p1.X*p0.Y
		area += cross
		cx += (p0.X + p1.X) * cross
		cy += (p0.Y + p1.Y) * cross
	}
	area *= 0.5

	if math.Abs(area) < minArea || math.IsNaN(area) {
		return Vec{}, fmt.Errorf("%w: area %g over %d vertices", ErrDegenerateCentroid, area, n)
	}

	return Vec{X: cx / (6 * area), Y: cy / (6 * area)}, nil
}
