package rasterize

import (
	"image"
	"math"
)

// DefaultSamples is the number of points interpolated along an edge longer
// than one pixel.
const DefaultSamples = 100

// BorderSet is the discrete closed boundary of a polygon: pixels in the
// order they were first reached, without duplicates.
type BorderSet struct {
	index  map[image.Point]struct{}
	Pixels []image.Point
}

func newBorderSet(capacity int) *BorderSet {
	return &BorderSet{
		index:  make(map[image.Point]struct{}, capacity),
		Pixels: make([]image.Point, 0, capacity),
	}
}

func (b *BorderSet) add(p image.Point) {
	if _, ok := b.index[p]; ok {
		return
	}
	b.index[p] = struct{}{}
	b.Pixels = append(b.Pixels, p)
}

// Contains reports whether p is a border pixel.
func (b *BorderSet) Contains(p image.Point) bool {
	_, ok := b.index[p]
	return ok
}

// Len returns the number of border pixels.
func (b *BorderSet) Len() int {
	return len(b.Pixels)
}

// Densify closes the polygon outline into an 8-connected pixel curve.
//
// Each edge, including the one from the last vertex back to the first,
// contributes the pixel of its start vertex and, when longer than one pixel,
// evenly spaced samples interpolated on the segment parameter. Samples are
// raised above the requested count on long edges so that consecutive samples
// are at most half a pixel apart on either axis. Vertical edges (dx == 0)
// go through the same parametrization.
func Densify(vertices []Vec, samples int) *BorderSet {
	if samples <= 0 {
		samples = DefaultSamples
	}

	n := len(vertices)
	b := newBorderSet(n * 4)

	for i := 0; i < n; i++ {
		a, c := vertices[i], vertices[(i+1)%n]
		b.add(a.Pixel())

		dx, dy := c.X-a.X, c.Y-a.Y
		length := math.Hypot(dx, dy)
		if length <= 1 {
			continue
		}

		steps := max(samples, 2*int(math.Ceil(length))+1)
		last := float64(steps - 1)
		for j := 0; j < steps; j++ {
			t := float64(j) / last
			b.add(Vec{X: a.X + t*dx, Y: a.Y + t*dy}.Pixel())
		}
	}

	return b
}
