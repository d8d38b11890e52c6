package rasterize

import (
	"errors"
	"image"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/woozymasta/radiance/internal/geo"
	"github.com/woozymasta/radiance/internal/raster"
	"github.com/woozymasta/radiance/internal/stats"
)

// Rasterizer turns a (raster, polygon) pair into the set of pixels inside
// the polygon.
type Rasterizer struct {
	Projector Projector

	// Samples per long edge for Densify; zero means DefaultSamples.
	Samples int
}

// Result is the rasterization of one polygon over one raster.
type Result struct {
	Projection *Projection
	Border     *BorderSet
	Grid       *Grid

	// Centroid of the pixel-space polygon and the fill seed derived from it.
	Centroid Vec
	Seed     image.Point

	// Main are the pixels reached from the seed, Orphans the enclosed
	// pixels it could not reach. Both exclude border pixels.
	Main    []image.Point
	Orphans []image.Point

	// MainDiscarded is set when the seed was on the border or outside the
	// polygon; the whole interior is then reported through Orphans.
	MainDiscarded bool
}

// Run rasterizes poly over r. The raster is only read.
func (rz Rasterizer) Run(r *raster.Raster, poly geo.Polygon) (*Result, error) {
	proj, err := rz.Projector.Project(r, poly)
	if err != nil {
		return nil, err
	}

	centroid, err := Centroid(proj.Vertices)
	if err != nil {
		return nil, err
	}

	border := Densify(proj.Vertices, rz.Samples)
	grid := NewGrid(proj.Raster.Width, proj.Raster.Height, border)
	open := proj.Clamped.Not()
	cut := cutOutside(grid, proj.Vertices, proj.Clamped)

	res := &Result{
		Projection: proj,
		Border:     border,
		Grid:       grid,
		Centroid:   centroid,
		Seed:       centroid.Round(),
	}

	main, err := grid.Fill(res.Seed)
	switch {
	case err == nil:
		// The margin sides and the cut pixels lie outside the polygon, so
		// reaching them means the centroid sits in a concavity.
		if grid.Touches(Main, open, cut...) {
			grid.Reset(Main)
			main = nil
			res.MainDiscarded = true
		}
	case errors.Is(err, ErrSeedOutside), errors.Is(err, ErrSeedOnBorder):
		res.MainDiscarded = true
	default:
		return nil, err
	}

	grid.FloodExterior(open, cut...)

	res.Main = main
	res.Orphans = grid.Orphans()
	return res, nil
}

// cutOutside returns the unlabeled frame pixels of the clamped sides whose
// centres lie outside the polygon. A clamped side has no margin, so a
// concavity opening onto it is only reachable from these pixels.
func cutOutside(g *Grid, vertices []Vec, clamped Sides) []image.Point {
	if clamped == (Sides{}) {
		return nil
	}

	ring := make(orb.Ring, 0, len(vertices)+1)
	for _, v := range vertices {
		ring = append(ring, orb.Point{v.X, v.Y})
	}
	ring = append(ring, ring[0])

	var out []image.Point
	for _, p := range g.frame(clamped) {
		if g.At(p) != Unvisited {
			continue
		}
		if !planar.RingContains(ring, orb.Point{float64(p.X) + 0.5, float64(p.Y) + 0.5}) {
			out = append(out, p)
		}
	}
	return out
}

// Pixels returns main pixels followed by orphan pixels.
func (res *Result) Pixels() []image.Point {
	out := make([]image.Point, 0, len(res.Main)+len(res.Orphans))
	out = append(out, res.Main...)
	return append(out, res.Orphans...)
}

// Values samples the cropped raster at every pixel of Pixels.
func (res *Result) Values() []float64 {
	r := res.Projection.Raster
	out := make([]float64, 0, len(res.Main)+len(res.Orphans))
	for _, p := range res.Main {
		out = append(out, r.At(p.X, p.Y))
	}
	for _, p := range res.Orphans {
		out = append(out, r.At(p.X, p.Y))
	}
	return out
}

// Measure aggregates the pixel values into a measurement for date.
func (res *Result) Measure(date stats.Date) (stats.Measurement, error) {
	return stats.Compute(date, len(res.Main), res.Values())
}
