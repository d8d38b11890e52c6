package rasterize

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woozymasta/radiance/internal/geo"
	"github.com/woozymasta/radiance/internal/raster"
	"github.com/woozymasta/radiance/internal/stats"
)

const side = 100

// testRaster is a 100x100 tile spanning 100 degrees, so one degree is one
// pixel and lon/lat map to x = lon, y = 100 - lat.
func testRaster(t *testing.T) *raster.Raster {
	t.Helper()
	data := make([]float64, side*side)
	for i := range data {
		data[i] = float64(i % 7)
	}
	r, err := raster.New(side, side, data, raster.Coord{X: 0, Y: side}, raster.Coord{X: side, Y: 0})
	require.NoError(t, err)
	return r
}

func testRasterizer(scale int) Rasterizer {
	return Rasterizer{Projector: Projector{TileExtentX: side, TileExtentY: side, Scale: scale}}
}

// pixelPolygon builds a geographic polygon from raster pixel coordinates.
func pixelPolygon(xy ...float64) geo.Polygon {
	p := make(geo.Polygon, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		p = append(p, geo.Point{Lon: xy[i], Lat: side - xy[i+1]})
	}
	return p
}

func square(x0, y0, x1, y1 float64) geo.Polygon {
	return pixelPolygon(x0, y0, x1, y0, x1, y1, x0, y1)
}

// dumbbell is a 20x20 lobe joined to a 10x10 lobe through a corridor thinner
// than a pixel, which rasterizes to border only.
func dumbbell() geo.Polygon {
	return pixelPolygon(
		10, 10, 30, 10, 30, 19.6, 40, 19.6, 40, 15, 50, 15,
		50, 25, 40, 25, 40, 20.4, 30, 20.4, 30, 30, 10, 30,
	)
}

// uShape has its centroid inside the notch, outside the polygon.
func uShape() geo.Polygon {
	return pixelPolygon(10, 10, 20, 10, 20, 35, 30, 35, 30, 10, 40, 10, 40, 40, 10, 40)
}

func TestProject_Square(t *testing.T) {
	p, err := Projector{TileExtentX: side, TileExtentY: side}.Project(testRaster(t), square(10, 10, 20, 20))
	require.NoError(t, err)

	assert.Equal(t, image.Rect(9, 9, 21, 21), p.Crop)
	assert.Equal(t, 12, p.Raster.Width)
	assert.Equal(t, 12, p.Raster.Height)
	assert.Equal(t, Sides{}, p.Clamped)
	assert.Equal(t, 1, p.Scale)

	require.Len(t, p.Vertices, 4)
	assert.InDelta(t, 1.0, p.Vertices[0].X, 1e-9)
	assert.InDelta(t, 1.0, p.Vertices[0].Y, 1e-9)
	assert.InDelta(t, 11.0, p.Vertices[2].X, 1e-9)
	assert.InDelta(t, 11.0, p.Vertices[2].Y, 1e-9)
}

func TestProject_Scaled(t *testing.T) {
	p, err := Projector{TileExtentX: side, TileExtentY: side, Scale: 2}.Project(testRaster(t), square(10, 10, 20, 20))
	require.NoError(t, err)

	assert.Equal(t, 24, p.Raster.Width)
	assert.InDelta(t, 2.0, p.Vertices[0].X, 1e-9)
	assert.InDelta(t, 22.0, p.Vertices[2].Y, 1e-9)
}

func TestProject_ResolutionModes(t *testing.T) {
	r, err := raster.New(10, 10, make([]float64, 100), raster.Coord{X: 0, Y: 5}, raster.Coord{X: 5, Y: 0})
	require.NoError(t, err)

	rx, ry := Projector{}.Resolution(r)
	assert.InDelta(t, 1.0, rx, 1e-12, "fixed 10 degree extent")
	assert.InDelta(t, 1.0, ry, 1e-12)

	rx, ry = Projector{Mode: ResolutionCorners}.Resolution(r)
	assert.InDelta(t, 0.5, rx, 1e-12)
	assert.InDelta(t, 0.5, ry, 1e-12)
}

func TestProject_Errors(t *testing.T) {
	r := testRaster(t)
	pr := Projector{TileExtentX: side, TileExtentY: side}

	_, err := pr.Project(r, nil)
	assert.ErrorIs(t, err, ErrInvalidPolygon)

	_, err = pr.Project(r, pixelPolygon(1, 1, 5, 5))
	assert.ErrorIs(t, err, ErrInvalidPolygon)

	_, err = pr.Project(r, square(200, 10, 210, 20))
	assert.ErrorIs(t, err, ErrEmptyCrop)

	_, err = Projector{Scale: -1}.Project(r, square(10, 10, 20, 20))
	assert.ErrorIs(t, err, ErrInvalidScale)
}

func TestProject_HugeCoordinates(t *testing.T) {
	r := testRaster(t)
	pr := Projector{TileExtentX: side, TileExtentY: side}

	for _, poly := range []geo.Polygon{
		square(1e300, 10, 2e300, 20),
		square(-2e300, 10, -1e300, 20),
		square(10, 1e19, 20, 2e19),
	} {
		_, err := pr.Project(r, poly)
		assert.ErrorIs(t, err, ErrEmptyCrop)
	}

	_, err := pr.Project(r, pixelPolygon(10, 10, 1e300, 10, 10, 20))
	assert.ErrorIs(t, err, ErrInvalidPolygon)

	_, err = pr.Project(r, square(-350, -350, 450, 450))
	assert.NoError(t, err, "within four raster sizes")
}

func TestDensify_SquareRing(t *testing.T) {
	b := Densify([]Vec{{1, 1}, {11, 1}, {11, 11}, {1, 11}}, 0)

	assert.Equal(t, 40, b.Len())
	for x := 1; x <= 11; x++ {
		assert.True(t, b.Contains(image.Pt(x, 1)))
		assert.True(t, b.Contains(image.Pt(x, 11)))
		assert.True(t, b.Contains(image.Pt(1, x)))
		assert.True(t, b.Contains(image.Pt(11, x)))
	}
	assert.False(t, b.Contains(image.Pt(6, 6)))
}

func TestDensify_Closed(t *testing.T) {
	// long near-vertical edge needs more than the default 100 samples
	vertices := []Vec{{5.5, 2.25}, {9.3, 310.7}, {140.2, 160.1}, {60.9, 3.3}}
	b := Densify(vertices, DefaultSamples)

	n := len(b.Pixels)
	require.Greater(t, n, 300)

	seen := make(map[image.Point]bool, n)
	for _, p := range b.Pixels {
		assert.False(t, seen[p], "duplicate %v", p)
		seen[p] = true
	}

	// 8-connected as a whole
	reached := map[image.Point]bool{b.Pixels[0]: true}
	queue := []image.Point{b.Pixels[0]}
	for head := 0; head < len(queue); head++ {
		for _, q := range b.Pixels {
			if !reached[q] && chebyshev(queue[head], q) == 1 {
				reached[q] = true
				queue = append(queue, q)
			}
		}
	}
	assert.Len(t, reached, n)

	// and tight: a 4-connected fill from inside never reaches the frame
	g := NewGrid(150, 320, b)
	c, err := Centroid(vertices)
	require.NoError(t, err)
	_, err = g.Fill(c.Pixel())
	require.NoError(t, err)
	assert.False(t, g.Touches(Main, Sides{Left: true, Top: true, Right: true, Bottom: true}))
}

func TestDensify_VerticalEdge(t *testing.T) {
	b := Densify([]Vec{{5, 1}, {5, 20}, {6, 20}}, 0)
	for y := 1; y <= 20; y++ {
		assert.True(t, b.Contains(image.Pt(5, y)), "row %d", y)
	}
}

func TestCentroid(t *testing.T) {
	sq := []Vec{{1, 1}, {11, 1}, {11, 11}, {1, 11}}

	c, err := Centroid(sq)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, c.X, 1e-12)
	assert.InDelta(t, 6.0, c.Y, 1e-12)

	rev := []Vec{sq[3], sq[2], sq[1], sq[0]}
	c, err = Centroid(rev)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, c.X, 1e-12)

	_, err = Centroid([]Vec{{1, 1}, {2, 2}, {3, 3}})
	assert.ErrorIs(t, err, ErrDegenerateCentroid)
}

func TestRun_Square(t *testing.T) {
	res, err := testRasterizer(1).Run(testRaster(t), square(10, 10, 20, 20))
	require.NoError(t, err)

	assert.Equal(t, 40, res.Border.Len())
	assert.Len(t, res.Main, 81)
	assert.Empty(t, res.Orphans)
	assert.False(t, res.MainDiscarded)
	assert.Equal(t, image.Pt(6, 6), res.Seed)
	assert.Equal(t, res.Seed, res.Main[0])

	// 11x11 pixels for a 10x10 polygon: one row and column of discretization
	covered := len(res.Pixels()) + res.Border.Len()
	assert.Equal(t, 121, covered)

	assert.Equal(t, 144-121, res.Grid.Count(Exterior))

	m, err := res.Measure(stats.Date{Year: 2024, Month: time.January, Day: 1})
	require.NoError(t, err)
	assert.Equal(t, 81, m.PixelCount)
	assert.Equal(t, 81, m.MainPixelCount)
}

func TestRun_RecoversOrphanPocket(t *testing.T) {
	rz := testRasterizer(1)
	res, err := rz.Run(testRaster(t), dumbbell())
	require.NoError(t, err)

	assert.False(t, res.MainDiscarded)
	assert.Len(t, res.Main, 19*19)
	assert.Len(t, res.Orphans, 9*9)

	// centroid fill alone misses the small lobe
	proj := res.Projection
	g := NewGrid(proj.Raster.Width, proj.Raster.Height, Densify(proj.Vertices, 0))
	mainOnly, err := g.Fill(res.Seed)
	require.NoError(t, err)
	assert.Len(t, mainOnly, 19*19)

	m, err := res.Measure(stats.Date{Year: 2024, Month: time.January, Day: 2})
	require.NoError(t, err)
	assert.Equal(t, 442, m.PixelCount)
	assert.Equal(t, 361, m.MainPixelCount)
}

func TestRun_CentroidOutsidePolygon(t *testing.T) {
	res, err := testRasterizer(1).Run(testRaster(t), uShape())
	require.NoError(t, err)

	assert.True(t, res.MainDiscarded)
	assert.Empty(t, res.Main)
	assert.Len(t, res.Orphans, 566)

	// every selected pixel centre lies inside the polygon
	proj := res.Projection
	poly := make(geo.Polygon, len(proj.Vertices))
	for i, v := range proj.Vertices {
		poly[i] = geo.Point{Lon: v.X, Lat: v.Y}
	}
	for _, p := range res.Pixels() {
		assert.True(t, poly.Contains(geo.Point{Lon: float64(p.X) + 0.5, Lat: float64(p.Y) + 0.5}), "pixel %v", p)
	}
}

func TestRun_ClampedCrop(t *testing.T) {
	res, err := testRasterizer(1).Run(testRaster(t), square(85, 10, 105, 20))
	require.NoError(t, err)

	assert.True(t, res.Projection.Clamped.Right)
	assert.False(t, res.Projection.Clamped.Left)
	assert.False(t, res.MainDiscarded)
	assert.Len(t, res.Main, 14*9)
	assert.Empty(t, res.Orphans)
}

// eShape opens its notch onto the right raster edge and has its centroid
// inside the notch.
func eShape() geo.Polygon {
	return pixelPolygon(80, 10, 110, 10, 110, 20, 90, 20, 90, 30, 110, 30, 110, 40, 80, 40)
}

func TestRun_NotchOnClampedSide(t *testing.T) {
	res, err := testRasterizer(1).Run(testRaster(t), eShape())
	require.NoError(t, err)

	proj := res.Projection
	require.True(t, proj.Clamped.Right)
	assert.Equal(t, image.Pt(15, 16), res.Seed)

	assert.True(t, res.MainDiscarded)
	assert.Empty(t, res.Main)
	// three arms plus the spine rows next to the notch
	assert.Len(t, res.Orphans, 19*9+9*9+19*9+2*9)

	poly := make(geo.Polygon, len(proj.Vertices))
	for i, v := range proj.Vertices {
		poly[i] = geo.Point{Lon: v.X, Lat: v.Y}
	}
	for _, p := range res.Pixels() {
		assert.True(t, poly.Contains(geo.Point{Lon: float64(p.X) + 0.5, Lat: float64(p.Y) + 0.5}), "pixel %v", p)
	}

	for y := 12; y <= 20; y++ {
		for x := 12; x <= 20; x++ {
			assert.Equal(t, Exterior, res.Grid.At(image.Pt(x, y)), "notch pixel %d,%d", x, y)
		}
	}
}

func TestRun_BorderExcluded(t *testing.T) {
	for name, poly := range map[string]geo.Polygon{
		"square":   square(10, 10, 20, 20),
		"dumbbell": dumbbell(),
		"u":        uShape(),
		"triangle": pixelPolygon(12.3, 40.8, 61.7, 12.2, 80.4, 77.9),
	} {
		t.Run(name, func(t *testing.T) {
			res, err := testRasterizer(1).Run(testRaster(t), poly)
			require.NoError(t, err)

			bounds := res.Projection.Raster.Bounds()
			for _, p := range res.Pixels() {
				assert.False(t, res.Border.Contains(p), "border pixel %v selected", p)
				assert.True(t, p.In(bounds), "pixel %v outside crop", p)
			}
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	r := testRaster(t)
	date := stats.Date{Year: 2024, Month: time.March, Day: 5}

	a, err := testRasterizer(1).Run(r, dumbbell())
	require.NoError(t, err)
	b, err := testRasterizer(1).Run(r, dumbbell())
	require.NoError(t, err)

	assert.Equal(t, a.Pixels(), b.Pixels())

	ma, err := a.Measure(date)
	require.NoError(t, err)
	mb, err := b.Measure(date)
	require.NoError(t, err)
	assert.Equal(t, ma, mb)
}

func TestRun_ScaleInvariance(t *testing.T) {
	r := testRaster(t)
	poly := square(10, 10, 40, 40)

	one, err := testRasterizer(1).Run(r, poly)
	require.NoError(t, err)
	two, err := testRasterizer(2).Run(r, poly)
	require.NoError(t, err)

	assert.Len(t, one.Pixels(), 29*29)
	assert.Len(t, two.Pixels(), 59*59)

	ratio := float64(len(two.Pixels())) / float64(len(one.Pixels()))
	assert.InDelta(t, 4.0, ratio, 0.5)
}

func TestRun_TriangleArea(t *testing.T) {
	// right triangle with legs of 40 pixels, area 800
	res, err := testRasterizer(1).Run(testRaster(t), pixelPolygon(10, 10, 50, 10, 10, 50))
	require.NoError(t, err)

	covered := len(res.Pixels()) + res.Border.Len()
	assert.InDelta(t, 800, covered, 80)
	assert.Empty(t, res.Orphans)
}

func TestRun_Errors(t *testing.T) {
	r := testRaster(t)

	_, err := testRasterizer(1).Run(r, pixelPolygon(1, 1, 5, 5))
	assert.ErrorIs(t, err, ErrInvalidPolygon)

	_, err = testRasterizer(1).Run(r, square(300, 300, 310, 310))
	assert.ErrorIs(t, err, ErrEmptyCrop)

	_, err = testRasterizer(1).Run(r, pixelPolygon(10, 10, 20, 20, 30, 30))
	assert.ErrorIs(t, err, ErrDegenerateCentroid)
}

func TestRun_EmptyPixelSet(t *testing.T) {
	// sub-pixel triangle: the whole polygon rasterizes to border
	res, err := testRasterizer(1).Run(testRaster(t), pixelPolygon(10.1, 10.1, 10.6, 10.1, 10.1, 10.6))
	require.NoError(t, err)
	assert.Empty(t, res.Pixels())

	_, err = res.Measure(stats.Date{Year: 2024, Month: time.January, Day: 1})
	assert.ErrorIs(t, err, stats.ErrEmptyPixelSet)
}

func TestGrid_FillSeedChecks(t *testing.T) {
	b := Densify([]Vec{{1, 1}, {5, 1}, {5, 5}, {1, 5}}, 0)

	g := NewGrid(7, 7, b)
	_, err := g.Fill(image.Pt(1, 1))
	assert.ErrorIs(t, err, ErrSeedOnBorder)

	_, err = g.Fill(image.Pt(-1, 3))
	assert.ErrorIs(t, err, ErrSeedOutside)

	px, err := g.Fill(image.Pt(3, 3))
	require.NoError(t, err)
	assert.Len(t, px, 9)
	assert.Equal(t, image.Pt(3, 3), px[0])

	assert.Equal(t, 49-16-9, g.FloodExterior(Sides{Left: true, Top: true, Right: true, Bottom: true}))
	assert.Empty(t, g.Orphans())
}

func chebyshev(a, b image.Point) int {
	d := a.Sub(b)
	return max(abs(d.X), abs(d.Y))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
