package geo

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"

	"github.com/woozymasta/radiance/internal/raster"
)

// TileDegrees is the edge length of a tile in the global linear lat/lon grid
// used by the VIIRS black marble products (36 × 18 tiles).
const TileDegrees = 10.0

const (
	gridColumns = 36
	gridRows    = 18
)

var quadrantRe = regexp.MustCompile(`^h(\d{2})v(\d{2})$`)

// QuadrantFor returns the tile code ("hHHvVV") covering lon/lat.
// Points on a tile edge belong to the tile to the east / south.
func QuadrantFor(lon, lat float64) string {
	return quadrant(tileIndex(lon, lat))
}

func tileIndex(lon, lat float64) (h, v int) {
	h = int(math.Floor((lon + 180) / TileDegrees))
	v = int(math.Floor((90 - lat) / TileDegrees))

	return min(max(h, 0), gridColumns-1), min(max(v, 0), gridRows-1)
}

func quadrant(h, v int) string {
	return fmt.Sprintf("h%02dv%02d", h, v)
}

// ParseQuadrant splits a tile code into its horizontal and vertical indices.
func ParseQuadrant(q string) (h, v int, err error) {
	m := quadrantRe.FindStringSubmatch(q)
	if m == nil {
		return 0, 0, fmt.Errorf("geo: invalid quadrant %q", q)
	}

	h, _ = strconv.Atoi(m[1])
	v, _ = strconv.Atoi(m[2])
	if h >= gridColumns || v >= gridRows {
		return 0, 0, fmt.Errorf("geo: quadrant %q outside the %dx%d grid", q, gridColumns, gridRows)
	}

	return h, v, nil
}

// QuadrantCorners returns the geolocation corners of a tile of the linear
// lat/lon grid.
func QuadrantCorners(q string) (raster.Corners, error) {
	h, v, err := ParseQuadrant(q)
	if err != nil {
		return raster.Corners{}, err
	}

	ulx := -180 + float64(h)*TileDegrees
	uly := 90 - float64(v)*TileDegrees

	return raster.Corners{
		UpperLeft:  raster.Coord{X: ulx, Y: uly},
		LowerRight: raster.Coord{X: ulx + TileDegrees, Y: uly - TileDegrees},
	}, nil
}

// Centroid returns the area-weighted centroid of the polygon in degrees.
func (p Polygon) Centroid() Point {
	c, _ := planar.CentroidArea(orb.Polygon{p.Ring()})
	return Point{Lon: c[0], Lat: c[1]}
}

// DistanceKM returns the great-circle distance between two points.
func DistanceKM(a, b Point) float64 {
	return orbgeo.DistanceHaversine(orb.Point{a.Lon, a.Lat}, orb.Point{b.Lon, b.Lat}) / 1000
}
