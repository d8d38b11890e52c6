// Package geo handles municipality boundaries and geographic tile math.
package geo

import (
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// DefaultNameProperty is the feature property holding the municipality name
// in the national geostatistical boundary files.
const DefaultNameProperty = "NOMGEO"

// ErrNoPolygon is returned for features without polygonal geometry.
var ErrNoPolygon = errors.New("geo: feature has no polygon geometry")

// Point is a geographic coordinate in degrees.
type Point struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// Polygon is an ordered, implicitly closed ring of geographic points.
type Polygon []Point

// Municipality is one administrative boundary.
type Municipality struct {
	Properties map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
	Name       string                 `json:"name" yaml:"name"`
	Key        string                 `json:"key" yaml:"key"` // normalized name
	Polygon    Polygon                `json:"-" yaml:"-"`
}

// FromRing converts an orb ring, dropping the repeated closing vertex.
func FromRing(r orb.Ring) Polygon {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}

	p := make(Polygon, n)
	for i := 0; i < n; i++ {
		p[i] = Point{Lon: r[i][0], Lat: r[i][1]}
	}
	return p
}

// Ring returns the polygon as a closed orb ring.
func (p Polygon) Ring() orb.Ring {
	r := make(orb.Ring, 0, len(p)+1)
	for _, pt := range p {
		r = append(r, orb.Point{pt.Lon, pt.Lat})
	}
	if len(p) > 0 {
		r = append(r, r[0])
	}
	return r
}

// Contains reports whether pt lies inside the polygon.
func (p Polygon) Contains(pt Point) bool {
	if len(p) < 3 {
		return false
	}
	return planar.RingContains(p.Ring(), orb.Point{pt.Lon, pt.Lat})
}

// Bound returns the bounding box of the polygon.
func (p Polygon) Bound() orb.Bound {
	return p.Ring().Bound()
}

// LoadBoundaries reads a GeoJSON FeatureCollection of municipalities.
func LoadBoundaries(path, nameProperty string) ([]Municipality, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return DecodeBoundaries(data, nameProperty)
}

// DecodeBoundaries parses a GeoJSON FeatureCollection. Only the outer ring of
// each feature is kept; for multipolygons the ring of the largest part is used.
func DecodeBoundaries(data []byte, nameProperty string) ([]Municipality, error) {
	if nameProperty == "" {
		nameProperty = DefaultNameProperty
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("geojson decode failed: %w", err)
	}

	out := make([]Municipality, 0, len(fc.Features))
	for i, f := range fc.Features {
		name := f.Properties.MustString(nameProperty, "")
		if name == "" {
			return nil, fmt.Errorf("geo: feature %d has no %q property", i, nameProperty)
		}

		ring, err := outerRing(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		out = append(out, Municipality{
			Name:       name,
			Key:        NormalizeName(name),
			Polygon:    FromRing(ring),
			Properties: f.Properties,
		})
	}

	return out, nil
}

func outerRing(g orb.Geometry) (orb.Ring, error) {
	switch geom := g.(type) {
	case orb.Polygon:
		if len(geom) == 0 {
			return nil, ErrNoPolygon
		}
		return geom[0], nil

	case orb.MultiPolygon:
		var best orb.Ring
		bestArea := -1.0
		for _, poly := range geom {
			if len(poly) == 0 {
				continue
			}
			if a := planar.Area(poly[0]); a > bestArea {
				best, bestArea = poly[0], a
			}
		}
		if best == nil {
			return nil, ErrNoPolygon
		}
		return best, nil

	default:
		return nil, ErrNoPolygon
	}
}

// Find looks a municipality up by accent- and case-insensitive name.
func Find(ms []Municipality, name string) (Municipality, bool) {
	key := NormalizeName(name)
	for _, m := range ms {
		if m.Key == key {
			return m, true
		}
	}
	return Municipality{}, false
}
