package geo

import (
	"slices"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Summary describes where a municipality sits relative to the tile grid and
// to the other municipalities.
type Summary struct {
	Name     string `json:"name" yaml:"name"`
	Centroid Point  `json:"centroid" yaml:"centroid"`

	// Quadrant is the tile holding the centroid; Spans lists every tile
	// the bounding box touches.
	Quadrant string   `json:"quadrant" yaml:"quadrant"`
	Spans    []string `json:"spans" yaml:"spans"`

	AreaKM2    float64 `json:"area_km2" yaml:"area_km2"`
	DistanceKM float64 `json:"distance_km" yaml:"distance_km"`
}

// Quadrants returns the sorted tile codes touched by the polygon bounding box.
func (p Polygon) Quadrants() []string {
	b := p.Bound()
	h0, v0 := tileIndex(b.Min[0], b.Max[1])
	h1, v1 := tileIndex(b.Max[0], b.Min[1])

	out := make([]string, 0, (h1-h0+1)*(v1-v0+1))
	for h := h0; h <= h1; h++ {
		for v := v0; v <= v1; v++ {
			out = append(out, quadrant(h, v))
		}
	}
	slices.Sort(out)
	return out
}

// Summarize computes per-municipality summaries. Distances are measured from
// the area-weighted centroid of all municipalities, which is returned too.
func Summarize(ms []Municipality) (Point, []Summary) {
	out := make([]Summary, 0, len(ms))

	var sx, sy, total float64
	for _, m := range ms {
		c := m.Polygon.Centroid()
		a := planar.Area(m.Polygon.Ring())

		sx += c.Lon * a
		sy += c.Lat * a
		total += a

		out = append(out, Summary{
			Name:     m.Name,
			Centroid: c,
			Quadrant: QuadrantFor(c.Lon, c.Lat),
			Spans:    m.Polygon.Quadrants(),
			AreaKM2:  orbgeo.Area(orb.Polygon{m.Polygon.Ring()}) / 1e6,
		})
	}

	var ref Point
	if total > 0 {
		ref = Point{Lon: sx / total, Lat: sy / total}
	}
	for i := range out {
		out[i].DistanceKM = DistanceKM(out[i].Centroid, ref)
	}

	return ref, out
}
