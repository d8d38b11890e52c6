// Package processor runs the daily radiance extraction over municipalities.
package processor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/radiance/internal/config"
	"github.com/woozymasta/radiance/internal/geo"
)

// Target is a municipality bound to the tile that covers it.
type Target struct {
	Municipality geo.Municipality
	Quadrant     string
}

// LoadBoundaries reads the boundary GeoJSON from a local path or an http(s)
// URL.
func LoadBoundaries(ctx context.Context, client *http.Client, source, nameProperty string) ([]geo.Municipality, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return geo.LoadBoundaries(source, nameProperty)
	}

	log.Info().Str("url", source).Msg("Downloading boundaries")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("boundaries download failed: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return geo.DecodeBoundaries(data, nameProperty)
}

// Targets selects the municipalities to process and assigns their tiles.
//
// With no configured municipalities every boundary is a target. limit, when
// not empty, narrows the selection further by name. Unknown names are logged
// and skipped. A municipality without a configured quadrant gets the tile of
// its centroid.
func Targets(all []geo.Municipality, selected []config.Municipality, limit []string) []Target {
	if len(selected) == 0 {
		selected = make([]config.Municipality, 0, len(all))
		for _, m := range all {
			selected = append(selected, config.Municipality{Name: m.Name})
		}
	}

	allowed := make(map[string]bool, len(limit))
	for _, name := range limit {
		allowed[geo.NormalizeName(name)] = true
	}

	seen := make(map[string]bool, len(selected))
	targets := make([]Target, 0, len(selected))

	for _, sel := range selected {
		m, ok := geo.Find(all, sel.Name)
		if !ok {
			log.Error().
				Str("municipality", sel.Name).
				Msg("Municipality not found in boundaries")
			continue
		}
		if seen[m.Key] || (len(allowed) > 0 && !allowed[m.Key]) {
			continue
		}
		seen[m.Key] = true

		q := sel.Quadrant
		if q == "" {
			c := m.Polygon.Centroid()
			q = geo.QuadrantFor(c.Lon, c.Lat)
		}

		if spans := m.Polygon.Quadrants(); len(spans) > 1 || spans[0] != q {
			log.Warn().
				Str("municipality", m.Name).
				Str("quadrant", q).
				Strs("spans", spans).
				Msg("Boundary extends beyond its tile, outside pixels are clipped")
		}

		targets = append(targets, Target{Municipality: m, Quadrant: q})
	}

	return targets
}

// GroupByQuadrant buckets targets by tile, in sorted tile order.
func GroupByQuadrant(targets []Target) (quadrants []string, groups map[string][]Target) {
	groups = make(map[string][]Target)
	for _, t := range targets {
		groups[t.Quadrant] = append(groups[t.Quadrant], t)
	}

	for q := range groups {
		quadrants = append(quadrants, q)
	}
	slices.Sort(quadrants)
	return quadrants, groups
}

// tempDir creates the per-run download directory under base.
func tempDir(base string) (string, error) {
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", err
	}
	return os.MkdirTemp(base, "tiles-")
}
