package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/radiance/internal/geo"
	"github.com/woozymasta/radiance/internal/raster"
	"github.com/woozymasta/radiance/internal/rasterize"
	"github.com/woozymasta/radiance/internal/render"
	"github.com/woozymasta/radiance/internal/report"
	"github.com/woozymasta/radiance/internal/stats"
)

// Fetcher places the tile of quadrant for date into dir and returns its path.
type Fetcher interface {
	Fetch(ctx context.Context, date stats.Date, quadrant, dir string) (string, error)
}

// Processor measures municipalities over daily tiles.
type Processor struct {
	Fetcher    Fetcher
	Rasterizer rasterize.Rasterizer

	// Extension of the fetched tiles. Run refuses formats the raster
	// loader cannot decode before fetching anything; empty skips the check.
	Extension string

	// Load is used for every tile; Corners default to the quadrant extent
	// when the tile has no sidecar metadata.
	Load raster.LoadOptions

	Concurrency int

	// CacheDir receives downloaded tiles. They are deleted once every
	// municipality of the tile is measured unless KeepTiles is set.
	CacheDir  string
	KeepTiles bool

	// OverlayDir enables diagnostic overlays when not empty.
	OverlayDir string
}

// Failure is a unit that produced no measurement.
type Failure struct {
	Date         stats.Date
	Quadrant     string
	Municipality string
	Err          error
}

// Report is the outcome of a batch.
type Report struct {
	Rows     []report.Row
	Failures []Failure
}

type job struct {
	Date     stats.Date
	Quadrant string
	Targets  []Target
}

type result struct {
	Rows     []report.Row
	Failures []Failure
}

// Run processes every (date, quadrant) pair once, measuring all targets of
// the quadrant on the same tile. A failing unit is logged and recorded in
// the report; only cancellation of ctx, an unloadable tile format or an
// unusable cache directory abort the batch.
func (p *Processor) Run(ctx context.Context, dates []stats.Date, targets []Target) (*Report, error) {
	if p.Extension != "" {
		if err := raster.CheckExtension(p.Extension); err != nil {
			return nil, err
		}
	}

	dir := p.CacheDir
	if !p.KeepTiles {
		tmp, err := tempDir(p.CacheDir)
		if err != nil {
			return nil, err
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		dir = tmp
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	quadrants, groups := GroupByQuadrant(targets)

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	total := len(dates) * len(quadrants)
	jobs := make(chan job, total)
	results := make(chan result, total)

	log.Info().
		Int("dates", len(dates)).
		Int("quadrants", len(quadrants)).
		Int("municipalities", len(targets)).
		Int("concurrency", concurrency).
		Msg("Starting batch")

	go func() {
		defer close(jobs)
		for _, d := range dates {
			for _, q := range quadrants {
				jobs <- job{Date: d, Quadrant: q, Targets: groups[q]}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					results <- j.fail(ctx.Err())
					continue
				}
				results <- p.process(ctx, j, dir)
			}
		}()
	}
	wg.Wait()
	close(results)

	rep := &Report{}
	for res := range results {
		rep.Rows = append(rep.Rows, res.Rows...)
		rep.Failures = append(rep.Failures, res.Failures...)
	}
	report.Sort(rep.Rows)

	log.Info().
		Int("measurements", len(rep.Rows)).
		Int("failures", len(rep.Failures)).
		Msg("Batch finished")

	return rep, ctx.Err()
}

// process fetches one tile and measures every target on it.
func (p *Processor) process(ctx context.Context, j job, dir string) result {
	logger := log.With().Stringer("date", j.Date).Str("quadrant", j.Quadrant).Logger()

	path, err := p.Fetcher.Fetch(ctx, j.Date, j.Quadrant, dir)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch tile")
		return j.fail(err)
	}
	if !p.KeepTiles {
		defer func() {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn().Err(err).Str("path", path).Msg("Failed to remove tile")
			}
		}()
	}

	opts := p.Load
	if corners, err := geo.QuadrantCorners(j.Quadrant); err == nil && !opts.Corners.Valid() {
		opts.Corners = corners
	}

	r, err := raster.Load(path, opts)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to load tile")
		return j.fail(err)
	}

	logger.Debug().Int("width", r.Width).Int("height", r.Height).Msg("Tile loaded")

	var out result
	for _, t := range j.Targets {
		row, err := p.measure(r, j, t)
		if err != nil {
			logger.Error().Err(err).Str("municipality", t.Municipality.Name).Msg("Failed to measure")
			out.Failures = append(out.Failures, Failure{
				Date: j.Date, Quadrant: j.Quadrant, Municipality: t.Municipality.Name, Err: err,
			})
			continue
		}
		out.Rows = append(out.Rows, row)
	}

	return out
}

func (p *Processor) measure(r *raster.Raster, j job, t Target) (report.Row, error) {
	name := t.Municipality.Name

	res, err := p.Rasterizer.Run(r, t.Municipality.Polygon)
	if err != nil {
		return report.Row{}, err
	}

	m, err := res.Measure(j.Date)
	if err != nil {
		return report.Row{}, err
	}

	ev := log.Info()
	if res.MainDiscarded {
		ev = log.Warn().Bool("main_discarded", true)
	}
	ev.Str("municipality", name).
		Stringer("date", j.Date).
		Str("quadrant", j.Quadrant).
		Int("pixels", m.PixelCount).
		Int("orphans", len(res.Orphans)).
		Float64("mean", m.Mean).
		Msg("Measured")

	if p.OverlayDir != "" {
		path := filepath.Join(p.OverlayDir, j.Date.String(), Slug(name)+".webp")
		if err := render.WriteFile(path, render.Overlay(res, render.Options{})); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to write overlay")
		}
	}

	return report.Row{Municipality: name, Quadrant: j.Quadrant, Measurement: m}, nil
}

func (j job) fail(err error) result {
	out := result{Failures: make([]Failure, 0, len(j.Targets))}
	for _, t := range j.Targets {
		out.Failures = append(out.Failures, Failure{
			Date: j.Date, Quadrant: j.Quadrant, Municipality: t.Municipality.Name, Err: err,
		})
	}
	return out
}

// Slug turns a municipality name into a file name.
func Slug(name string) string {
	return strings.ReplaceAll(geo.NormalizeName(name), " ", "_")
}
