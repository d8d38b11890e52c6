// Package stats aggregates pixel radiance values into measurement records.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptyPixelSet is returned when there are no pixel values to aggregate.
var ErrEmptyPixelSet = errors.New("stats: empty pixel set")

// Measurement is the radiance summary of one (date, municipality, tile) unit.
type Measurement struct {
	Date           Date    `json:"date" yaml:"date" csv:"date"`
	PixelCount     int     `json:"pixel_count" yaml:"pixel_count" csv:"pixel_count"`
	MainPixelCount int     `json:"main_pixel_count" yaml:"main_pixel_count" csv:"main_pixel_count"`
	Sum            float64 `json:"sum" yaml:"sum" csv:"sum"`
	Mean           float64 `json:"mean" yaml:"mean" csv:"mean"`
	StdDev         float64 `json:"stddev" yaml:"stddev" csv:"stddev"`
	Min            float64 `json:"min" yaml:"min" csv:"min"`
	Max            float64 `json:"max" yaml:"max" csv:"max"`
	P25            float64 `json:"p25" yaml:"p25" csv:"p25"`
	P50            float64 `json:"p50" yaml:"p50" csv:"p50"`
	P75            float64 `json:"p75" yaml:"p75" csv:"p75"`
}

// Compute builds a Measurement over values. mainCount is how many of the
// values came from the centroid-reachable region.
func Compute(date Date, mainCount int, values []float64) (Measurement, error) {
	if len(values) == 0 {
		return Measurement{}, ErrEmptyPixelSet
	}
	if mainCount < 0 || mainCount > len(values) {
		return Measurement{}, fmt.Errorf("stats: main pixel count %d outside [0, %d]", mainCount, len(values))
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)

	m := Measurement{
		Date:           date,
		PixelCount:     len(values),
		MainPixelCount: mainCount,
		Sum:            floats.Sum(sorted),
		Mean:           mean,
		StdDev:         std,
		Min:            sorted[0],
		Max:            sorted[len(sorted)-1],
		P25:            Percentile(sorted, 25),
		P50:            Percentile(sorted, 50),
		P75:            Percentile(sorted, 75),
	}

	return m, m.Validate()
}

// Percentile returns the p-th percentile (0..100) of an ascending slice,
// interpolating linearly between the two closest ranks at (n-1)*p/100.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}

	h := float64(n-1) * p / 100
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	if lo < 0 {
		return sorted[0]
	}

	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// Validate checks the invariants of a measurement, e.g. after reading it back
// from a report.
func (m Measurement) Validate() error {
	if m.PixelCount <= 0 {
		return ErrEmptyPixelSet
	}
	if m.MainPixelCount < 0 || m.MainPixelCount > m.PixelCount {
		return fmt.Errorf("stats: main pixel count %d outside [0, %d]", m.MainPixelCount, m.PixelCount)
	}

	for name, v := range map[string]float64{
		"sum": m.Sum, "mean": m.Mean, "stddev": m.StdDev, "min": m.Min, "max": m.Max,
		"p25": m.P25, "p50": m.P50, "p75": m.P75,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("stats: %s is not finite", name)
		}
	}

	if m.Min > m.P25 || m.P25 > m.P50 || m.P50 > m.P75 || m.P75 > m.Max {
		return errors.New("stats: quantiles out of order")
	}
	return nil
}
