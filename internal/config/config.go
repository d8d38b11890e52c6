// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/woozymasta/radiance/internal/geo"
	"github.com/woozymasta/radiance/internal/laads"
	"github.com/woozymasta/radiance/internal/raster"
	"github.com/woozymasta/radiance/internal/rasterize"
	"github.com/woozymasta/radiance/internal/retry"
)

// Config represents the root configuration file structure.
type Config struct {
	Product        Product        `yaml:"product" json:"product"`
	Boundaries     Boundaries     `yaml:"boundaries" json:"boundaries"`
	Municipalities []Municipality `yaml:"municipalities" json:"municipalities"`
	Retry          retry.Config   `yaml:"retry" json:"retry"`

	ScaleFactor    int    `yaml:"scale_factor,omitempty" json:"scale_factor"`
	DensifySamples int    `yaml:"densify_samples,omitempty" json:"densify_samples"`
	CacheDir       string `yaml:"cache_dir,omitempty" json:"cache_dir"`
	OutputDir      string `yaml:"output_dir,omitempty" json:"output_dir"`
	Overlays       bool   `yaml:"overlays,omitempty" json:"overlays"`
}

// Product describes the archive tiles and how their pixels map to degrees
// and radiance.
type Product struct {
	Name      string `yaml:"name" json:"name"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
	Extension string `yaml:"extension" json:"extension"`

	// TokenEnv names the environment variable holding the archive token.
	TokenEnv string `yaml:"token_env" json:"token_env"`

	TileExtent float64                  `yaml:"tile_extent,omitempty" json:"tile_extent"`
	Resolution rasterize.ResolutionMode `yaml:"resolution,omitempty" json:"resolution"`

	// Radiance = raw*Scale + Offset; Scale 0 keeps raw values.
	Scale  float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
	Offset float64 `yaml:"offset,omitempty" json:"offset,omitempty"`

	Timeout           time.Duration `yaml:"timeout,omitempty" json:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty" json:"requests_per_second,omitempty"`
}

// Boundaries points at the municipality GeoJSON file.
type Boundaries struct {
	Path         string `yaml:"path" json:"path"`
	NameProperty string `yaml:"name_property,omitempty" json:"name_property"`
}

// Municipality selects one boundary to process. Quadrant is derived from the
// boundary centroid when empty.
type Municipality struct {
	Name     string `yaml:"name" json:"name"`
	Quadrant string `yaml:"quadrant,omitempty" json:"quadrant,omitempty"`
}

// Load reads and parses the YAML configuration file from the specified path
// and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes a YAML configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	p := &c.Product
	if p.Name == "" {
		p.Name = "VNP46A1"
	}
	if p.BaseURL == "" {
		p.BaseURL = laads.DefaultBaseURL
	}
	if p.Extension == "" {
		p.Extension = raster.DefaultExtension
	}
	if p.TokenEnv == "" {
		p.TokenEnv = "NASA_API_TOKEN"
	}
	if p.TileExtent == 0 {
		p.TileExtent = rasterize.DefaultTileExtent
	}
	if p.Resolution == "" {
		p.Resolution = rasterize.ResolutionFixed
	}
	if p.Timeout == 0 {
		p.Timeout = 2 * time.Minute
	}

	if c.Boundaries.NameProperty == "" {
		c.Boundaries.NameProperty = geo.DefaultNameProperty
	}
	if c.ScaleFactor == 0 {
		c.ScaleFactor = 1
	}
	if c.DensifySamples == 0 {
		c.DensifySamples = rasterize.DefaultSamples
	}
	if c.CacheDir == "" {
		c.CacheDir = "cache"
	}
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
	if c.Retry.Attempts == 0 {
		c.Retry = retry.Default()
	}
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	var errs []error

	if c.Boundaries.Path == "" {
		errs = append(errs, errors.New("boundaries.path is required"))
	}
	if c.ScaleFactor < 1 {
		errs = append(errs, fmt.Errorf("scale_factor %d must be >= 1", c.ScaleFactor))
	}
	if err := raster.CheckExtension(c.Product.Extension); err != nil {
		errs = append(errs, fmt.Errorf("product.extension: %w", err))
	}
	if c.Product.TileExtent < 0 {
		errs = append(errs, fmt.Errorf("product.tile_extent %g must be positive", c.Product.TileExtent))
	}
	switch c.Product.Resolution {
	case rasterize.ResolutionFixed, rasterize.ResolutionCorners:
	default:
		errs = append(errs, fmt.Errorf("product.resolution %q must be fixed or corners", c.Product.Resolution))
	}
	for i, m := range c.Municipalities {
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("municipalities[%d].name is required", i))
		}
		if m.Quadrant != "" {
			if _, _, err := geo.ParseQuadrant(m.Quadrant); err != nil {
				errs = append(errs, fmt.Errorf("municipalities[%d]: %w", i, err))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Rasterizer returns the rasterizer configured by c.
func (c *Config) Rasterizer() rasterize.Rasterizer {
	return rasterize.Rasterizer{
		Projector: rasterize.Projector{
			Mode:        c.Product.Resolution,
			TileExtentX: c.Product.TileExtent,
			TileExtentY: c.Product.TileExtent,
			Scale:       c.ScaleFactor,
		},
		Samples: c.DensifySamples,
	}
}

// Archive returns the archive client options for the configured product.
func (c *Config) Archive(token string) laads.Options {
	return laads.Options{
		BaseURL:           c.Product.BaseURL,
		Extension:         c.Product.Extension,
		Token:             token,
		Timeout:           c.Product.Timeout,
		RequestsPerSecond: c.Product.RequestsPerSecond,
		Retry:             c.Retry,
	}
}

// MeasurementsPath is the CSV table written by a batch run.
func (c *Config) MeasurementsPath() string {
	return filepath.Join(c.OutputDir, "measurements.csv")
}

// OverlayDir is where diagnostic overlays are written when enabled.
func (c *Config) OverlayDir() string {
	return filepath.Join(c.OutputDir, "overlays")
}
