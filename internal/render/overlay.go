// Package render draws diagnostic overlays of a rasterized municipality.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"

	"github.com/woozymasta/radiance/internal/rasterize"
	"github.com/woozymasta/radiance/internal/stats"
)

// Pixel class colors.
var (
	BorderColor = color.RGBA{R: 230, G: 40, B: 40, A: 255}
	MainColor   = color.RGBA{R: 40, G: 200, B: 80, A: 110}
	OrphanColor = color.RGBA{R: 60, G: 110, B: 255, A: 160}
)

// Options control the overlay appearance.
type Options struct {
	// Zoom enlarges every crop pixel into a Zoom×Zoom block; zero means 4.
	Zoom int

	// Clip is the percentile of the crop samples mapped to white; zero
	// means 99.
	Clip float64
}

// Overlay renders the cropped radiance in grayscale, clipped at the Clip
// percentile, and tints border, main and orphan pixels.
func Overlay(res *rasterize.Result, opts Options) *image.RGBA {
	if opts.Zoom <= 0 {
		opts.Zoom = 4
	}
	if opts.Clip <= 0 {
		opts.Clip = 99
	}

	r := res.Projection.Raster
	samples := r.Samples()
	slices.Sort(samples)

	lo := 0.0
	hi := stats.Percentile(samples, opts.Clip)
	if len(samples) > 0 {
		lo = samples[0]
	}

	base := image.NewRGBA(r.Bounds())
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			g := gray(r.At(x, y), lo, hi)
			base.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}

	for y := 0; y < res.Grid.Height; y++ {
		for x := 0; x < res.Grid.Width; x++ {
			p := image.Pt(x, y)
			var c color.RGBA
			switch res.Grid.At(p) {
			case rasterize.Border:
				c = BorderColor
			case rasterize.Main:
				c = MainColor
			case rasterize.Orphan:
				c = OrphanColor
			default:
				continue
			}
			blend(base, p, c)
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, r.Width*opts.Zoom, r.Height*opts.Zoom))
	xdraw.NearestNeighbor.Scale(out, out.Bounds(), base, base.Bounds(), draw.Src, nil)
	return out
}

// Encode writes img as WebP (lossless) or PNG.
func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: true})
	case "png":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("render: unknown format %q", format)
	}
}

// WriteFile encodes img to path, choosing the format from the extension.
func WriteFile(path string, img image.Image) (err error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format != "webp" && format != "png" {
		return fmt.Errorf("render: unknown format %q", format)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return Encode(f, img, format)
}

func gray(v, lo, hi float64) uint8 {
	if !(hi > lo) {
		return 0
	}
	t := (v - lo) / (hi - lo)
	switch {
	case t <= 0 || math.IsNaN(t):
		return 0
	case t >= 1:
		return 255
	}
	return uint8(t*255 + 0.5)
}

// blend mixes c over the pixel at p using c's alpha.
func blend(img *image.RGBA, p image.Point, c color.RGBA) {
	dst := img.RGBAAt(p.X, p.Y)
	a := uint32(c.A)
	mix := func(d, s uint8) uint8 {
		return uint8((uint32(s)*a + uint32(d)*(255-a)) / 255)
	}
	img.SetRGBA(p.X, p.Y, color.RGBA{R: mix(dst.R, c.R), G: mix(dst.G, c.G), B: mix(dst.B, c.B), A: 255})
}
