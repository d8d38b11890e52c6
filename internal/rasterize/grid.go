package rasterize

import (
	"errors"
	"image"
)

var (
	// ErrSeedOutside is returned when a fill seed lies outside the grid or
	// in the exterior region.
	ErrSeedOutside = errors.New("rasterize: seed outside polygon")

	// ErrSeedOnBorder is returned when a fill seed is a border pixel.
	ErrSeedOnBorder = errors.New("rasterize: seed on border")
)

// Label classifies a pixel of the crop.
type Label uint8

// Pixel classes.
const (
	Unvisited Label = iota
	Border
	Main
	Exterior
	Orphan
)

var labelNames = [...]string{"unvisited", "border", "main", "exterior", "orphan"}

func (l Label) String() string {
	if int(l) < len(labelNames) {
		return labelNames[l]
	}
	return "unknown"
}

// up, down, left, right
var fourNeighbours = [4]image.Point{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}

// Grid holds the classification of every crop pixel.
type Grid struct {
	labels []Label
	Width  int
	Height int
}

// NewGrid returns a grid with the in-bounds pixels of border labeled Border
// and everything else Unvisited.
func NewGrid(width, height int, border *BorderSet) *Grid {
	g := &Grid{Width: width, Height: height, labels: make([]Label, width*height)}
	if border != nil {
		for _, p := range border.Pixels {
			if g.In(p) {
				g.set(p, Border)
			}
		}
	}
	return g
}

// In reports whether p lies inside the grid.
func (g *Grid) In(p image.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.Width && p.Y < g.Height
}

// At returns the label of p; pixels outside the grid are Exterior.
func (g *Grid) At(p image.Point) Label {
	if !g.In(p) {
		return Exterior
	}
	return g.labels[p.Y*g.Width+p.X]
}

func (g *Grid) set(p image.Point, l Label) {
	g.labels[p.Y*g.Width+p.X] = l
}

// Count returns how many pixels carry label l.
func (g *Grid) Count(l Label) int {
	n := 0
	for _, v := range g.labels {
		if v == l {
			n++
		}
	}
	return n
}

// Fill labels Main every pixel 4-connected to seed without crossing a
// labeled pixel, and returns them in breadth-first order starting with seed.
func (g *Grid) Fill(seed image.Point) ([]image.Point, error) {
	switch g.At(seed) {
	case Unvisited:
	case Border:
		return nil, ErrSeedOnBorder
	default:
		return nil, ErrSeedOutside
	}

	return g.flood([]image.Point{seed}, Main), nil
}

// FloodExterior labels Exterior everything 4-connected to the frame pixels
// of the given sides, or to extra, without crossing a labeled pixel, and
// returns the number of pixels labeled.
func (g *Grid) FloodExterior(sides Sides, extra ...image.Point) int {
	return len(g.flood(append(g.frame(sides), extra...), Exterior))
}

// Orphans labels every remaining unvisited pixel Orphan and returns them in
// row-major order. Call it after Fill and FloodExterior.
func (g *Grid) Orphans() []image.Point {
	var out []image.Point
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			p := image.Pt(x, y)
			if g.At(p) == Unvisited {
				g.set(p, Orphan)
				out = append(out, p)
			}
		}
	}
	return out
}

// Touches reports whether any frame pixel on the given sides, or any pixel
// of extra, carries l.
func (g *Grid) Touches(l Label, sides Sides, extra ...image.Point) bool {
	for _, p := range append(g.frame(sides), extra...) {
		if g.In(p) && g.At(p) == l {
			return true
		}
	}
	return false
}

// Reset relabels every pixel carrying l as Unvisited.
func (g *Grid) Reset(l Label) {
	for i, v := range g.labels {
		if v == l {
			g.labels[i] = Unvisited
		}
	}
}

// frame lists the edge pixels of the selected sides: top row, bottom row,
// left column, right column. Corners may repeat.
func (g *Grid) frame(sides Sides) []image.Point {
	if g.Width == 0 || g.Height == 0 {
		return nil
	}

	var out []image.Point
	if sides.Top {
		for x := 0; x < g.Width; x++ {
			out = append(out, image.Pt(x, 0))
		}
	}
	if sides.Bottom {
		for x := 0; x < g.Width; x++ {
			out = append(out, image.Pt(x, g.Height-1))
		}
	}
	if sides.Left {
		for y := 0; y < g.Height; y++ {
			out = append(out, image.Pt(0, y))
		}
	}
	if sides.Right {
		for y := 0; y < g.Height; y++ {
			out = append(out, image.Pt(g.Width-1, y))
		}
	}
	return out
}

// flood is a breadth-first fill over Unvisited pixels. The queue doubles as
// the result.
func (g *Grid) flood(seeds []image.Point, l Label) []image.Point {
	queue := make([]image.Point, 0, len(seeds))
	for _, s := range seeds {
		if g.At(s) == Unvisited {
			g.set(s, l)
			queue = append(queue, s)
		}
	}

	for head := 0; head < len(queue); head++ {
		p := queue[head]
		for _, d := range fourNeighbours {
			q := p.Add(d)
			if g.In(q) && g.At(q) == Unvisited {
				g.set(q, l)
				queue = append(queue, q)
			}
		}
	}

	return queue
}
