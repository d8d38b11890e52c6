package raster

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrMetadata is returned when tile geolocation corners cannot be extracted.
var ErrMetadata = errors.New("raster: malformed geolocation metadata")

// metadataUnits converts HDF-EOS grid "meters" of geographic products
// (micro-degrees) to degrees.
const metadataUnits = 1_000_000

var (
	upperLeftRe  = regexp.MustCompile(`UpperLeftPointMtrs=\(\s*([-+\d.eE]+)\s*,\s*([-+\d.eE]+)\s*\)`)
	lowerRightRe = regexp.MustCompile(`LowerRightMtrs=\(\s*([-+\d.eE]+)\s*,\s*([-+\d.eE]+)\s*\)`)
)

// Corners are the geolocation anchors of a tile.
type Corners struct {
	UpperLeft  Coord `yaml:"upper_left" json:"upper_left"`
	LowerRight Coord `yaml:"lower_right" json:"lower_right"`
}

// Valid reports whether the corners span a non-empty rectangle.
func (c Corners) Valid() bool {
	return c.LowerRight.X > c.UpperLeft.X && c.UpperLeft.Y > c.LowerRight.Y
}

// ParseStructMetadata extracts the grid corners from an HDF-EOS
// StructMetadata dump.
func ParseStructMetadata(text string) (Corners, error) {
	ul, err := matchPair(upperLeftRe, text)
	if err != nil {
		return Corners{}, fmt.Errorf("%w: upper-left: %v", ErrMetadata, err)
	}
	lr, err := matchPair(lowerRightRe, text)
	if err != nil {
		return Corners{}, fmt.Errorf("%w: lower-right: %v", ErrMetadata, err)
	}

	c := Corners{UpperLeft: ul, LowerRight: lr}
	if !c.Valid() {
		return Corners{}, fmt.Errorf("%w: degenerate extent %+v", ErrMetadata, c)
	}
	return c, nil
}

func matchPair(re *regexp.Regexp, text string) (Coord, error) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return Coord{}, errors.New("not found")
	}

	x, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Coord{}, err
	}
	y, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Coord{}, err
	}

	return Coord{X: x / metadataUnits, Y: y / metadataUnits}, nil
}

// ReadSidecar looks for corner metadata next to a tile file: first
// "<path>.meta" holding a StructMetadata dump, then "<path>.yaml" with
// explicit corners. found is false when neither file exists.
func ReadSidecar(path string) (c Corners, found bool, err error) {
	if data, err := os.ReadFile(path + ".meta"); err == nil {
		c, err := ParseStructMetadata(string(data))
		return c, true, err
	} else if !errors.Is(err, os.ErrNotExist) {
		return Corners{}, false, err
	}

	data, err := os.ReadFile(path + ".yaml")
	if errors.Is(err, os.ErrNotExist) {
		return Corners{}, false, nil
	}
	if err != nil {
		return Corners{}, false, err
	}

	if err := yaml.Unmarshal(data, &c); err != nil {
		return Corners{}, true, fmt.Errorf("%w: %v", ErrMetadata, err)
	}
	if !c.Valid() {
		return Corners{}, true, fmt.Errorf("%w: degenerate extent %+v", ErrMetadata, c)
	}
	return c, true, nil
}
