// Package report writes and reads measurement tables.
package report

import (
	"cmp"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"
	"gopkg.in/yaml.v3"

	"github.com/woozymasta/radiance/internal/geo"
	"github.com/woozymasta/radiance/internal/stats"
)

// Row is one measurement of one municipality.
type Row struct {
	Municipality string `json:"municipality" yaml:"municipality" csv:"municipality"`
	Quadrant     string `json:"quadrant" yaml:"quadrant" csv:"quadrant"`

	stats.Measurement `yaml:",inline"`
}

// Orphans is the number of pixels recovered outside the centroid region.
func (r Row) Orphans() int {
	return r.PixelCount - r.MainPixelCount
}

// Sort orders rows by municipality then date.
func Sort(rows []Row) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		if c := cmp.Compare(a.Municipality, b.Municipality); c != 0 {
			return c
		}
		return cmp.Compare(a.Date.String(), b.Date.String())
	})
}

// Merge returns old with every row of fresh applied on top, keyed by
// municipality and date. The result is sorted.
func Merge(old, fresh []Row) []Row {
	type key struct {
		name string
		date stats.Date
	}

	index := make(map[key]int, len(old)+len(fresh))
	out := make([]Row, 0, len(old)+len(fresh))
	for _, rows := range [][]Row{old, fresh} {
		for _, r := range rows {
			k := key{r.Municipality, r.Date}
			if i, ok := index[k]; ok {
				out[i] = r
				continue
			}
			index[k] = len(out)
			out = append(out, r)
		}
	}

	Sort(out)
	return out
}

// Filter returns the rows of the named municipality, matched like
// geo.Find.
func Filter(rows []Row, municipality string) []Row {
	key := geo.NormalizeName(municipality)

	var out []Row
	for _, r := range rows {
		if geo.NormalizeName(r.Municipality) == key {
			out = append(out, r)
		}
	}
	return out
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if len(rows) == 0 {
		if err := enc.EncodeHeader(Row{}); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("report: %s %s: %w", r.Municipality, r.Date, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV and validates every row.
func ReadCSV(r io.Reader) ([]Row, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("report: header: %w", err)
	}

	var rows []Row
	for line := 2; ; line++ {
		var row Row
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("report: line %d: %w", line, err)
		}
		if err := row.Validate(); err != nil {
			return nil, fmt.Errorf("report: line %d: %w", line, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// WriteJSON writes rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteYAML writes rows as a YAML sequence.
func WriteYAML(w io.Writer, rows []Row) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return err
	}
	return enc.Close()
}

// WriteFile writes rows to path in the format given by its extension
// (.csv, .json, .yaml or .yml).
func WriteFile(path string, rows []Row) (err error) {
	var write func(io.Writer, []Row) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".json":
		write = WriteJSON
	case ".yaml", ".yml":
		write = WriteYAML
	default:
		return fmt.Errorf("report: unknown format %q", filepath.Ext(path))
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

	return write(f, rows)
}

// ReadFile reads a CSV table from path.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(f)
}
