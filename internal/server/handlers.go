// Package server serves measurement results over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/radiance/internal/geo"
	"github.com/woozymasta/radiance/internal/report"
	"github.com/woozymasta/radiance/internal/stats"
)

const etagCap = 64

// HandleMunicipalities serves the boundary summaries.
func (s *ServerContext) HandleMunicipalities(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(struct {
		Reference      geo.Point      `json:"reference"`
		Municipalities []Municipality `json:"municipalities"`
	}{s.Reference, s.Municipalities})
}

// HandleMeasurements serves measurement rows, optionally narrowed with the
// municipality, from and to query parameters. format=csv switches the
// response to CSV.
func (s *ServerContext) HandleMeasurements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var from, to stats.Date
	for _, p := range []struct {
		key string
		dst *stats.Date
	}{{"from", &from}, {"to", &to}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		d, err := stats.ParseDate(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*p.dst = d
	}

	rows, err := report.ReadFile(s.Config.MeasurementsPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error().Err(err).Str("path", s.Config.MeasurementsPath()).Msg("Failed to read measurements")
		http.Error(w, "measurements unavailable", http.StatusInternalServerError)
		return
	}

	if name := q.Get("municipality"); name != "" {
		real, ok := s.resolve(name)
		if !ok {
			http.NotFound(w, r)
			return
		}
		rows = report.Filter(rows, real)
	}

	out := make([]report.Row, 0, len(rows))
	for _, row := range rows {
		if !from.IsZero() && row.Date.Before(from) {
			continue
		}
		if !to.IsZero() && to.Before(row.Date) {
			continue
		}
		out = append(out, row)
	}

	if q.Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_ = report.WriteCSV(w, out)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = report.WriteJSON(w, out)
}

// HandleBoundaries serves the boundary GeoJSON file.
func (s *ServerContext) HandleBoundaries(w http.ResponseWriter, r *http.Request) {
	if !s.serveFile(w, r, s.Config.Boundaries.Path, "application/geo+json") {
		http.NotFound(w, r)
	}
}

// HandleOverlay serves /overlays/{date}/{slug}.webp images.
func (s *ServerContext) HandleOverlay(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		http.NotFound(w, r)
		return
	}

	// allow only known dates and municipalities to prevent path probing
	date, err := stats.ParseDate(parts[1])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	slug, ok := strings.CutSuffix(parts[2], ".webp")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, ok := s.NameResolver[slug]; !ok {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(s.Config.OverlayDir(), date.String(), slug+".webp")
	if !s.serveFile(w, r, path, "image/webp") {
		http.NotFound(w, r)
	}
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, path)
	return true
}
