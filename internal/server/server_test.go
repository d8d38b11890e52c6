package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woozymasta/radiance/internal/config"
	"github.com/woozymasta/radiance/internal/geo"
	"github.com/woozymasta/radiance/internal/report"
	"github.com/woozymasta/radiance/internal/stats"
)

const boundariesJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"NOMGEO":"Iztapalapa"},"geometry":{"type":"Polygon","coordinates":[[[-99.1,19.3],[-99.0,19.3],[-99.0,19.4],[-99.1,19.4],[-99.1,19.3]]]}},
{"type":"Feature","properties":{"NOMGEO":"Álvaro Obregón"},"geometry":{"type":"Polygon","coordinates":[[[-99.3,19.3],[-99.2,19.3],[-99.2,19.4],[-99.3,19.4],[-99.3,19.3]]]}}
]}`

func row(t *testing.T, name string, day int, values ...float64) report.Row {
	t.Helper()
	m, err := stats.Compute(stats.Date{Year: 2024, Month: time.February, Day: day}, len(values), values)
	require.NoError(t, err)
	return report.Row{Municipality: name, Quadrant: "h08v07", Measurement: m}
}

func setup(t *testing.T) (*ServerContext, http.Handler) {
	t.Helper()
	dir := t.TempDir()

	boundaries := filepath.Join(dir, "municipios.geojson")
	require.NoError(t, os.WriteFile(boundaries, []byte(boundariesJSON), 0644))

	cfg, err := config.Parse([]byte("boundaries: {path: " + boundaries + "}\noutput_dir: " + filepath.Join(dir, "out") + "\n"))
	require.NoError(t, err)

	rows := []report.Row{
		row(t, "Iztapalapa", 1, 1, 2, 3),
		row(t, "Iztapalapa", 2, 4, 5),
		row(t, "Iztapalapa", 3, 6),
		row(t, "Álvaro Obregón", 1, 7, 8),
	}
	require.NoError(t, report.WriteFile(cfg.MeasurementsPath(), rows))

	overlay := filepath.Join(cfg.OverlayDir(), "2024-02-01", "iztapalapa.webp")
	require.NoError(t, os.MkdirAll(filepath.Dir(overlay), 0755))
	require.NoError(t, os.WriteFile(overlay, []byte("RIFF....WEBP"), 0644))

	ms, err := geo.LoadBoundaries(boundaries, cfg.Boundaries.NameProperty)
	require.NoError(t, err)

	s := NewServerContext(cfg, ms)
	return s, s.Handler()
}

func get(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMunicipalities(t *testing.T) {
	_, h := setup(t)

	rec := get(t, h, "/api/municipalities")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Reference      geo.Point `json:"reference"`
		Municipalities []struct {
			Name     string `json:"name"`
			Slug     string `json:"slug"`
			Quadrant string `json:"quadrant"`
		} `json:"municipalities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Len(t, body.Municipalities, 2)
	assert.Equal(t, "alvaro_obregon", body.Municipalities[0].Slug)
	assert.Equal(t, "Álvaro Obregón", body.Municipalities[0].Name)
	assert.Equal(t, "h08v07", body.Municipalities[1].Quadrant)
	assert.InDelta(t, -99.15, body.Reference.Lon, 1e-9)
}

func TestMeasurements(t *testing.T) {
	_, h := setup(t)

	rec := get(t, h, "/api/measurements")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []report.Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 4)

	rec = get(t, h, "/api/measurements?municipality=iztapalapa&from=2024-02-02&to=03-02-24")
	require.Equal(t, http.StatusOK, rec.Code)
	var some []report.Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &some))
	require.Len(t, some, 2)
	assert.Equal(t, "2024-02-02", some[0].Date.String())
	assert.Equal(t, 2, some[0].PixelCount)
	assert.InDelta(t, 4.5, some[0].Mean, 1e-12)

	rec = get(t, h, "/api/measurements?municipality=alvaro_obregon&format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	back, err := report.ReadCSV(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, "Álvaro Obregón", back[0].Municipality)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/measurements?municipality=coyoacan").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/measurements?from=yesterday").Code)
}

func TestMeasurements_NoFile(t *testing.T) {
	s, h := setup(t)
	require.NoError(t, os.Remove(s.Config.MeasurementsPath()))

	rec := get(t, h, "/api/measurements")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestOverlay(t *testing.T) {
	_, h := setup(t)

	rec := get(t, h, "/overlays/2024-02-01/iztapalapa.webp")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, http.StatusNotModified, get(t, h, "/overlays/2024-02-01/iztapalapa.webp", "If-None-Match", etag).Code)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/overlays/2024-02-02/iztapalapa.webp").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/overlays/2024-02-01/coyoacan.webp").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/overlays/latest/iztapalapa.webp").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/overlays/2024-02-01/iztapalapa.png").Code)
}

func TestBoundaries(t *testing.T) {
	_, h := setup(t)

	rec := get(t, h, "/api/boundaries.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Iztapalapa")
}
