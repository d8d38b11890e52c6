package stats

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = Date{Year: 2024, Month: time.January, Day: 1}

func TestCompute_KnownValues(t *testing.T) {
	m, err := Compute(day, 3, []float64{5, 1, 4, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, day, m.Date)
	assert.Equal(t, 5, m.PixelCount)
	assert.Equal(t, 3, m.MainPixelCount)
	assert.Equal(t, 15.0, m.Sum)
	assert.InDelta(t, 3.0, m.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt2, m.StdDev, 1e-12)
	assert.Equal(t, 1.0, m.Min)
	assert.Equal(t, 5.0, m.Max)
	assert.InDelta(t, 2.0, m.P25, 1e-12)
	assert.InDelta(t, 3.0, m.P50, 1e-12)
	assert.InDelta(t, 4.0, m.P75, 1e-12)
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	_, err := Compute(day, 3, values)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestCompute_Errors(t *testing.T) {
	_, err := Compute(day, 0, nil)
	assert.ErrorIs(t, err, ErrEmptyPixelSet)

	_, err = Compute(day, 4, []float64{1, 2})
	assert.Error(t, err)
}

func TestPercentile_Interpolates(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	assert.InDelta(t, 17.5, Percentile(sorted, 25), 1e-12)
	assert.InDelta(t, 25.0, Percentile(sorted, 50), 1e-12)
	assert.InDelta(t, 32.5, Percentile(sorted, 75), 1e-12)
	assert.Equal(t, 10.0, Percentile(sorted, 0))
	assert.Equal(t, 40.0, Percentile(sorted, 100))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 50))
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
}

func TestValidate(t *testing.T) {
	m, err := Compute(day, 1, []float64{1, 2})
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	bad := m
	bad.Mean = math.NaN()
	assert.Error(t, bad.Validate())

	bad = m
	bad.P50 = 10
	assert.Error(t, bad.Validate())

	bad = m
	bad.PixelCount = 0
	assert.ErrorIs(t, bad.Validate(), ErrEmptyPixelSet)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("01-02-24")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.February, Day: 1}, d)
	assert.Equal(t, 32, d.DayOfYear())

	d, err = ParseDate("2024-12-31")
	require.NoError(t, err)
	assert.Equal(t, 366, d.DayOfYear())
	assert.Equal(t, "2024-12-31", d.String())

	_, err = ParseDate("31/12/2024")
	assert.Error(t, err)
}

func TestDateRange(t *testing.T) {
	first := Date{Year: 2024, Month: time.February, Day: 28}
	last := Date{Year: 2024, Month: time.March, Day: 1}

	got := DateRange(first, last)
	require.Len(t, got, 3)
	assert.Equal(t, 29, got[1].Day)

	assert.Empty(t, DateRange(last, first))
}

func TestMeasurement_JSON(t *testing.T) {
	m, err := Compute(day, 1, []float64{1})
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"date":"2024-01-01"`)
}
