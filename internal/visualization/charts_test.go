package visualization

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/pricecast/pkg/errors"
	"github.com/inferloop/pricecast/pkg/models"
)

func testSeries(t *testing.T, n int) *models.TimeSeries {
	t.Helper()
	timestamps := make([]time.Time, n)
	values := make([]float64, n)
	for i := range timestamps {
		timestamps[i] = time.Date(2020, time.Month(11+i), 0, 0, 0, 0, 0, time.UTC)
		values[i] = 10 + float64(i%12)/4
	}
	series, err := models.NewTimeSeries("natgas", timestamps, values)
	require.NoError(t, err)
	return series
}

func testRenderer(t *testing.T, format string) (*Renderer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "charts")
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	r, err := NewRenderer(&ChartConfig{OutputDir: dir, Format: format}, logger)
	require.NoError(t, err)
	return r, dir
}

func assertNonEmptyFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRenderSeries(t *testing.T) {
	r, dir := testRenderer(t, "")
	series := testSeries(t, 48)
	original := series.Copy()

	path, err := r.RenderSeries(series)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "raw_series.png"), path)
	assertNonEmptyFile(t, path)
	assert.Equal(t, original, series)
}

func TestRenderSeasonality(t *testing.T) {
	r, dir := testRenderer(t, "svg")
	series := testSeries(t, 48)
	original := series.Copy()

	path, err := r.RenderSeasonality(series)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "seasonality.svg"), path)
	assertNonEmptyFile(t, path)
	assert.Equal(t, original, series)
}

func TestRenderSeasonalityWithMissingMonths(t *testing.T) {
	r, _ := testRenderer(t, "png")

	path, err := r.RenderSeasonality(testSeries(t, 5))
	require.NoError(t, err)
	assertNonEmptyFile(t, path)
}

func TestRenderForecast(t *testing.T) {
	r, dir := testRenderer(t, ".PNG")
	series := testSeries(t, 60)
	original := series.Copy()

	path, err := r.RenderForecast(series, series.DataPoints[47].Timestamp, 12)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "forecast.png"), path)
	assertNonEmptyFile(t, path)
	assert.Equal(t, original, series)
}

func TestRenderEmptySeries(t *testing.T) {
	r, _ := testRenderer(t, "png")

	_, err := r.RenderSeries(&models.TimeSeries{})
	assert.True(t, errors.Is(err, errors.ErrEmptySeries))

	_, err = r.RenderForecast(nil, time.Now(), 12)
	assert.Error(t, err)
}

func TestNewRendererRejectsUnknownFormat(t *testing.T) {
	_, err := NewRenderer(&ChartConfig{Format: "gif"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
}

func TestGroupByMonth(t *testing.T) {
	groups := GroupByMonth(testSeries(t, 14))

	// Oct 2020 through Nov 2021
	assert.Len(t, groups[9], 2)
	assert.Len(t, groups[10], 2)
	assert.Len(t, groups[0], 1)
	assert.Equal(t, []float64{10, 10}, groups[9])
	assert.Equal(t, []float64{10.25, 10.25}, groups[10])
}
