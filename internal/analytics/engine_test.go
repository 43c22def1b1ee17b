package analytics

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/pricecast/internal/observability/metrics"
	"github.com/inferloop/pricecast/internal/visualization"
	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
)

// writeTestCSV writes four years of month-end prices from Oct 2020 in the
// m/d/yy layout of the sample data.
func writeTestCSV(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Dates,Prices\n")
	for i := 0; i < 48; i++ {
		d := date(2020, time.Month(11+i), 0)
		price := 10 + 0.05*float64(i) + 0.8*math.Cos(2*math.Pi*float64(i+10)/12) + 0.1*math.Sin(float64(i)*1.7)
		fmt.Fprintf(&b, "%d/%d/%02d,%.2f\n", d.Month(), d.Day(), d.Year()%100, price)
	}
	path := filepath.Join(dir, "Nat_Gas.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func newTestEngine(t *testing.T, chartDir string) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	engine, err := NewEngine(&EngineConfig{
		Charts:     &visualization.ChartConfig{OutputDir: chartDir},
		SkipCharts: chartDir == "",
	}, logger)
	require.NoError(t, err)
	return engine
}

func TestEngineRun(t *testing.T) {
	dir := t.TempDir()
	input := writeTestCSV(t, dir)
	chartDir := filepath.Join(dir, "charts")

	result, err := newTestEngine(t, chartDir).Run(context.Background(), input)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 48, result.History.Len())
	assert.Equal(t, date(2020, 10, 31), result.History.Start())
	assert.Equal(t, date(2024, 9, 30), result.History.End())

	require.NotNil(t, result.Forecast)
	assert.Equal(t, 12, result.Forecast.Forecast.Len())
	assert.Equal(t, 60, result.Forecast.Combined.Len())
	assert.Equal(t, date(2025, 9, 30), result.Forecast.Forecast.End())

	require.Len(t, result.Charts, 3)
	for _, name := range []string{"raw_series.png", "seasonality.png", "forecast.png"} {
		info, err := os.Stat(filepath.Join(chartDir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}

	assert.Equal(t, 48, result.Profile.Overall.Count)
	assert.Equal(t, 4, result.Profile.Monthly[0].Count)

	estimates, err := EstimateAll(context.Background(), result.Estimator, constants.DefaultEstimateDates)
	require.NoError(t, err)
	require.Len(t, estimates, 3)
	for _, e := range estimates {
		assert.Equal(t, e.Price, math.Round(e.Price*100)/100)
		assert.Greater(t, e.Price, 0.0)
	}
	assert.Equal(t, date(2023, 7, 15), estimates[0].Date)
}

func TestEngineRunForecastBoundaries(t *testing.T) {
	dir := t.TempDir()
	input := writeTestCSV(t, dir)

	result, err := newTestEngine(t, "").Run(context.Background(), input)
	require.NoError(t, err)

	history := result.History
	lastObserved := history.DataPoints[history.Len()-1]
	price, err := result.Estimator.Estimate(history.End())
	require.NoError(t, err)
	assert.Equal(t, math.Round(lastObserved.Value*100)/100, price)

	firstForecast := result.Forecast.Forecast.DataPoints[0]
	assert.Equal(t, date(2024, 10, 31), firstForecast.Timestamp)
	price, err = result.Estimator.Estimate(firstForecast.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, math.Round(firstForecast.Value*100)/100, price)

	_, err = result.Estimator.Estimate(date(2030, 1, 1))
	require.Error(t, err)
	assert.True(t, errors.IsRangeError(err))
	assert.Contains(t, err.Error(), "2030-01-01")
}

func TestEngineRunWithoutCharts(t *testing.T) {
	dir := t.TempDir()
	input := writeTestCSV(t, dir)

	result, err := newTestEngine(t, "").Run(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, result.Charts)
	assert.NotNil(t, result.Estimator)
}

func TestEngineRunPropagatesLoadErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("Date,Price\n2021-01-31,1\n"), 0o644))

	_, err := newTestEngine(t, "").Run(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingColumn))
}

func TestEngineRunShortHistoryFails(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("Dates,Prices\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "2021-%02d-01,%d\n", i+1, 10+i)
	}
	path := filepath.Join(dir, "short.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	_, err := newTestEngine(t, "").Run(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.IsModelFitError(err))
}

func TestEngineRunCancelled(t *testing.T) {
	dir := t.TempDir()
	input := writeTestCSV(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(t, "").Run(ctx, input)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEstimateAllStopsAtFirstFailure(t *testing.T) {
	estimator, _ := newTestEstimator(t)

	estimates, err := EstimateAll(context.Background(), estimator, []string{"2021-02-14", "1999-01-01", "2021-01-31"})
	require.Error(t, err)
	assert.True(t, errors.IsRangeError(err))
	require.Len(t, estimates, 1)
	assert.Equal(t, 11.5, estimates[0].Price)
	assert.Equal(t, "2021-02-14", estimates[0].Query)
}

func TestEngineRecordsMetrics(t *testing.T) {
	dir := t.TempDir()
	input := writeTestCSV(t, dir)
	promFile := filepath.Join(dir, "pricecast.prom")

	m, err := metrics.NewPrometheusMetrics(&metrics.PrometheusConfig{TextfilePath: promFile}, nil)
	require.NoError(t, err)

	engine := newTestEngine(t, "")
	engine.SetMetrics(m)

	result, err := engine.Run(context.Background(), input)
	require.NoError(t, err)

	_, err = engine.EstimateAll(context.Background(), result.Estimator, []string{"2023-07-15", "2030-01-01"})
	require.Error(t, err)

	_, err = engine.Run(context.Background(), filepath.Join(dir, "missing.csv"))
	require.Error(t, err)

	require.NoError(t, m.WriteTextfile(""))
	content, err := os.ReadFile(promFile)
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, `pricecast_runs_total{status="success"} 1`)
	assert.Contains(t, text, `pricecast_runs_total{status="error"} 1`)
	assert.Contains(t, text, `pricecast_estimates_total{status="success"} 1`)
	assert.Contains(t, text, `pricecast_estimates_total{status="error"} 1`)
	assert.Contains(t, text, "pricecast_observations 48")
	assert.Contains(t, text, "pricecast_forecast_points 12")
	assert.Contains(t, text, `pricecast_stage_duration_seconds_count{stage="forecast"} 1`)
	assert.Contains(t, text, `pricecast_stage_duration_seconds_count{stage="load"} 2`)
}
