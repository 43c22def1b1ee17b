package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "Nat_Gas.csv", config.Input.Path)
	assert.Equal(t, constants.DefaultDateColumn, config.Input.DateColumn)
	assert.Equal(t, constants.DefaultPriceColumn, config.Input.PriceColumn)
	assert.Equal(t, constants.DefaultDateLayouts, config.Input.DateLayouts)
	assert.Equal(t, 12, config.Forecast.Horizon)
	assert.Equal(t, 1, config.Forecast.Order.P)
	assert.Equal(t, 1, config.Forecast.Order.D)
	assert.Equal(t, 1, config.Forecast.Order.Q)
	assert.Equal(t, 12, config.Forecast.Decomposition.Period)
	assert.True(t, config.Charts.Enabled)
	assert.Equal(t, "png", config.Charts.Format)
	assert.Equal(t, constants.DefaultEstimateDates, config.Estimate.Dates)
	assert.Equal(t, "text", config.Output.Format)
	assert.Equal(t, int32(2), config.Output.Precision)
	assert.Equal(t, "info", config.Log.Level)
	assert.False(t, config.Metrics.Enabled)
	assert.Equal(t, "pricecast", config.Metrics.Namespace)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
input:
  path: data/prices.csv
  date_column: Month
forecast:
  horizon: 6
  order:
    p: 2
charts:
  enabled: false
  commodity: Brent Crude
estimate:
  dates: ["2024-01-15"]
log:
  level: debug
  format: json
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "data/prices.csv", config.Input.Path)
	assert.Equal(t, "Month", config.Input.DateColumn)
	assert.Equal(t, constants.DefaultPriceColumn, config.Input.PriceColumn)
	assert.Equal(t, 6, config.Forecast.Horizon)
	assert.Equal(t, 2, config.Forecast.Order.P)
	assert.Equal(t, 1, config.Forecast.Order.Q)
	assert.False(t, config.Charts.Enabled)
	assert.Equal(t, "Brent Crude", config.Charts.Commodity)
	assert.Equal(t, []string{"2024-01-15"}, config.Estimate.Dates)
	assert.Equal(t, "json", config.Log.Format)

	engine := config.EngineConfig()
	assert.True(t, engine.SkipCharts)
	assert.Equal(t, "Month", engine.Storage.DateColumn)
	assert.Equal(t, 6, engine.Forecast.Horizon)
	assert.Equal(t, "Brent Crude", engine.Charts.Commodity)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "forecast:\n  horizon: 6\n")
	t.Setenv("PRICECAST_FORECAST_HORIZON", "24")
	t.Setenv("PRICECAST_INPUT_PATH", "/tmp/other.csv")
	t.Setenv("PRICECAST_METRICS_TEXTFILE_PATH", "/tmp/pricecast.prom")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 24, config.Forecast.Horizon)
	assert.Equal(t, "/tmp/other.csv", config.Input.Path)
	assert.Equal(t, "/tmp/pricecast.prom", config.Metrics.TextfilePath)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
}

func TestLoadConfigRejectsUnknownFormats(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "log:\n  format: xml\n"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))

	_, err = LoadConfig(writeConfig(t, "output:\n  format: parquet\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parquet")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	config, err := DefaultConfig()
	require.NoError(t, err)
	config.Forecast.Horizon = 18
	config.Charts.Commodity = "Heating Oil"
	config.Estimate.Dates = []string{"2024-02-29"}

	path, err := SaveConfig(config, filepath.Join(t.TempDir(), "nested", "pricecast.yaml"))
	require.NoError(t, err)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}
