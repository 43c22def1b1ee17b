package arima

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/pricecast/pkg/errors"
	"github.com/inferloop/pricecast/pkg/models"
)

func monthEndSeries(t *testing.T, n int) *models.TimeSeries {
	t.Helper()
	values, _ := seasonalSeries(n, 0.4, 21)
	timestamps := make([]time.Time, n)
	for i := range timestamps {
		timestamps[i] = time.Date(2020, time.Month(11+i), 0, 0, 0, 0, 0, time.UTC)
	}
	series, err := models.NewTimeSeries("natgas", timestamps, values)
	require.NoError(t, err)
	return series
}

func TestForecasterExtendsHistory(t *testing.T) {
	history := monthEndSeries(t, 48)
	original := history.Copy()

	forecaster, err := NewForecaster(nil, quietLogger())
	require.NoError(t, err)

	result, err := forecaster.Forecast(context.Background(), history)
	require.NoError(t, err)

	assert.Equal(t, original, history)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "month_end", result.Frequency)
	assert.False(t, result.FrequencyIrregular)

	require.Equal(t, 12, result.Forecast.Len())
	assert.Equal(t, 60, result.Combined.Len())
	assert.Equal(t, history.End(), result.ForecastStart())

	first := result.Forecast.DataPoints[0].Timestamp
	assert.Equal(t, time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC), first)
	assert.True(t, first.After(history.End()))
	assert.Equal(t, time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC), result.Forecast.End())
	assert.NoError(t, result.Combined.Validate())

	for i, dp := range result.Forecast.DataPoints {
		assert.False(t, math.IsNaN(dp.Value))
		assert.LessOrEqual(t, result.Intervals.Lower[i], dp.Value)
		assert.GreaterOrEqual(t, result.Intervals.Upper[i], dp.Value)
	}

	require.NotNil(t, result.Summary)
	assert.Equal(t, DefaultOrder(), result.Summary.Order)
	assert.Len(t, result.Decomposition.Seasonal, 48)
}

func TestForecasterHonoursSeasonality(t *testing.T) {
	history := monthEndSeries(t, 60)

	forecaster, err := NewForecaster(nil, quietLogger())
	require.NoError(t, err)
	result, err := forecaster.Forecast(context.Background(), history)
	require.NoError(t, err)

	// Steps 3 and 9 fall on the peak and trough of the seasonal sine.
	peak := result.Forecast.DataPoints[3].Value
	trough := result.Forecast.DataPoints[9].Value
	assert.Greater(t, peak, trough)
}

func TestForecasterCustomHorizonAndFrequency(t *testing.T) {
	history := monthEndSeries(t, 36)

	config := DefaultForecasterConfig()
	config.Horizon = 3
	config.Frequency = "monthly:15"
	forecaster, err := NewForecaster(config, quietLogger())
	require.NoError(t, err)

	result, err := forecaster.Forecast(context.Background(), history)
	require.NoError(t, err)
	require.Equal(t, 3, result.Forecast.Len())
	assert.Equal(t, time.Date(2023, 10, 15, 0, 0, 0, 0, time.UTC), result.Forecast.DataPoints[0].Timestamp)
}

func TestForecasterFlagsIrregularSpacing(t *testing.T) {
	history := monthEndSeries(t, 36)
	history.DataPoints[10].Timestamp = history.DataPoints[10].Timestamp.AddDate(0, 0, -3)

	forecaster, err := NewForecaster(nil, quietLogger())
	require.NoError(t, err)

	result, err := forecaster.Forecast(context.Background(), history)
	require.NoError(t, err)
	assert.True(t, result.FrequencyIrregular)
	assert.Equal(t, "month_end", result.Frequency)
}

func TestForecasterInsufficientHistory(t *testing.T) {
	history := monthEndSeries(t, 20)

	forecaster, err := NewForecaster(nil, quietLogger())
	require.NoError(t, err)

	_, err = forecaster.Forecast(context.Background(), history)
	require.Error(t, err)
	assert.True(t, errors.IsModelFitError(err))
	assert.True(t, errors.Is(err, errors.ErrInsufficientData))
}

func TestForecasterCancelled(t *testing.T) {
	history := monthEndSeries(t, 36)
	forecaster, err := NewForecaster(nil, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = forecaster.Forecast(ctx, history)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewForecasterValidation(t *testing.T) {
	_, err := NewForecaster(&ForecasterConfig{Horizon: 0, Order: DefaultOrder()}, nil)
	assert.Error(t, err)

	_, err = NewForecaster(&ForecasterConfig{Horizon: 12, Order: Order{P: 9}}, nil)
	assert.Error(t, err)

	_, err = NewForecaster(&ForecasterConfig{Horizon: 12, Order: DefaultOrder(), Frequency: "weekly"}, nil)
	assert.Error(t, err)

	_, err = NewForecaster(nil, nil)
	assert.NoError(t, err)
}
