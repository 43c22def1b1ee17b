package analytics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/pricecast/pkg/errors"
	"github.com/inferloop/pricecast/pkg/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestEstimator(t *testing.T) (*Estimator, *models.TimeSeries) {
	t.Helper()
	series, err := models.NewTimeSeries("natgas",
		[]time.Time{date(2020, 10, 31), date(2020, 11, 30), date(2020, 12, 31), date(2021, 1, 31), date(2021, 2, 28)},
		[]float64{10.0, 10.1, 12.4, 11.0, 12.0})
	require.NoError(t, err)

	estimator, err := NewEstimator(series)
	require.NoError(t, err)
	return estimator, series
}

func TestEstimateExactMatch(t *testing.T) {
	estimator, _ := newTestEstimator(t)

	price, err := estimator.Estimate(date(2020, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, 12.4, price)
}

func TestEstimateBoundariesAreInclusive(t *testing.T) {
	estimator, _ := newTestEstimator(t)

	first, err := estimator.Estimate(date(2020, 10, 31))
	require.NoError(t, err)
	assert.Equal(t, 10.0, first)

	last, err := estimator.Estimate(date(2021, 2, 28))
	require.NoError(t, err)
	assert.Equal(t, 12.0, last)
}

func TestEstimateIsTimeWeighted(t *testing.T) {
	estimator, _ := newTestEstimator(t)

	// 14 of the 28 days between Jan 31 and Feb 28.
	price, err := estimator.Estimate(date(2021, 2, 14))
	require.NoError(t, err)
	assert.Equal(t, 11.5, price)

	// 10 of the 30 days between Oct 31 and Nov 30: 10 + 0.1/3 rounds to 10.03.
	price, err = estimator.Estimate(date(2020, 11, 10))
	require.NoError(t, err)
	assert.Equal(t, 10.03, price)

	// 1 of the 31 days between Dec 31 and Jan 31, not a midpoint between indexes.
	price, err = estimator.Estimate(date(2021, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 12.35, price)
}

func TestEstimateTruncatesTimeOfDay(t *testing.T) {
	estimator, _ := newTestEstimator(t)

	price, err := estimator.Estimate(time.Date(2020, 12, 31, 18, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 12.4, price)
}

func TestEstimateOutOfRange(t *testing.T) {
	estimator, _ := newTestEstimator(t)

	_, err := estimator.Estimate(date(2020, 10, 30))
	require.Error(t, err)
	assert.True(t, errors.IsRangeError(err))
	assert.True(t, errors.Is(err, errors.ErrDateOutOfRange))
	assert.Contains(t, err.Error(), "Date out of range: 2020-10-30")

	_, err = estimator.EstimateString("2030-01-15")
	require.Error(t, err)
	assert.True(t, errors.IsRangeError(err))
	assert.Contains(t, err.Error(), "2030-01-15")
}

func TestEstimateStringParses(t *testing.T) {
	estimator, _ := newTestEstimator(t)

	price, err := estimator.EstimateString("2/14/2021")
	require.NoError(t, err)
	assert.Equal(t, 11.5, price)

	_, err = estimator.EstimateString("mid-February")
	require.Error(t, err)
	assert.True(t, errors.IsParseError(err))
}

func TestEstimatorCustomLayouts(t *testing.T) {
	_, series := newTestEstimator(t)
	estimator, err := NewEstimator(series, WithDateLayouts([]string{"02.01.2006"}), WithLogger(nil))
	require.NoError(t, err)

	price, err := estimator.EstimateString("14.02.2021")
	require.NoError(t, err)
	assert.Equal(t, 11.5, price)
}

func TestEstimatorIsolatedFromCaller(t *testing.T) {
	estimator, series := newTestEstimator(t)

	series.DataPoints[2].Value = 99
	price, err := estimator.Estimate(date(2020, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, 12.4, price)

	start, end := estimator.Range()
	assert.Equal(t, date(2020, 10, 31), start)
	assert.Equal(t, date(2021, 2, 28), end)
}

func TestEstimatorConcurrentUse(t *testing.T) {
	estimator, _ := newTestEstimator(t)

	var wg sync.WaitGroup
	results := make([]float64, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			price, err := estimator.Estimate(date(2021, 2, 14))
			if err == nil {
				results[i] = price
			}
		}(i)
	}
	wg.Wait()

	for _, price := range results {
		assert.Equal(t, 11.5, price)
	}
}

func TestNewEstimatorRejectsInvalidSeries(t *testing.T) {
	_, err := NewEstimator(nil)
	assert.True(t, errors.Is(err, errors.ErrEmptySeries))

	_, err = NewEstimator(&models.TimeSeries{})
	assert.True(t, errors.Is(err, errors.ErrEmptySeries))

	dup, err := models.NewTimeSeries("x", []time.Time{date(2021, 1, 31), date(2021, 1, 31)}, []float64{1, 2})
	require.NoError(t, err)
	_, err = NewEstimator(dup)
	assert.True(t, errors.Is(err, errors.ErrDuplicateDate))
}

func TestSinglePointEstimator(t *testing.T) {
	series, err := models.NewTimeSeries("x", []time.Time{date(2021, 1, 31)}, []float64{3.14159})
	require.NoError(t, err)
	estimator, err := NewEstimator(series)
	require.NoError(t, err)

	price, err := estimator.Estimate(date(2021, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, 3.14, price)

	_, err = estimator.Estimate(date(2021, 2, 1))
	assert.True(t, errors.IsRangeError(err))
}
