package arima

import (
	"math"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/pricecast/pkg/errors"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// integratedAR1 simulates a series whose first differences follow AR(1).
func integratedAR1(n int, phi float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n)
	data[0] = 50
	w := 0.0
	for i := 1; i < n; i++ {
		w = phi*w + rng.NormFloat64()
		data[i] = data[i-1] + w
	}
	return data
}

func TestOrderValidate(t *testing.T) {
	assert.NoError(t, DefaultOrder().Validate())
	assert.Equal(t, "ARIMA(1,1,1)", DefaultOrder().String())

	err := Order{P: 6}.Validate()
	assert.True(t, errors.Is(err, errors.ErrInvalidParameters))
	assert.Error(t, Order{D: 3}.Validate())
	assert.Error(t, Order{Q: -1}.Validate())
}

func TestConstrainStationary(t *testing.T) {
	phi := constrainStationary([]float64{5, -3})
	require.Len(t, phi, 2)

	// AR(2) stationarity triangle
	assert.Less(t, math.Abs(phi[1]), 1.0)
	assert.Less(t, phi[0]+phi[1], 1.0)
	assert.Less(t, phi[1]-phi[0], 1.0)

	x := []float64{0.3, -0.7, 1.2}
	back := unconstrainStationary(constrainStationary(x))
	for i := range x {
		assert.InDelta(t, x[i], back[i], 1e-9)
	}
}

func TestDifferenceAndIntegrate(t *testing.T) {
	data := []float64{1, 4, 9, 16, 25}
	assert.Equal(t, []float64{3, 5, 7, 9}, difference(data, 1))
	assert.Equal(t, []float64{2, 2, 2}, difference(data, 2))

	// Constant second difference continues the squares.
	assert.Equal(t, []float64{36, 49}, integrate(data, []float64{2, 2}, 2))
	assert.Equal(t, []float64{26, 27}, integrate(data, []float64{1, 1}, 1))
	assert.Equal(t, []float64{7}, integrate(data, []float64{7}, 0))
}

func TestIntegratedAR(t *testing.T) {
	assert.Equal(t, []float64{1}, integratedAR(nil, 1))
	assert.InDeltaSlice(t, []float64{1.5, -0.5}, integratedAR([]float64{0.5}, 1), 1e-12)
}

func TestFitRecoversARCoefficient(t *testing.T) {
	data := integratedAR1(400, 0.6, 7)

	model, err := NewModel(Order{P: 1, D: 1, Q: 0}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, model.Fit(data))

	params, err := model.Parameters()
	require.NoError(t, err)
	require.Len(t, params.ARCoefficients, 1)
	assert.InDelta(t, 0.6, params.ARCoefficients[0], 0.15)
	assert.Equal(t, 0.0, params.Intercept)
	assert.InDelta(t, 1.0, params.Sigma2, 0.3)

	summary := model.Summary()
	require.NotNil(t, summary)
	assert.Equal(t, 398, summary.Observations)
	assert.Greater(t, summary.AICc, summary.AIC)
	assert.Greater(t, summary.BIC, summary.AIC)
	require.NotNil(t, summary.LjungBox)
	assert.GreaterOrEqual(t, summary.LjungBox.PValue, 0.0)
	assert.LessOrEqual(t, summary.LjungBox.PValue, 1.0)
}

func TestFitDefaultOrderProducesFiniteForecasts(t *testing.T) {
	data := integratedAR1(120, 0.4, 11)

	model, err := NewModel(DefaultOrder(), quietLogger())
	require.NoError(t, err)
	require.NoError(t, model.Fit(data))

	params, err := model.Parameters()
	require.NoError(t, err)
	assert.Less(t, math.Abs(params.ARCoefficients[0]), 1.0)
	assert.Less(t, math.Abs(params.MACoefficients[0]), 1.0)

	forecast, stderr, err := model.Forecast(12)
	require.NoError(t, err)
	require.Len(t, forecast, 12)
	require.Len(t, stderr, 12)
	assert.True(t, floatsFinite(forecast))
	for i := 1; i < len(stderr); i++ {
		assert.GreaterOrEqual(t, stderr[i], stderr[i-1])
	}
}

func TestRandomWalkForecastIsFlat(t *testing.T) {
	data := integratedAR1(60, 0, 3)

	model, err := NewModel(Order{P: 0, D: 1, Q: 0}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, model.Fit(data))

	forecast, stderr, err := model.Forecast(4)
	require.NoError(t, err)

	sigma := math.Sqrt(model.Summary().Parameters.Sigma2)
	for h, v := range forecast {
		assert.Equal(t, data[len(data)-1], v)
		assert.InDelta(t, sigma*math.Sqrt(float64(h+1)), stderr[h], 1e-9)
	}
}

func TestStationaryModelEstimatesIntercept(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	data := make([]float64, 300)
	for i := range data {
		data[i] = 20 + rng.NormFloat64()
	}

	model, err := NewModel(Order{P: 1, D: 0, Q: 0}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, model.Fit(data))

	params, err := model.Parameters()
	require.NoError(t, err)
	assert.InDelta(t, 20, params.Intercept, 0.5)
}

func TestForecastRequiresFit(t *testing.T) {
	model, err := NewModel(DefaultOrder(), nil)
	require.NoError(t, err)

	_, _, err = model.Forecast(3)
	assert.True(t, errors.Is(err, errors.ErrModelNotFitted))

	_, err = model.Parameters()
	assert.True(t, errors.Is(err, errors.ErrModelNotFitted))
}

func TestFitInsufficientData(t *testing.T) {
	model, err := NewModel(DefaultOrder(), quietLogger())
	require.NoError(t, err)

	err = model.Fit([]float64{1, 2, 3})
	assert.True(t, errors.IsModelFitError(err))
	assert.True(t, errors.Is(err, errors.ErrInsufficientData))
}

func TestPredictionIntervals(t *testing.T) {
	intervals := PredictionIntervals([]float64{10, 20}, []float64{1, 2}, 0.95)

	assert.InDelta(t, 10-1.96, intervals.Lower[0], 1e-2)
	assert.InDelta(t, 20+2*1.96, intervals.Upper[1], 1e-2)
	assert.Equal(t, 0.95, intervals.ConfidenceLevel)
}

func TestLjungBoxDetectsAutocorrelation(t *testing.T) {
	trending := make([]float64, 100)
	for i := range trending {
		trending[i] = float64(i)
	}

	test := ljungBox(trending, 10, 0, 0.05)
	require.NotNil(t, test)
	assert.True(t, test.IsSignificant)
	assert.Equal(t, 10, test.DegreesOfFreedom)

	assert.Nil(t, ljungBox([]float64{1}, 10, 0, 0.05))
}
