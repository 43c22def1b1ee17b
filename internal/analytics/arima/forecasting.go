// Package arima decomposes monthly price series with STL and forecasts the
// seasonally adjusted part with a non-seasonal ARIMA model.
package arima

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/pricecast/internal/utils/timeutil"
	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
	"github.com/inferloop/pricecast/pkg/models"
)

// ForecasterConfig contains configuration for STL + ARIMA forecasting
type ForecasterConfig struct {
	Horizon         int                 `json:"horizon" mapstructure:"horizon" yaml:"horizon"`
	Order           Order               `json:"order" mapstructure:"order" yaml:"order"`
	Decomposition   DecompositionConfig `json:"decomposition" mapstructure:"decomposition" yaml:"decomposition"`
	ConfidenceLevel float64             `json:"confidence_level" mapstructure:"confidence_level" yaml:"confidence_level"`
	LjungBoxLags    int                 `json:"ljung_box_lags" mapstructure:"ljung_box_lags" yaml:"ljung_box_lags"`
	Frequency       string              `json:"frequency" mapstructure:"frequency" yaml:"frequency"` // empty infers from the data
}

// Intervals contains prediction intervals for forecasts
type Intervals struct {
	ConfidenceLevel float64   `json:"confidence_level"`
	Lower           []float64 `json:"lower"`
	Upper           []float64 `json:"upper"`
	StandardErrors  []float64 `json:"standard_errors"`
}

// ForecastResult contains the forecasting results
type ForecastResult struct {
	ID                 string               `json:"id"`
	History            *models.TimeSeries   `json:"history"`
	Forecast           *models.TimeSeries   `json:"forecast"`
	Combined           *models.TimeSeries   `json:"-"`
	Decomposition      *DecompositionResult `json:"decomposition,omitempty"`
	Summary            *ModelSummary        `json:"summary"`
	Intervals          *Intervals           `json:"intervals,omitempty"`
	Frequency          string               `json:"frequency"`
	FrequencyIrregular bool                 `json:"frequency_irregular"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

// ForecastStart returns the last historical timestamp, where the forecast begins.
func (r *ForecastResult) ForecastStart() time.Time {
	return r.History.End()
}

// Forecaster fits STL + ARIMA to a price history and extends it.
type Forecaster struct {
	config *ForecasterConfig
	logger *logrus.Logger
}

// DefaultForecasterConfig returns the 12-step ARIMA(1,1,1) configuration.
func DefaultForecasterConfig() *ForecasterConfig {
	return &ForecasterConfig{
		Horizon:         constants.DefaultForecastHorizon,
		Order:           DefaultOrder(),
		Decomposition:   *DefaultDecompositionConfig(),
		ConfidenceLevel: constants.DefaultConfidenceLevel,
		LjungBoxLags:    constants.DefaultLjungBoxLags,
	}
}

// NewForecaster creates a new forecaster
func NewForecaster(config *ForecasterConfig, logger *logrus.Logger) (*Forecaster, error) {
	if config == nil {
		config = DefaultForecasterConfig()
	}

	if config.Horizon <= 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "Forecast horizon must be positive")
	}

	if err := config.Order.Validate(); err != nil {
		return nil, err
	}

	if config.Decomposition.Period == 0 {
		config.Decomposition.Period = constants.DefaultSeasonalPeriod
	}

	if config.ConfidenceLevel <= 0 || config.ConfidenceLevel >= 1 {
		config.ConfidenceLevel = constants.DefaultConfidenceLevel
	}

	if config.LjungBoxLags <= 0 {
		config.LjungBoxLags = constants.DefaultLjungBoxLags
	}

	if config.Frequency != "" {
		if _, err := timeutil.ParseFrequency(config.Frequency); err != nil {
			return nil, err
		}
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &Forecaster{
		config: config,
		logger: logger,
	}, nil
}

// Forecast decomposes history, fits ARIMA to the seasonally adjusted series and
// returns Horizon future points with seasonality added back. The history is
// not modified.
func (f *Forecaster) Forecast(ctx context.Context, history *models.TimeSeries) (*ForecastResult, error) {
	if history == nil {
		return nil, errors.NewValidationError(errors.CodeEmptySeries, "Historical data is required for forecasting").
			WithCause(errors.ErrEmptySeries)
	}
	if err := history.Validate(); err != nil {
		return nil, err
	}

	resultID := uuid.New().String()
	logger := f.logger.WithFields(logrus.Fields{
		"forecast_id":       resultID,
		"historical_points": history.Len(),
		"horizon":           f.config.Horizon,
		"order":             f.config.Order.String(),
	})
	logger.Info("Starting forecast")

	freq, irregular, err := f.frequency(history)
	if err != nil {
		return nil, err
	}
	if irregular {
		logger.WithField("frequency", freq.String()).Warn("Irregular observation spacing, forecast dates use a monthly fallback")
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeCancelled, "Forecast cancelled")
	}

	values := history.Values()
	decomposition, err := Decompose(values, &f.config.Decomposition)
	if err != nil {
		return nil, wrapFitError(err, "Seasonal decomposition failed")
	}

	model, err := NewModel(f.config.Order, f.logger)
	if err != nil {
		return nil, err
	}
	model.lbLags = f.config.LjungBoxLags

	if err := model.Fit(decomposition.SeasonallyAdjusted()); err != nil {
		return nil, wrapFitError(err, "ARIMA fit failed")
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeCancelled, "Forecast cancelled")
	}

	adjusted, stderr, err := model.Forecast(f.config.Horizon)
	if err != nil {
		return nil, wrapFitError(err, "ARIMA forecast failed")
	}

	seasonal := decomposition.SeasonalNaive(f.config.Horizon)
	values = make([]float64, f.config.Horizon)
	for i := range values {
		values[i] = adjusted[i] + seasonal[i]
	}
	if !floatsFinite(values) {
		return nil, errors.NewModelFitError(errors.CodeForecastFailed, "forecast produced non-finite values").
			WithCause(errors.ErrFitFailed)
	}

	timestamps := freq.Sequence(history.End(), f.config.Horizon)
	forecast, err := models.NewTimeSeries(history.Name+"_forecast", timestamps, values)
	if err != nil {
		return nil, err
	}
	forecast.Frequency = freq.String()

	hist := history.Copy()
	hist.Frequency = freq.String()
	combined, err := hist.Concat(forecast)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeForecastFailed,
			"Forecast is not contiguous with history")
	}

	result := &ForecastResult{
		ID:                 resultID,
		History:            hist,
		Forecast:           forecast,
		Combined:           combined,
		Decomposition:      decomposition,
		Summary:            model.Summary(),
		Intervals:          PredictionIntervals(values, stderr, f.config.ConfidenceLevel),
		Frequency:          freq.String(),
		FrequencyIrregular: irregular,
		GeneratedAt:        time.Now().UTC(),
	}

	logger.WithFields(logrus.Fields{
		"forecast_start": result.ForecastStart().Format(errors.DateLayout),
		"forecast_end":   forecast.End().Format(errors.DateLayout),
		"aic":            result.Summary.AIC,
		"frequency":      result.Frequency,
	}).Info("Forecast completed")

	return result, nil
}

func (f *Forecaster) frequency(history *models.TimeSeries) (timeutil.Frequency, bool, error) {
	if f.config.Frequency != "" {
		freq, err := timeutil.ParseFrequency(f.config.Frequency)
		return freq, false, err
	}
	freq, regular := timeutil.InferFrequency(history.Timestamps())
	return freq, !regular, nil
}

func wrapFitError(err error, message string) error {
	if errors.IsType(err, errors.ErrorTypeModelFit) {
		return err
	}
	return errors.WrapError(err, errors.ErrorTypeModelFit, errors.CodeFitFailed, fmt.Sprintf("%s: %v", message, err))
}
