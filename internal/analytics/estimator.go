package analytics

import (
	"time"

	"github.com/sirupsen/logrus"

	mathutil "github.com/inferloop/pricecast/internal/utils/math"
	"github.com/inferloop/pricecast/internal/utils/timeutil"
	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
	"github.com/inferloop/pricecast/pkg/models"
)

// Estimator answers price queries over a combined observed + forecast series by
// time-weighted linear interpolation. It holds a private copy of the series and
// never mutates it, so it is safe for concurrent use.
type Estimator struct {
	series       *models.TimeSeries
	interpolator mathutil.Interpolator
	layouts      []string
	places       int32
	logger       *logrus.Logger
}

// EstimatorOption configures an Estimator.
type EstimatorOption func(*Estimator)

// WithDateLayouts sets the layouts tried by EstimateString.
func WithDateLayouts(layouts []string) EstimatorOption {
	return func(e *Estimator) {
		if len(layouts) > 0 {
			e.layouts = append([]string(nil), layouts...)
		}
	}
}

// WithLogger sets the estimator logger.
func WithLogger(logger *logrus.Logger) EstimatorOption {
	return func(e *Estimator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEstimator builds an estimator over combined. The series must be non-empty
// and strictly increasing in time.
func NewEstimator(combined *models.TimeSeries, opts ...EstimatorOption) (*Estimator, error) {
	if combined == nil {
		return nil, errors.NewValidationError(errors.CodeEmptySeries, "Estimator requires a series").
			WithCause(errors.ErrEmptySeries)
	}
	if err := combined.Validate(); err != nil {
		return nil, err
	}

	series := combined.Copy()
	points := make([]mathutil.Point, series.Len())
	for i, dp := range series.DataPoints {
		points[i] = mathutil.Point{X: dayNumber(dp.Timestamp), Y: dp.Value}
	}

	e := &Estimator{
		series:       series,
		interpolator: mathutil.NewLinearInterpolator(points),
		layouts:      constants.DefaultDateLayouts,
		places:       constants.PriceDecimalPlaces,
		logger:       logrus.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Range returns the first and last dates covered by the estimator.
func (e *Estimator) Range() (time.Time, time.Time) {
	return e.series.Start(), e.series.End()
}

// Estimate returns the price at date rounded to two decimals. The query is
// truncated to its calendar date; an exact match returns the stored value and
// anything else is interpolated between the neighbouring points in proportion
// to elapsed time. Dates before the first or after the last point fail with a
// range error.
func (e *Estimator) Estimate(date time.Time) (float64, error) {
	query := timeutil.TruncateToDate(date)
	start, end := e.Range()
	if query.Before(start) || query.After(end) {
		return 0, errors.NewRangeError(query, start, end)
	}

	value, err := e.interpolator.Interpolate(dayNumber(query))
	if err != nil {
		return 0, errors.NewInternalError("Interpolation failed inside the covered range").
			WithCause(err).
			WithContext("date", query.Format(errors.DateLayout))
	}

	rounded := mathutil.Round(value, e.places)
	e.logger.WithFields(logrus.Fields{
		"date":     query.Format(errors.DateLayout),
		"estimate": rounded,
	}).Debug("Estimated price")

	return rounded, nil
}

// EstimateString parses date with the configured layouts and estimates it.
func (e *Estimator) EstimateString(date string) (float64, error) {
	t, err := e.parse(date)
	if err != nil {
		return 0, err
	}
	return e.Estimate(t)
}

func (e *Estimator) parse(date string) (time.Time, error) {
	return timeutil.ParseDate(date, e.layouts)
}

// dayNumber maps a calendar date to days since the Unix epoch.
func dayNumber(t time.Time) float64 {
	return float64(timeutil.TruncateToDate(t).Unix()) / 86400
}
