package models

import (
	"fmt"
	"math"
	"time"

	"github.com/inferloop/pricecast/pkg/errors"
)

// DataPoint is a single dated observation.
type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// TimeSeries is an ordered sequence of data points keyed by date.
type TimeSeries struct {
	Name       string      `json:"name"`
	DataPoints []DataPoint `json:"data_points"`
	Frequency  string      `json:"frequency,omitempty"`
}

// NewTimeSeries builds a series from parallel timestamp and value slices.
func NewTimeSeries(name string, timestamps []time.Time, values []float64) (*TimeSeries, error) {
	if len(timestamps) != len(values) {
		return nil, errors.NewValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("timestamps and values must have the same length (%d != %d)", len(timestamps), len(values)))
	}

	points := make([]DataPoint, len(values))
	for i := range values {
		points[i] = DataPoint{Timestamp: timestamps[i], Value: values[i]}
	}

	return &TimeSeries{Name: name, DataPoints: points}, nil
}

// Len returns the number of data points.
func (ts *TimeSeries) Len() int {
	return len(ts.DataPoints)
}

// Values returns a copy of the observation values.
func (ts *TimeSeries) Values() []float64 {
	values := make([]float64, len(ts.DataPoints))
	for i, dp := range ts.DataPoints {
		values[i] = dp.Value
	}
	return values
}

// Timestamps returns a copy of the observation timestamps.
func (ts *TimeSeries) Timestamps() []time.Time {
	timestamps := make([]time.Time, len(ts.DataPoints))
	for i, dp := range ts.DataPoints {
		timestamps[i] = dp.Timestamp
	}
	return timestamps
}

// Start returns the first timestamp, or the zero time for an empty series.
func (ts *TimeSeries) Start() time.Time {
	if len(ts.DataPoints) == 0 {
		return time.Time{}
	}
	return ts.DataPoints[0].Timestamp
}

// End returns the last timestamp, or the zero time for an empty series.
func (ts *TimeSeries) End() time.Time {
	if len(ts.DataPoints) == 0 {
		return time.Time{}
	}
	return ts.DataPoints[len(ts.DataPoints)-1].Timestamp
}

// Copy returns a deep copy of the series.
func (ts *TimeSeries) Copy() *TimeSeries {
	points := make([]DataPoint, len(ts.DataPoints))
	copy(points, ts.DataPoints)
	return &TimeSeries{
		Name:       ts.Name,
		DataPoints: points,
		Frequency:  ts.Frequency,
	}
}

// Validate checks that the series is non-empty, strictly increasing in time and
// holds only finite values.
func (ts *TimeSeries) Validate() error {
	if len(ts.DataPoints) == 0 {
		return errors.NewValidationError(errors.CodeEmptySeries, "time series has no data points").
			WithCause(errors.ErrEmptySeries)
	}

	for i, dp := range ts.DataPoints {
		if math.IsNaN(dp.Value) || math.IsInf(dp.Value, 0) {
			return errors.NewValidationError(errors.CodeInvalidInput,
				fmt.Sprintf("non-finite value at %s", dp.Timestamp.Format(errors.DateLayout))).
				WithCause(errors.ErrNonFiniteValue)
		}
		if i == 0 {
			continue
		}

		prev := ts.DataPoints[i-1].Timestamp
		switch {
		case dp.Timestamp.Equal(prev):
			return errors.NewValidationError(errors.CodeDuplicateDate,
				fmt.Sprintf("duplicate date %s", dp.Timestamp.Format(errors.DateLayout))).
				WithCause(errors.ErrDuplicateDate)
		case dp.Timestamp.Before(prev):
			return errors.NewValidationError(errors.CodeUnsortedSeries,
				fmt.Sprintf("date %s precedes %s", dp.Timestamp.Format(errors.DateLayout), prev.Format(errors.DateLayout))).
				WithCause(errors.ErrUnsortedSeries)
		}
	}

	return nil
}

// Concat returns a new series holding ts followed by next. The result is validated
// so overlapping or out-of-order extensions are rejected.
func (ts *TimeSeries) Concat(next *TimeSeries) (*TimeSeries, error) {
	points := make([]DataPoint, 0, len(ts.DataPoints)+len(next.DataPoints))
	points = append(points, ts.DataPoints...)
	points = append(points, next.DataPoints...)

	combined := &TimeSeries{
		Name:       ts.Name,
		DataPoints: points,
		Frequency:  ts.Frequency,
	}
	if err := combined.Validate(); err != nil {
		return nil, err
	}
	return combined, nil
}
