// Package analytics wires loading, charting, forecasting and price estimation
// into a single run.
package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/pricecast/internal/analytics/arima"
	"github.com/inferloop/pricecast/internal/observability/metrics"
	"github.com/inferloop/pricecast/internal/storage/implementations/file"
	"github.com/inferloop/pricecast/internal/storage/interfaces"
	mathutil "github.com/inferloop/pricecast/internal/utils/math"
	"github.com/inferloop/pricecast/internal/visualization"
	"github.com/inferloop/pricecast/pkg/errors"
	"github.com/inferloop/pricecast/pkg/models"
)

// EngineConfig contains configuration for the analytics engine
type EngineConfig struct {
	Storage    *file.FileStorageConfig    `json:"storage" yaml:"storage"`
	Forecast   *arima.ForecasterConfig    `json:"forecast" yaml:"forecast"`
	Charts     *visualization.ChartConfig `json:"charts" yaml:"charts"`
	SkipCharts bool                       `json:"skip_charts" yaml:"skip_charts"`
}

// Engine runs the load, chart, forecast and estimate stages in order.
type Engine struct {
	config     *EngineConfig
	logger     *logrus.Logger
	storage    interfaces.SeriesReader
	forecaster *arima.Forecaster
	renderer   *visualization.Renderer
	metrics    *metrics.PrometheusMetrics
}

// RunResult contains the outputs of a full run
type RunResult struct {
	RunID       string                `json:"run_id"`
	History     *models.TimeSeries    `json:"history"`
	Profile     *SeriesProfile        `json:"profile"`
	Forecast    *arima.ForecastResult `json:"forecast,omitempty"`
	Charts      []string              `json:"charts,omitempty"`
	Estimator   *Estimator            `json:"-"`
	ProcessedIn time.Duration         `json:"processed_in"`
}

// SeriesProfile summarises the observed prices overall and per calendar month.
type SeriesProfile struct {
	Overall mathutil.Summary     `json:"overall"`
	Monthly [12]mathutil.Summary `json:"monthly"`
}

// Estimate is a single answered price query.
type Estimate struct {
	Query string    `json:"query"`
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// NewEngine creates a new analytics engine
func NewEngine(config *EngineConfig, logger *logrus.Logger) (*Engine, error) {
	if config == nil {
		config = &EngineConfig{}
	}

	if logger == nil {
		logger = logrus.New()
	}

	storage, err := file.NewFileStorage(config.Storage, logger)
	if err != nil {
		return nil, err
	}

	forecaster, err := arima.NewForecaster(config.Forecast, logger)
	if err != nil {
		return nil, err
	}

	var renderer *visualization.Renderer
	if !config.SkipCharts {
		renderer, err = visualization.NewRenderer(config.Charts, logger)
		if err != nil {
			return nil, err
		}
	}

	return &Engine{
		config:     config,
		logger:     logger,
		storage:    storage,
		forecaster: forecaster,
		renderer:   renderer,
	}, nil
}

// SetMetrics attaches a metrics recorder; nil disables recording.
func (e *Engine) SetMetrics(m *metrics.PrometheusMetrics) {
	e.metrics = m
}

// Load reads the price history from path.
func (e *Engine) Load(ctx context.Context, path string) (*models.TimeSeries, error) {
	defer e.observe(metrics.StageLoad, time.Now())
	return e.storage.Load(ctx, path)
}

// Plot renders the raw series and the month box plot and returns their paths.
func (e *Engine) Plot(ctx context.Context, history *models.TimeSeries) ([]string, error) {
	if e.renderer == nil {
		return nil, nil
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	defer e.observe(metrics.StagePlot, time.Now())

	raw, err := e.renderer.RenderSeries(history)
	if err != nil {
		return nil, err
	}
	seasonal, err := e.renderer.RenderSeasonality(history)
	if err != nil {
		return nil, err
	}
	return []string{raw, seasonal}, nil
}

// Forecast extends history and renders the forecast chart when charts are enabled.
func (e *Engine) Forecast(ctx context.Context, history *models.TimeSeries) (*arima.ForecastResult, string, error) {
	defer e.observe(metrics.StageForecast, time.Now())

	result, err := e.forecaster.Forecast(ctx, history)
	if err != nil {
		return nil, "", err
	}
	if e.metrics != nil {
		e.metrics.RecordForecast(result)
	}
	if e.renderer == nil {
		return result, "", nil
	}

	path, err := e.renderer.RenderForecast(result.Combined, result.ForecastStart(), result.Forecast.Len())
	if err != nil {
		return nil, "", err
	}
	return result, path, nil
}

// Run executes every stage against the CSV at path.
func (e *Engine) Run(ctx context.Context, path string) (result *RunResult, err error) {
	if e.metrics != nil {
		defer func() { e.metrics.RecordRun(err) }()
	}
	return e.run(ctx, path)
}

func (e *Engine) run(ctx context.Context, path string) (*RunResult, error) {
	started := time.Now()
	result := &RunResult{RunID: uuid.New().String()}
	logger := e.logger.WithFields(logrus.Fields{
		"run_id": result.RunID,
		"input":  path,
	})
	logger.Info("Starting run")

	history, err := e.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	result.History = history
	result.Profile = Profile(history)

	charts, err := e.Plot(ctx, history)
	if err != nil {
		return nil, err
	}
	result.Charts = append(result.Charts, charts...)

	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	forecast, chart, err := e.Forecast(ctx, history)
	if err != nil {
		return nil, err
	}
	result.Forecast = forecast
	if chart != "" {
		result.Charts = append(result.Charts, chart)
	}

	estimator, err := NewEstimator(forecast.Combined, WithDateLayouts(e.storageLayouts()), WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	result.Estimator = estimator
	result.ProcessedIn = time.Since(started)

	start, end := estimator.Range()
	logger.WithFields(logrus.Fields{
		"observations": history.Len(),
		"charts":       len(result.Charts),
		"covered_from": start.Format(errors.DateLayout),
		"covered_to":   end.Format(errors.DateLayout),
		"duration":     result.ProcessedIn.String(),
	}).Info("Run completed")

	return result, nil
}

// EstimateAll runs the package-level EstimateAll and records the outcome of
// each query in the attached metrics.
func (e *Engine) EstimateAll(ctx context.Context, estimator *Estimator, queries []string) ([]Estimate, error) {
	defer e.observe(metrics.StageEstimate, time.Now())

	estimates, err := EstimateAll(ctx, estimator, queries)
	if e.metrics != nil {
		for range estimates {
			e.metrics.RecordEstimate(nil)
		}
		if err != nil {
			e.metrics.RecordEstimate(err)
		}
	}
	return estimates, err
}

// EstimateAll answers each query in order and stops at the first failure,
// returning the estimates made so far together with the error.
func EstimateAll(ctx context.Context, estimator *Estimator, queries []string) ([]Estimate, error) {
	estimates := make([]Estimate, 0, len(queries))
	for _, q := range queries {
		if err := checkContext(ctx); err != nil {
			return estimates, err
		}

		date, err := estimator.parse(q)
		if err != nil {
			return estimates, err
		}
		price, err := estimator.Estimate(date)
		if err != nil {
			return estimates, err
		}
		estimates = append(estimates, Estimate{Query: q, Date: date, Price: price})
	}
	return estimates, nil
}

// Profile computes descriptive statistics of history overall and by month.
func Profile(history *models.TimeSeries) *SeriesProfile {
	profile := &SeriesProfile{Overall: mathutil.Describe(history.Values())}
	for m, values := range visualization.GroupByMonth(history) {
		profile.Monthly[m] = mathutil.Describe(values)
	}
	return profile
}

func (e *Engine) observe(stage string, started time.Time) {
	if e.metrics != nil {
		e.metrics.ObserveStage(stage, time.Since(started))
	}
}

func (e *Engine) storageLayouts() []string {
	if e.config.Storage == nil {
		return nil
	}
	return e.config.Storage.DateLayouts
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeCancelled, "Run cancelled")
	}
	return nil
}
