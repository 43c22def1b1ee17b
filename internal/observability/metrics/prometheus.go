// Package metrics records per-run pipeline metrics in a Prometheus registry and
// writes them in the text exposition format for the node_exporter textfile
// collector.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/pricecast/internal/analytics/arima"
	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
)

// PrometheusMetrics provides Prometheus-based metrics collection
type PrometheusMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry
	config   *PrometheusConfig
	mu       sync.RWMutex

	// Pipeline metrics
	runsTotal      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	estimatesTotal *prometheus.CounterVec
	lastRun        prometheus.Gauge

	// Series and model metrics
	observations   prometheus.Gauge
	forecastPoints prometheus.Gauge
	modelAIC       prometheus.Gauge
	modelSigma2    prometheus.Gauge
	ljungBoxPValue prometheus.Gauge
	modelConverged prometheus.Gauge
}

// PrometheusConfig configures Prometheus metrics
type PrometheusConfig struct {
	Enabled      bool              `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	TextfilePath string            `json:"textfile_path" yaml:"textfile_path" mapstructure:"textfile_path"`
	Namespace    string            `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
	Labels       map[string]string `json:"labels,omitempty" yaml:"labels,omitempty" mapstructure:"labels"`
}

// Stage names used as the stage label
const (
	StageLoad     = "load"
	StagePlot     = "plot"
	StageForecast = "forecast"
	StageEstimate = "estimate"
)

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(config *PrometheusConfig, logger *logrus.Logger) (*PrometheusMetrics, error) {
	if config == nil {
		config = DefaultPrometheusConfig()
	}

	if config.Namespace == "" {
		config.Namespace = constants.AppName
	}

	if logger == nil {
		logger = logrus.New()
	}

	pm := &PrometheusMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		config:   config,
	}

	pm.initializeMetrics()

	if err := pm.registerMetrics(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
			"Failed to register metrics")
	}

	return pm, nil
}

// DefaultPrometheusConfig returns a disabled configuration
func DefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace: constants.AppName,
		Labels:    make(map[string]string),
	}
}

// ObserveStage records how long a pipeline stage took
func (pm *PrometheusMetrics) ObserveStage(stage string, duration time.Duration) {
	pm.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordRun counts a finished run and stamps its completion time
func (pm *PrometheusMetrics) RecordRun(err error) {
	pm.runsTotal.WithLabelValues(status(err)).Inc()
	pm.lastRun.SetToCurrentTime()
}

// RecordEstimate counts one answered or failed price query
func (pm *PrometheusMetrics) RecordEstimate(err error) {
	pm.estimatesTotal.WithLabelValues(status(err)).Inc()
}

// RecordForecast sets the series and model gauges from a forecast result
func (pm *PrometheusMetrics) RecordForecast(result *arima.ForecastResult) {
	if result == nil {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.observations.Set(float64(result.History.Len()))
	pm.forecastPoints.Set(float64(result.Forecast.Len()))

	if s := result.Summary; s != nil {
		pm.modelAIC.Set(s.AIC)
		pm.modelSigma2.Set(s.Parameters.Sigma2)
		if s.Converged {
			pm.modelConverged.Set(1)
		} else {
			pm.modelConverged.Set(0)
		}
		if s.LjungBox != nil {
			pm.ljungBoxPValue.Set(s.LjungBox.PValue)
		}
	}
}

// WriteTextfile writes the registry to path atomically. An empty path uses the
// configured textfile path; with neither set it is a no-op.
func (pm *PrometheusMetrics) WriteTextfile(path string) error {
	if path == "" {
		path = pm.config.TextfilePath
	}
	if path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, pm.registry); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"Failed to write metrics textfile").WithContext("path", path)
	}

	pm.logger.WithField("path", path).Debug("Metrics written")
	return nil
}

// initializeMetrics creates all metric collectors
func (pm *PrometheusMetrics) initializeMetrics() {
	namespace := pm.config.Namespace
	labels := prometheus.Labels(pm.config.Labels)

	pm.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "runs_total",
			Help:        "Total number of pipeline runs",
			ConstLabels: labels,
		},
		[]string{"status"},
	)

	pm.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "stage_duration_seconds",
			Help:        "Pipeline stage duration in seconds",
			Buckets:     []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			ConstLabels: labels,
		},
		[]string{"stage"},
	)

	pm.estimatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "estimates_total",
			Help:        "Total number of price estimates",
			ConstLabels: labels,
		},
		[]string{"status"},
	)

	pm.lastRun = pm.newGauge("last_run_timestamp_seconds", "Unix time the last run finished")
	pm.observations = pm.newGauge("observations", "Number of observed prices in the last run")
	pm.forecastPoints = pm.newGauge("forecast_points", "Number of forecast prices in the last run")
	pm.modelAIC = pm.newGauge("model_aic", "AIC of the fitted ARIMA model")
	pm.modelSigma2 = pm.newGauge("model_sigma2", "Innovation variance of the fitted ARIMA model")
	pm.ljungBoxPValue = pm.newGauge("model_ljung_box_p_value", "Ljung-Box p-value of the model residuals")
	pm.modelConverged = pm.newGauge("model_converged", "1 when the ARIMA optimizer converged")
}

func (pm *PrometheusMetrics) newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   pm.config.Namespace,
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels(pm.config.Labels),
	})
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() error {
	metrics := []prometheus.Collector{
		pm.runsTotal,
		pm.stageDuration,
		pm.estimatesTotal,
		pm.lastRun,
		pm.observations,
		pm.forecastPoints,
		pm.modelAIC,
		pm.modelSigma2,
		pm.ljungBoxPValue,
		pm.modelConverged,
	}

	for _, metric := range metrics {
		if err := pm.registry.Register(metric); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return nil
}

// GetRegistry returns the Prometheus registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// GetConfig returns the configuration
func (pm *PrometheusMetrics) GetConfig() *PrometheusConfig {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.config
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
