package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inferloop/pricecast/internal/analytics"
	"github.com/inferloop/pricecast/internal/analytics/arima"
	"github.com/inferloop/pricecast/internal/export"
	"github.com/inferloop/pricecast/internal/observability/metrics"
	"github.com/inferloop/pricecast/internal/storage/implementations/file"
	"github.com/inferloop/pricecast/internal/visualization"
	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
)

type CLIConfig struct {
	Input    InputConfig              `mapstructure:"input" yaml:"input"`
	Forecast arima.ForecasterConfig   `mapstructure:"forecast" yaml:"forecast"`
	Charts   ChartsConfig             `mapstructure:"charts" yaml:"charts"`
	Estimate EstimateConfig           `mapstructure:"estimate" yaml:"estimate"`
	Output   OutputConfig             `mapstructure:"output" yaml:"output"`
	Log      LogConfig                `mapstructure:"log" yaml:"log"`
	Metrics  metrics.PrometheusConfig `mapstructure:"metrics" yaml:"metrics"`
}

type InputConfig struct {
	Path                   string `mapstructure:"path" yaml:"path"`
	file.FileStorageConfig `mapstructure:",squash" yaml:",inline"`
}

type ChartsConfig struct {
	Enabled                   bool `mapstructure:"enabled" yaml:"enabled"`
	visualization.ChartConfig `mapstructure:",squash" yaml:",inline"`
}

type EstimateConfig struct {
	Dates []string `mapstructure:"dates" yaml:"dates"`
}

type OutputConfig struct {
	Format               string `mapstructure:"format" yaml:"format"`
	export.ExportOptions `mapstructure:",squash" yaml:",inline"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// LoadConfig reads cfgFile, or pricecast.yaml from the working directory or
// $HOME/.pricecast when cfgFile is empty. PRICECAST_* environment variables
// override file values, e.g. PRICECAST_FORECAST_HORIZON=24.
func LoadConfig(cfgFile string) (*CLIConfig, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pricecast"))
		}
		v.SetConfigName(constants.DefaultConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeConfigLoad,
				"Error reading config file").WithContext("file", cfgFile)
		}
	}

	return decode(v)
}

// DefaultConfig returns the built-in defaults, ignoring files and environment.
func DefaultConfig() (*CLIConfig, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (*CLIConfig, error) {
	config := &CLIConfig{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeConfigLoad,
			"Error unmarshaling config")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	storage := file.DefaultFileStorageConfig()
	v.SetDefault("input.path", "Nat_Gas.csv")
	v.SetDefault("input.date_column", storage.DateColumn)
	v.SetDefault("input.price_column", storage.PriceColumn)
	v.SetDefault("input.date_layouts", storage.DateLayouts)
	v.SetDefault("input.delimiter", storage.Delimiter)
	v.SetDefault("input.series_name", "")

	forecast := arima.DefaultForecasterConfig()
	v.SetDefault("forecast.horizon", forecast.Horizon)
	v.SetDefault("forecast.order.p", forecast.Order.P)
	v.SetDefault("forecast.order.d", forecast.Order.D)
	v.SetDefault("forecast.order.q", forecast.Order.Q)
	v.SetDefault("forecast.decomposition.period", forecast.Decomposition.Period)
	v.SetDefault("forecast.decomposition.seasonal_window", forecast.Decomposition.SeasonalWindow)
	v.SetDefault("forecast.decomposition.trend_window", 0)
	v.SetDefault("forecast.decomposition.low_pass_window", 0)
	v.SetDefault("forecast.decomposition.inner_iterations", forecast.Decomposition.InnerIterations)
	v.SetDefault("forecast.decomposition.outer_iterations", 0)
	v.SetDefault("forecast.decomposition.robust", false)
	v.SetDefault("forecast.confidence_level", forecast.ConfidenceLevel)
	v.SetDefault("forecast.ljung_box_lags", forecast.LjungBoxLags)
	v.SetDefault("forecast.frequency", "")

	charts := visualization.DefaultChartConfig()
	v.SetDefault("charts.enabled", true)
	v.SetDefault("charts.output_dir", charts.OutputDir)
	v.SetDefault("charts.format", charts.Format)
	v.SetDefault("charts.width", charts.Width)
	v.SetDefault("charts.height", charts.Height)
	v.SetDefault("charts.commodity", charts.Commodity)

	v.SetDefault("estimate.dates", constants.DefaultEstimateDates)

	output := export.DefaultExportOptions()
	v.SetDefault("output.format", constants.FormatText)
	v.SetDefault("output.precision", output.Precision)
	v.SetDefault("output.include_history", output.IncludeHistory)
	v.SetDefault("output.pretty", true)
	v.SetDefault("output.include_headers", output.IncludeHeaders)
	v.SetDefault("output.delimiter", output.Delimiter)

	v.SetDefault("log.level", constants.DefaultLogLevel)
	v.SetDefault("log.format", constants.DefaultLogFormat)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile_path", "")
	v.SetDefault("metrics.namespace", constants.AppName)
}

// Validate checks the values the engine does not check itself
func (c *CLIConfig) Validate() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.NewConfigurationError(errors.CodeConfigInvalid,
			fmt.Sprintf("Unknown log format %q", c.Log.Format)).WithDetails("expected text or json")
	}

	switch c.Output.Format {
	case constants.FormatText, constants.FormatJSON, constants.FormatCSV:
	default:
		return errors.NewConfigurationError(errors.CodeConfigInvalid,
			fmt.Sprintf("Unknown output format %q", c.Output.Format)).WithDetails("expected text, json or csv")
	}

	return nil
}

// EngineConfig converts the CLI configuration into the analytics engine's.
func (c *CLIConfig) EngineConfig() *analytics.EngineConfig {
	storage := c.Input.FileStorageConfig
	forecast := c.Forecast
	charts := c.Charts.ChartConfig

	return &analytics.EngineConfig{
		Storage:    &storage,
		Forecast:   &forecast,
		Charts:     &charts,
		SkipCharts: !c.Charts.Enabled,
	}
}

// SaveConfig writes config as YAML to cfgFile, or to the default path when
// cfgFile is empty.
func SaveConfig(config *CLIConfig, cfgFile string) (string, error) {
	if cfgFile == "" {
		cfgFile = GetDefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(cfgFile), 0o755); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"Error creating config directory")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
			"Error marshaling config")
	}

	if err := os.WriteFile(cfgFile, data, 0o644); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"Error writing config file").WithContext("file", cfgFile)
	}

	return cfgFile, nil
}

func GetDefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pricecast", constants.DefaultConfigName+".yaml")
}
