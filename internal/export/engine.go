// Package export writes forecast results and price estimates to text, JSON or
// CSV streams.
package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/pricecast/internal/analytics"
	"github.com/inferloop/pricecast/internal/analytics/arima"
	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
)

// ExportEngine dispatches reports to the exporter registered for a format
type ExportEngine struct {
	logger    *logrus.Logger
	mu        sync.RWMutex
	exporters map[ExportFormat]Exporter
}

// ExportFormat defines supported export formats
type ExportFormat string

const (
	FormatText ExportFormat = constants.FormatText
	FormatJSON ExportFormat = constants.FormatJSON
	FormatCSV  ExportFormat = constants.FormatCSV
)

// ExportOptions contains options for export operations
type ExportOptions struct {
	Precision      int32  `json:"precision" mapstructure:"precision" yaml:"precision"`
	IncludeHistory bool   `json:"include_history" mapstructure:"include_history" yaml:"include_history"`
	Pretty         bool   `json:"pretty" mapstructure:"pretty" yaml:"pretty"`
	IncludeHeaders bool   `json:"include_headers" mapstructure:"include_headers" yaml:"include_headers"`
	Delimiter      string `json:"delimiter" mapstructure:"delimiter" yaml:"delimiter"`
}

// Report is what gets exported: a forecast and any estimates answered from it.
type Report struct {
	Forecast  *arima.ForecastResult `json:"forecast"`
	Estimates []analytics.Estimate  `json:"estimates,omitempty"`
}

// Row is one dated value of a report, observed or forecast.
type Row struct {
	Date     time.Time
	Kind     string
	Value    float64
	Lower    *float64
	Upper    *float64
	StdError *float64
}

// Row kinds
const (
	KindObserved = "observed"
	KindForecast = "forecast"
)

// Exporter interface for format-specific exporters
type Exporter interface {
	Name() string
	SupportedFormats() []ExportFormat
	Export(ctx context.Context, writer io.Writer, report *Report, options ExportOptions) error
	ValidateOptions(options ExportOptions) error
}

// DefaultExportOptions returns 2-decimal output with headers and no history.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Precision:      constants.PriceDecimalPlaces,
		IncludeHeaders: true,
		Delimiter:      ",",
	}
}

// NewExportEngine creates a new export engine with the text, JSON and CSV
// exporters registered
func NewExportEngine(logger *logrus.Logger) *ExportEngine {
	if logger == nil {
		logger = logrus.New()
	}

	engine := &ExportEngine{
		logger:    logger,
		exporters: make(map[ExportFormat]Exporter),
	}

	engine.RegisterExporter(&TextExporter{})
	engine.RegisterExporter(&JSONExporter{})
	engine.RegisterExporter(&CSVExporter{})

	return engine
}

// RegisterExporter registers an exporter for every format it supports
func (ee *ExportEngine) RegisterExporter(exporter Exporter) {
	ee.mu.Lock()
	defer ee.mu.Unlock()

	for _, format := range exporter.SupportedFormats() {
		ee.exporters[format] = exporter
	}
	ee.logger.WithField("exporter", exporter.Name()).Debug("Registered exporter")
}

// Export writes report to writer in the given format
func (ee *ExportEngine) Export(ctx context.Context, format ExportFormat, writer io.Writer, report *Report, options ExportOptions) error {
	ee.mu.RLock()
	exporter, exists := ee.exporters[ExportFormat(strings.ToLower(string(format)))]
	ee.mu.RUnlock()

	if !exists {
		return errors.NewConfigurationError(errors.CodeConfigInvalid,
			fmt.Sprintf("No exporter found for format %q", format)).
			WithDetails(fmt.Sprintf("supported formats: %s", ee.formatList()))
	}

	if report == nil || report.Forecast == nil {
		return errors.NewValidationError(errors.CodeInvalidInput, "Nothing to export")
	}

	if err := exporter.ValidateOptions(options); err != nil {
		return err
	}

	start := time.Now()
	if err := exporter.Export(ctx, writer, report, options); err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Export failed")
	}

	ee.logger.WithFields(logrus.Fields{
		"format":    format,
		"forecast":  report.Forecast.ID,
		"estimates": len(report.Estimates),
		"duration":  time.Since(start),
	}).Debug("Export completed")

	return nil
}

// GetSupportedFormats returns all supported export formats in sorted order
func (ee *ExportEngine) GetSupportedFormats() []ExportFormat {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	result := make([]ExportFormat, 0, len(ee.exporters))
	for format := range ee.exporters {
		result = append(result, format)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func (ee *ExportEngine) formatList() string {
	formats := ee.GetSupportedFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Rows flattens a report into dated rows, history first when requested.
func Rows(report *Report, options ExportOptions) []Row {
	result := report.Forecast
	var rows []Row

	if options.IncludeHistory && result.History != nil {
		for _, dp := range result.History.DataPoints {
			rows = append(rows, Row{Date: dp.Timestamp, Kind: KindObserved, Value: dp.Value})
		}
	}

	intervals := result.Intervals
	for i, dp := range result.Forecast.DataPoints {
		row := Row{Date: dp.Timestamp, Kind: KindForecast, Value: dp.Value}
		if intervals != nil && i < len(intervals.Lower) {
			row.Lower = &intervals.Lower[i]
			row.Upper = &intervals.Upper[i]
			row.StdError = &intervals.StandardErrors[i]
		}
		rows = append(rows, row)
	}
	return rows
}

// formatValue renders v with a fixed number of decimals, rounding half away
// from zero.
func formatValue(v float64, precision int32) string {
	return decimal.NewFromFloat(v).StringFixed(precision)
}

func formatOptional(v *float64, precision int32) string {
	if v == nil {
		return ""
	}
	return formatValue(*v, precision)
}

func precisionOf(options ExportOptions) int32 {
	if options.Precision <= 0 {
		return constants.PriceDecimalPlaces
	}
	return options.Precision
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errors.WrapError(ctx.Err(), errors.ErrorTypeInternal, errors.CodeCancelled, "Export cancelled")
	default:
		return nil
	}
}
