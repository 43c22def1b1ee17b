package export

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/inferloop/pricecast/internal/analytics/arima"
	"github.com/inferloop/pricecast/pkg/errors"
)

// JSONExporter implements JSON export functionality
type JSONExporter struct{}

// JSONReport is the document written by the JSON exporter
type JSONReport struct {
	ID                 string            `json:"id"`
	Series             string            `json:"series"`
	Model              string            `json:"model"`
	Frequency          string            `json:"frequency"`
	FrequencyIrregular bool              `json:"frequency_irregular,omitempty"`
	ForecastStart      string            `json:"forecast_start"`
	GeneratedAt        time.Time         `json:"generated_at"`
	ConfidenceLevel    float64           `json:"confidence_level,omitempty"`
	Summary            *JSONModelSummary `json:"summary,omitempty"`
	Points             []JSONPoint       `json:"points"`
	Estimates          []JSONEstimate    `json:"estimates,omitempty"`
}

// JSONModelSummary holds the fitted model statistics
type JSONModelSummary struct {
	AR            []float64           `json:"ar"`
	MA            []float64           `json:"ma"`
	Intercept     float64             `json:"intercept,omitempty"`
	Sigma2        float64             `json:"sigma2"`
	LogLikelihood float64             `json:"log_likelihood"`
	AIC           float64             `json:"aic"`
	BIC           float64             `json:"bic"`
	Converged     bool                `json:"converged"`
	LjungBox      *arima.LjungBoxTest `json:"ljung_box,omitempty"`
}

// JSONPoint is one exported value
type JSONPoint struct {
	Date     string           `json:"date"`
	Kind     string           `json:"kind"`
	Price    decimal.Decimal  `json:"price"`
	Lower    *decimal.Decimal `json:"lower,omitempty"`
	Upper    *decimal.Decimal `json:"upper,omitempty"`
	StdError *decimal.Decimal `json:"std_error,omitempty"`
}

// JSONEstimate is one answered price query
type JSONEstimate struct {
	Query string          `json:"query"`
	Date  string          `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// Name returns the exporter name
func (je *JSONExporter) Name() string {
	return "json"
}

// SupportedFormats returns supported formats
func (je *JSONExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatJSON}
}

// Export writes report as a single JSON document
func (je *JSONExporter) Export(ctx context.Context, writer io.Writer, report *Report, options ExportOptions) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	encoder := json.NewEncoder(writer)
	if options.Pretty {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(je.buildReport(report, options))
}

// ValidateOptions validates JSON export options
func (je *JSONExporter) ValidateOptions(options ExportOptions) error {
	return nil
}

func (je *JSONExporter) buildReport(report *Report, options ExportOptions) *JSONReport {
	result := report.Forecast
	precision := precisionOf(options)

	doc := &JSONReport{
		ID:                 result.ID,
		Series:             result.History.Name,
		Frequency:          result.Frequency,
		FrequencyIrregular: result.FrequencyIrregular,
		ForecastStart:      result.ForecastStart().Format(errors.DateLayout),
		GeneratedAt:        result.GeneratedAt,
	}

	if result.Intervals != nil {
		doc.ConfidenceLevel = result.Intervals.ConfidenceLevel
	}

	if s := result.Summary; s != nil {
		doc.Model = s.Order.String()
		doc.Summary = &JSONModelSummary{
			AR:            s.Parameters.ARCoefficients,
			MA:            s.Parameters.MACoefficients,
			Intercept:     s.Parameters.Intercept,
			Sigma2:        s.Parameters.Sigma2,
			LogLikelihood: s.LogLikelihood,
			AIC:           s.AIC,
			BIC:           s.BIC,
			Converged:     s.Converged,
			LjungBox:      s.LjungBox,
		}
	}

	rows := Rows(report, options)
	doc.Points = make([]JSONPoint, len(rows))
	for i, row := range rows {
		doc.Points[i] = JSONPoint{
			Date:     row.Date.Format(errors.DateLayout),
			Kind:     row.Kind,
			Price:    roundDecimal(row.Value, precision),
			Lower:    optionalDecimal(row.Lower, precision),
			Upper:    optionalDecimal(row.Upper, precision),
			StdError: optionalDecimal(row.StdError, precision),
		}
	}

	for _, e := range report.Estimates {
		doc.Estimates = append(doc.Estimates, JSONEstimate{
			Query: e.Query,
			Date:  e.Date.Format(errors.DateLayout),
			Price: roundDecimal(e.Price, precision),
		})
	}

	return doc
}

func roundDecimal(v float64, precision int32) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(precision)
}

func optionalDecimal(v *float64, precision int32) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := roundDecimal(*v, precision)
	return &d
}
