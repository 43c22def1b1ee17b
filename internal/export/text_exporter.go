package export

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/inferloop/pricecast/internal/analytics"
	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
)

// TextExporter writes a human-readable forecast table followed by one line per
// estimate.
type TextExporter struct{}

// Name returns the exporter name
func (te *TextExporter) Name() string {
	return "text"
}

// SupportedFormats returns supported formats
func (te *TextExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatText}
}

// Export writes report as an aligned table
func (te *TextExporter) Export(ctx context.Context, writer io.Writer, report *Report, options ExportOptions) error {
	result := report.Forecast
	precision := precisionOf(options)

	if s := result.Summary; s != nil {
		fmt.Fprintf(writer, "%s on %s (%d observations, %s)\n",
			s.Order, result.History.Name, result.History.Len(), result.Frequency)
		fmt.Fprintf(writer, "AIC %.2f  BIC %.2f  sigma2 %.4f\n", s.AIC, s.BIC, s.Parameters.Sigma2)
	}
	fmt.Fprintf(writer, "Forecast start: %s\n\n", result.ForecastStart().Format(errors.DateLayout))

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	if options.IncludeHeaders {
		fmt.Fprintln(tw, "DATE\tKIND\tPRICE\tLOWER\tUPPER\t")
	}
	for _, row := range Rows(report, options) {
		if err := checkContext(ctx); err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			row.Date.Format(errors.DateLayout),
			row.Kind,
			formatValue(row.Value, precision),
			formatOptional(row.Lower, precision),
			formatOptional(row.Upper, precision))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(report.Estimates) > 0 {
		fmt.Fprintln(writer)
		return WriteEstimates(writer, report.Estimates)
	}
	return nil
}

// ValidateOptions validates text export options
func (te *TextExporter) ValidateOptions(options ExportOptions) error {
	return nil
}

// WriteEstimates prints one "Estimated price on {date}: ${value}" line per
// estimate.
func WriteEstimates(writer io.Writer, estimates []analytics.Estimate) error {
	for _, e := range estimates {
		if _, err := fmt.Fprintf(writer, "Estimated price on %s: $%s\n", e.Query, formatValue(e.Price, constants.PriceDecimalPlaces)); err != nil {
			return err
		}
	}
	return nil
}
