package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/inferloop/pricecast/pkg/errors"
)

// CSVExporter implements CSV export functionality
type CSVExporter struct{}

// Name returns the exporter name
func (ce *CSVExporter) Name() string {
	return "csv"
}

// SupportedFormats returns supported formats
func (ce *CSVExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatCSV}
}

// Export writes one row per dated value. Estimates are not part of the CSV
// output.
func (ce *CSVExporter) Export(ctx context.Context, writer io.Writer, report *Report, options ExportOptions) error {
	csvWriter := csv.NewWriter(writer)
	if options.Delimiter != "" {
		csvWriter.Comma, _ = utf8.DecodeRuneInString(options.Delimiter)
	}

	precision := precisionOf(options)

	if options.IncludeHeaders {
		if err := csvWriter.Write(ce.generateHeaders()); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, row := range Rows(report, options) {
		if err := checkContext(ctx); err != nil {
			return err
		}

		if err := csvWriter.Write(ce.generateRow(row, precision)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ValidateOptions validates CSV export options
func (ce *CSVExporter) ValidateOptions(options ExportOptions) error {
	if options.Delimiter != "" && utf8.RuneCountInString(options.Delimiter) != 1 {
		return errors.NewConfigurationError(errors.CodeConfigInvalid, "CSV delimiter must be a single character").
			WithContext("delimiter", options.Delimiter)
	}
	return nil
}

func (ce *CSVExporter) generateHeaders() []string {
	return []string{"date", "kind", "price", "lower", "upper", "std_error"}
}

func (ce *CSVExporter) generateRow(row Row, precision int32) []string {
	return []string{
		row.Date.Format(errors.DateLayout),
		row.Kind,
		formatValue(row.Value, precision),
		formatOptional(row.Lower, precision),
		formatOptional(row.Upper, precision),
		formatOptional(row.StdError, precision),
	}
}
