package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/inferloop/pricecast/internal/analytics"
	"github.com/inferloop/pricecast/internal/utils/timeutil"
	"github.com/inferloop/pricecast/pkg/errors"
	"github.com/inferloop/pricecast/pkg/models"
)

type AnalyzeOptions struct {
	OutputFormat string
}

// AnalysisReport describes a loaded price history
type AnalysisReport struct {
	Series             string                   `json:"series"`
	Observations       int                      `json:"observations"`
	Start              string                   `json:"start"`
	End                string                   `json:"end"`
	Frequency          string                   `json:"frequency"`
	FrequencyIrregular bool                     `json:"frequency_irregular"`
	Profile            *analytics.SeriesProfile `json:"profile"`
}

func NewAnalyzeCmd(global *GlobalOptions) *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Describe the price history and its monthly spread",
		Long: `Load the price history, infer its sampling frequency and print summary
statistics overall and for each calendar month.`,
		Example: `  # Basic analysis
  pricecast analyze --input Nat_Gas.csv

  # Machine-readable
  pricecast analyze -i Nat_Gas.csv --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.OutputFormat, "format", "text", "Output format (text, json)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, global *GlobalOptions, opts *AnalyzeOptions) error {
	s, err := global.newSession("analyze", nil)
	if err != nil {
		return err
	}

	history, err := s.engine.Load(cmd.Context(), s.input)
	if err != nil {
		return err
	}

	report := buildAnalysisReport(history)
	switch opts.OutputFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "text":
		return writeAnalysisText(cmd.OutOrStdout(), report)
	default:
		return errors.NewConfigurationError(errors.CodeConfigInvalid,
			fmt.Sprintf("Unknown output format %q", opts.OutputFormat))
	}
}

func buildAnalysisReport(history *models.TimeSeries) *AnalysisReport {
	freq, regular := timeutil.InferFrequency(history.Timestamps())
	return &AnalysisReport{
		Series:             history.Name,
		Observations:       history.Len(),
		Start:              history.Start().Format(errors.DateLayout),
		End:                history.End().Format(errors.DateLayout),
		Frequency:          freq.String(),
		FrequencyIrregular: !regular,
		Profile:            analytics.Profile(history),
	}
}

func writeAnalysisText(w io.Writer, report *AnalysisReport) error {
	fmt.Fprintf(w, "Series: %s\n", report.Series)
	fmt.Fprintf(w, "Observations: %d (%s to %s)\n", report.Observations, report.Start, report.End)
	if report.FrequencyIrregular {
		fmt.Fprintf(w, "Frequency: %s (irregular spacing)\n", report.Frequency)
	} else {
		fmt.Fprintf(w, "Frequency: %s\n", report.Frequency)
	}

	overall := report.Profile.Overall
	fmt.Fprintln(w, "\nOverall:")
	fmt.Fprintf(w, "- Mean: %.2f\n", overall.Mean)
	fmt.Fprintf(w, "- Std Dev: %.2f\n", overall.StdDev)
	fmt.Fprintf(w, "- Min: %.2f\n", overall.Min)
	fmt.Fprintf(w, "- Median: %.2f\n", overall.Median)
	fmt.Fprintf(w, "- Max: %.2f\n", overall.Max)

	fmt.Fprintln(w, "\nBy month:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tN\tMEAN\tMEDIAN\tIQR\t")
	for m, summary := range report.Profile.Monthly {
		name := time.Month(m + 1).String()
		if summary.Count == 0 {
			fmt.Fprintf(tw, "%s\t0\t-\t-\t-\t\n", name)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t\n", name, summary.Count, summary.Mean, summary.Median, summary.IQR())
	}
	return tw.Flush()
}
