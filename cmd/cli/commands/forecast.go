package commands

import (
	"github.com/spf13/cobra"

	"github.com/inferloop/pricecast/cmd/cli/config"
	"github.com/inferloop/pricecast/internal/export"
)

type ForecastOptions struct {
	Horizon        int
	Format         string
	IncludeHistory bool
	NoCharts       bool
	Robust         bool
}

func NewForecastCmd(global *GlobalOptions) *cobra.Command {
	opts := &ForecastOptions{}

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast future prices with STL + ARIMA",
		Long: `Decompose the price history with STL, fit ARIMA to the seasonally
adjusted series and print the forecast with prediction intervals. The forecast
chart is rendered unless charts are disabled.`,
		Example: `  # Text table
  pricecast forecast --input Nat_Gas.csv

  # JSON with the observed history included
  pricecast forecast -i Nat_Gas.csv --format json --include-history

  # 24 months as CSV
  pricecast forecast -i Nat_Gas.csv --horizon 24 --format csv --no-charts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecast(cmd, global, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Horizon, "horizon", 0, "Number of periods to forecast (overrides forecast.horizon)")
	cmd.Flags().StringVar(&opts.Format, "format", "", "Output format: text, json or csv (overrides output.format)")
	cmd.Flags().BoolVar(&opts.IncludeHistory, "include-history", false, "Include observed prices in the output")
	cmd.Flags().BoolVar(&opts.NoCharts, "no-charts", false, "Skip chart rendering")
	cmd.Flags().BoolVar(&opts.Robust, "robust", false, "Use robust STL iterations")

	return cmd
}

func runForecast(cmd *cobra.Command, global *GlobalOptions, opts *ForecastOptions) (err error) {
	s, err := global.newSession("forecast", func(c *config.CLIConfig) {
		if opts.Horizon > 0 {
			c.Forecast.Horizon = opts.Horizon
		}
		if opts.Format != "" {
			c.Output.Format = opts.Format
		}
		if opts.IncludeHistory {
			c.Output.IncludeHistory = true
		}
		if opts.NoCharts {
			c.Charts.Enabled = false
		}
		if opts.Robust {
			c.Forecast.Decomposition.Robust = true
		}
	})
	if err != nil {
		return err
	}
	defer func() { s.finish(err) }()

	ctx := cmd.Context()
	history, err := s.engine.Load(ctx, s.input)
	if err != nil {
		return err
	}

	result, chart, err := s.engine.Forecast(ctx, history)
	if err != nil {
		return err
	}
	if chart != "" {
		s.logger.WithField("path", chart).Info("Chart written")
	}

	exporter := export.NewExportEngine(s.logger.Logger)
	report := &export.Report{Forecast: result}
	return exporter.Export(ctx, export.ExportFormat(s.config.Output.Format), cmd.OutOrStdout(), report, s.config.Output.ExportOptions)
}
