package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/pricecast/cmd/cli/config"
	"github.com/inferloop/pricecast/internal/export"
)

type RunOptions struct {
	Dates       []string
	NoCharts    bool
	ChartDir    string
	MetricsFile string
}

func NewRunCmd(global *GlobalOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load, chart, forecast and estimate in one pass",
		Long: `Run the whole pipeline: load the price history, render the raw and
seasonality charts, forecast the next 12 months with STL + ARIMA(1,1,1),
render the forecast chart and print an estimate for each query date.`,
		Example: `  # Full run with the default query dates
  pricecast run --input Nat_Gas.csv

  # Custom query dates, no charts
  pricecast run -i Nat_Gas.csv --dates 2024-03-31,2025-01-15 --no-charts

  # Leave run metrics for the node_exporter textfile collector
  pricecast run --metrics-file /var/lib/node_exporter/pricecast.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, global, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Dates, "dates", nil, "Query dates to estimate (default from estimate.dates)")
	cmd.Flags().BoolVar(&opts.NoCharts, "no-charts", false, "Skip chart rendering")
	cmd.Flags().StringVar(&opts.ChartDir, "chart-dir", "", "Directory for rendered charts (overrides charts.output_dir)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file (overrides metrics.textfile_path)")

	return cmd
}

func runRun(cmd *cobra.Command, global *GlobalOptions, opts *RunOptions) error {
	s, err := global.newSession("run", func(c *config.CLIConfig) {
		if opts.NoCharts {
			c.Charts.Enabled = false
		}
		if opts.ChartDir != "" {
			c.Charts.OutputDir = opts.ChartDir
		}
		if len(opts.Dates) > 0 {
			c.Estimate.Dates = opts.Dates
		}
		if opts.MetricsFile != "" {
			c.Metrics.TextfilePath = opts.MetricsFile
		}
	})
	if err != nil {
		return err
	}
	defer s.flushMetrics()

	ctx := cmd.Context()
	result, err := s.engine.Run(ctx, s.input)
	if err != nil {
		return err
	}

	for _, chart := range result.Charts {
		s.logger.WithField("path", chart).Info("Chart written")
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":      result.RunID,
		"model":       result.Forecast.Summary.Order.String(),
		"aic":         result.Forecast.Summary.AIC,
		"forecast_to": result.Forecast.Forecast.End().Format("2006-01-02"),
	}).Info("Forecast ready")

	estimates, err := s.engine.EstimateAll(ctx, result.Estimator, s.config.Estimate.Dates)
	if werr := export.WriteEstimates(cmd.OutOrStdout(), estimates); werr != nil {
		return werr
	}
	if err != nil {
		return fmt.Errorf("estimate failed: %w", err)
	}

	return nil
}
