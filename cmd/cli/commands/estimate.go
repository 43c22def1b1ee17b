package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inferloop/pricecast/cmd/cli/config"
	"github.com/inferloop/pricecast/internal/analytics"
	"github.com/inferloop/pricecast/internal/export"
	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
)

type EstimateOptions struct {
	Format string
}

func NewEstimateCmd(global *GlobalOptions) *cobra.Command {
	opts := &EstimateOptions{}

	cmd := &cobra.Command{
		Use:   "estimate DATE...",
		Short: "Estimate the price on one or more dates",
		Long: `Forecast the series and estimate the price on each DATE by time-weighted
interpolation over the observed and forecast prices. Dates outside that span
fail with a range error.`,
		Example: `  pricecast estimate -i Nat_Gas.csv 2023-07-15 12/1/24`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEstimate(cmd, global, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "text", "Output format: text or json")

	return cmd
}

func runEstimate(cmd *cobra.Command, global *GlobalOptions, opts *EstimateOptions, dates []string) (err error) {
	format := strings.ToLower(opts.Format)
	if format != constants.FormatText && format != constants.FormatJSON {
		return errors.NewConfigurationError(errors.CodeConfigInvalid,
			fmt.Sprintf("unsupported estimate format: %s", opts.Format)).
			WithDetails("supported formats: json, text")
	}

	s, err := global.newSession("estimate", func(c *config.CLIConfig) {
		c.Charts.Enabled = false
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

	result, _, err := s.engine.Forecast(ctx, history)
	if err != nil {
		return err
	}

	estimator, err := analytics.NewEstimator(result.Combined,
		analytics.WithDateLayouts(s.config.Input.DateLayouts),
		analytics.WithLogger(s.logger.Logger))
	if err != nil {
		return err
	}

	estimates, err := s.engine.EstimateAll(ctx, estimator, dates)
	if err != nil {
		// Print what was answered before the failing date.
		if werr := export.WriteEstimates(cmd.OutOrStdout(), estimates); werr != nil {
			s.logger.WithError(werr).Warn("Failed to write partial estimates")
		}
		return err
	}

	if format == constants.FormatJSON {
		exporter := export.NewExportEngine(s.logger.Logger)
		report := &export.Report{Forecast: result, Estimates: estimates}
		return exporter.Export(ctx, export.FormatJSON, cmd.OutOrStdout(), report, s.config.Output.ExportOptions)
	}
	return export.WriteEstimates(cmd.OutOrStdout(), estimates)
}
