package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inferloop/pricecast/cmd/cli/config"
)

type PlotOptions struct {
	ChartDir string
	Format   string
}

func NewPlotCmd(global *GlobalOptions) *cobra.Command {
	opts := &PlotOptions{}

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render the raw price chart and the month box plot",
		Example: `  pricecast plot --input Nat_Gas.csv --chart-dir out --format svg`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlot(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ChartDir, "chart-dir", "", "Directory for rendered charts (overrides charts.output_dir)")
	cmd.Flags().StringVar(&opts.Format, "format", "", "Image format: png, svg or pdf (overrides charts.format)")

	return cmd
}

func runPlot(cmd *cobra.Command, global *GlobalOptions, opts *PlotOptions) (err error) {
	s, err := global.newSession("plot", func(c *config.CLIConfig) {
		c.Charts.Enabled = true
		if opts.ChartDir != "" {
			c.Charts.OutputDir = opts.ChartDir
		}
		if opts.Format != "" {
			c.Charts.Format = opts.Format
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

	paths, err := s.engine.Plot(ctx, history)
	if err != nil {
		return err
	}

	for _, path := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}
