package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inferloop/pricecast/cmd/cli/commands"
	"github.com/inferloop/pricecast/pkg/constants"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Execute
	if err := newRootCmd(&commands.GlobalOptions{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(global *commands.GlobalOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: "Monthly commodity price forecasting and estimation",
		Long: `A command-line tool that loads a monthly commodity price history, charts
its trend and seasonality, forecasts the next 12 months with STL + ARIMA and
estimates the price on any date inside the observed and forecast span.`,
		Version:       commands.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	global.AddPersistentFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(commands.NewRunCmd(global))
	rootCmd.AddCommand(commands.NewPlotCmd(global))
	rootCmd.AddCommand(commands.NewForecastCmd(global))
	rootCmd.AddCommand(commands.NewEstimateCmd(global))
	rootCmd.AddCommand(commands.NewAnalyzeCmd(global))
	rootCmd.AddCommand(commands.NewConfigCmd(global))
	rootCmd.AddCommand(commands.NewVersionCmd())

	return rootCmd
}
