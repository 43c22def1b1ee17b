package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inferloop/pricecast/cmd/cli/config"
	"github.com/inferloop/pricecast/pkg/errors"
)

func NewConfigCmd(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the configuration",
	}

	cmd.AddCommand(newConfigShowCmd(global))
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigShowCmd(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after defaults, the config file, PRICECAST_*
environment variables and the --input flag have been applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(global.ConfigFile)
			if err != nil {
				return err
			}
			if global.Input != "" {
				cfg.Input.Path = global.Input
			}

			encoder := yaml.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent(2)
			if err := encoder.Encode(cfg); err != nil {
				return err
			}
			return encoder.Close()
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write a config file with the default settings",
		Example: `  pricecast config init
  pricecast config init ./pricecast.yaml --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetDefaultConfigPath()
			if len(args) == 1 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return errors.NewConfigurationError(errors.CodeConfigInvalid,
					fmt.Sprintf("Config file %s already exists", path)).WithDetails("use --force to overwrite")
			}

			cfg, err := config.DefaultConfig()
			if err != nil {
				return err
			}

			written, err := config.SaveConfig(cfg, path)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), written)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}
