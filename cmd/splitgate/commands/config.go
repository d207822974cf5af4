package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/splitgate/internal/cli"
	"github.com/TimurManjosov/splitgate/internal/client"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective experiment settings",
	Long: `Display the settings loaded from the environment and .env file, or the
settings published by a running server when --base-url is set.

Examples:
  splitgate config
  splitgate config --base-url http://localhost:8080 --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if baseURL != "" {
			snap, err := client.NewClient(baseURL).Config(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get config: %w", err)
			}
			return cli.PrintSettings(cmd.OutOrStdout(), snap.Settings, cli.OutputFormat(format))
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return cli.PrintSettings(cmd.OutOrStdout(), cfg.SettingsView(), cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
