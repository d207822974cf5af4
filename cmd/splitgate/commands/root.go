package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/splitgate/internal/cli"
)

var (
	// Global flags
	baseURL string
	format  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "splitgate",
	Short: "Inspect and exercise the storefront traffic split",
	Long: `Splitgate decides which storefront visitors are sent to the variant store.

The CLI runs the same classifier and allocator as the server, either locally
from the environment configuration or against a running server with --base-url.

Examples:
  splitgate classify https://shop.example.com/checkout
  splitgate decide https://shop.example.com/ --marker lottery
  splitgate simulate --trials 100000 --ratio 20
  splitgate config --format yaml`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cli.OutputFormat(format) {
		case cli.FormatTable, cli.FormatJSON, cli.FormatYAML:
			return nil
		default:
			return fmt.Errorf("unsupported format %q (want table, json or yaml)", format)
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of a running splitgate server (default: evaluate locally)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
}
