package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/splitgate/internal/cli"
	"github.com/TimurManjosov/splitgate/internal/client"
	"github.com/TimurManjosov/splitgate/internal/gate"
	"github.com/TimurManjosov/splitgate/internal/rollout"
)

var (
	decideFlags  probeFlags
	decideMarker string
)

var decideCmd = &cobra.Command{
	Use:   "decide <url>",
	Short: "Run the full gate decision for a visit",
	Long: `Classify a visit and, when it is eligible, allocate it. No cookie is
written; the marker the visitor would receive is printed instead.

Examples:
  splitgate decide https://shop.example.com/
  splitgate decide / --marker variant.1760572800
  splitgate decide / --base-url http://localhost:8080 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		probe := decideFlags.probe(args[0])
		probe.Marker = decideMarker

		var dec *gate.Decision
		if baseURL != "" {
			remote, err := client.NewClient(baseURL).Decide(cmd.Context(), probe)
			if err != nil {
				return fmt.Errorf("failed to get decision: %w", err)
			}
			dec = remote
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			g, err := newGate(cfg, rollout.CryptoSource{})
			if err != nil {
				return err
			}
			local, err := g.DryRun(cmd.Context(), probe)
			if err != nil {
				return err
			}
			dec = &local
		}

		return cli.PrintDecision(cmd.OutOrStdout(), *dec, cli.OutputFormat(format))
	},
}

func init() {
	decideFlags.register(decideCmd)
	decideCmd.Flags().StringVar(&decideMarker, "marker", "", "Raw assignment marker value the visitor already carries")
	rootCmd.AddCommand(decideCmd)
}
