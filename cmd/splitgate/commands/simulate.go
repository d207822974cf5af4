package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/splitgate/internal/allocator"
	"github.com/TimurManjosov/splitgate/internal/cli"
	"github.com/TimurManjosov/splitgate/internal/rollout"
)

var (
	simTrials    int
	simRatio     int
	simForceDraw int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Allocate many fresh visitors and report the redirect rate",
	Long: `Run the allocator on fresh visitors, replaying each visitor's marker once
to confirm the bucket sticks.

Examples:
  splitgate simulate
  splitgate simulate --trials 1000000 --ratio 35
  splitgate simulate --force-draw 20 --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if simTrials <= 0 {
			return fmt.Errorf("--trials must be positive, got %d", simTrials)
		}

		var src rollout.Source = rollout.CryptoSource{}
		if simForceDraw != 0 {
			src = rollout.Fixed(simForceDraw)
		}

		a, err := allocator.New(allocator.Settings{
			VariantURL: "https://variant.invalid",
			Ratio:      simRatio,
			TTL:        24 * time.Hour,
		}, src)
		if err != nil {
			return err
		}

		res := allocator.Simulate(a, simTrials, time.Now())
		return cli.PrintSimulation(cmd.OutOrStdout(), res, cli.OutputFormat(format))
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simTrials, "trials", 100000, "Number of fresh visitors")
	simulateCmd.Flags().IntVar(&simRatio, "ratio", 20, "Split ratio in percent (0-100)")
	simulateCmd.Flags().IntVar(&simForceDraw, "force-draw", 0, "Use this lottery draw (1-100) for every visitor; 0 draws randomly")
	rootCmd.AddCommand(simulateCmd)
}
