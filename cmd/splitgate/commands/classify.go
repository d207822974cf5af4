package commands

import (
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/splitgate/internal/cli"
	"github.com/TimurManjosov/splitgate/internal/request"
)

var classifyFlags probeFlags

var classifyCmd = &cobra.Command{
	Use:   "classify <url>",
	Short: "Show which exemption rules match a visit",
	Long: `Evaluate every exemption predicate for one visit and print the verdict.
Classification always runs locally.

Examples:
  splitgate classify https://shop.example.com/blog/novidades
  splitgate classify / --ua "Googlebot/2.1"
  splitgate classify / --cookie woocommerce_items_in_cart=1 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		d, err := classifyFlags.probe(args[0]).Descriptor(cmd.Context(), request.NewCookieSignals())
		if err != nil {
			return err
		}

		c := newClassifier(cfg)
		predicate, exempt := c.Explain(d)
		return cli.PrintClassification(cmd.OutOrStdout(), cli.Classification{
			URL:       args[0],
			Exempt:    exempt,
			Predicate: string(predicate),
			Matches:   c.Evaluate(d),
		}, cli.OutputFormat(format))
	},
}

func init() {
	classifyFlags.register(classifyCmd)
	rootCmd.AddCommand(classifyCmd)
}
