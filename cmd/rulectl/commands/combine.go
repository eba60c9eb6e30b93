package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/rulesmith/internal/cli"
	"github.com/TimurManjosov/rulesmith/internal/client"
)

var (
	combineStrategy string
	combineDedupe   bool
)

var combineCmd = &cobra.Command{
	Use:   "combine <rule>...",
	Short: "Combine rules into one tree",
	Long: `Combine stored rule names or rule texts into a single rule.

Each argument that names a stored rule is replaced by that rule; anything
else is parsed as rule text.

Examples:
  rulectl combine adults senior_sales
  rulectl combine adults "vip == 1" --strategy any
  rulectl combine a b c --strategy majority --dedupe`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := outputFormat()
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		tree, err := c.Combine(cmd.Context(), args, client.CombineOptions{
			Strategy: combineStrategy,
			Dedupe:   combineDedupe,
		})
		if err != nil {
			return fmt.Errorf("failed to combine rules: %w", err)
		}

		if quiet {
			return nil
		}
		return cli.PrintTree(cmd.OutOrStdout(), tree, f)
	},
}

func init() {
	rootCmd.AddCommand(combineCmd)

	combineCmd.Flags().StringVar(&combineStrategy, "strategy", "", "Combination strategy (all, any, majority)")
	combineCmd.Flags().BoolVar(&combineDedupe, "dedupe", false, "Drop structurally equal inputs")
}
