package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/rulesmith/internal/cli"
)

var parseFile string

var parseCmd = &cobra.Command{
	Use:   "parse [rule]",
	Short: "Parse a rule without storing it",
	Long: `Send rule text to the server and print the resulting tree.

Examples:
  rulectl parse "age > 30 AND (dept == 'Sales' OR vip == 1)"
  rulectl parse --file draft.rule --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := ruleText(cmd, args, parseFile)
		if err != nil {
			return err
		}

		f, err := outputFormat()
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		tree, err := c.Parse(cmd.Context(), text)
		if err != nil {
			return fmt.Errorf("failed to parse rule: %w", err)
		}

		if quiet {
			return nil
		}
		return cli.PrintTree(cmd.OutOrStdout(), tree, f)
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseFile, "file", "f", "", "Read the rule text from a file")
}
