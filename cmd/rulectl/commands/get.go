package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/rulesmith/internal/cli"
)

var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Get a rule",
	Long: `Show a stored rule and its tree.

Examples:
  rulectl get senior_sales
  rulectl get senior_sales --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := outputFormat()
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		rule, err := c.GetRule(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get rule: %w", err)
		}

		if quiet {
			return nil
		}
		return cli.PrintRule(cmd.OutOrStdout(), rule, f)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
