package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/rulesmith/internal/cli"
)

var attributesCmd = &cobra.Command{
	Use:     "attributes <name>",
	Aliases: []string{"check"},
	Short:   "List the attributes a rule reads",
	Long: `Show the attribute names a stored rule references, in the order they
first appear in the rule.

Example:
  rulectl attributes senior_sales`,
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

		attrs, err := c.Attributes(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get attributes: %w", err)
		}

		if quiet {
			return nil
		}
		return cli.PrintAttributes(cmd.OutOrStdout(), args[0], attrs, f)
	},
}

func init() {
	rootCmd.AddCommand(attributesCmd)
}
