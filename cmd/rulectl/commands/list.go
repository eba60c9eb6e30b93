package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/rulesmith/internal/cli"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all rules",
	Long: `List every stored rule, sorted by name.

Examples:
  rulectl list
  rulectl list --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := outputFormat()
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		list, err := c.ListRules(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list rules: %w", err)
		}

		if quiet {
			return nil
		}
		if len(list) == 0 && f == cli.FormatTable {
			fmt.Fprintln(cmd.OutOrStdout(), "No rules found")
			return nil
		}
		return cli.PrintRules(cmd.OutOrStdout(), list, f)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
