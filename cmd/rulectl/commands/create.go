package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/rulesmith/internal/cli"
)

var createFile string

var createCmd = &cobra.Command{
	Use:   "create <name> [rule]",
	Short: "Create or replace a rule",
	Long: `Parse rule text on the server and store it under a name.

The rule text is taken from the second argument or, with --file, from a
file ("-" reads standard input).

Examples:
  rulectl create adults "age >= 18"
  rulectl create senior_sales --file senior_sales.rule`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		text, err := ruleText(cmd, args[1:], createFile)
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

		rule, err := c.CreateRule(cmd.Context(), name, text)
		if err != nil {
			return fmt.Errorf("failed to create rule: %w", err)
		}

		if quiet {
			return nil
		}
		if f == cli.FormatTable {
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully stored rule '%s' (%s)\n", rule.Name, rule.Root)
			return nil
		}
		return cli.PrintRule(cmd.OutOrStdout(), rule, f)
	},
}

// ruleText returns the rule given as an argument or read from file.
func ruleText(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case len(args) > 0 && file != "":
		return "", fmt.Errorf("give the rule as an argument or with --file, not both")
	case len(args) > 0:
		return args[0], nil
	case file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read rule: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read rule: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", fmt.Errorf("missing rule text")
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "Read the rule text from a file")
}
