package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/rulesmith/internal/loader"
)

var (
	importDryRun bool
	importForce  bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import rules from a rules file",
	Long: `Create every rule listed in a YAML rules file.

The file has the same format the server loads at startup:

  rules:
    - name: adults
      rule: age >= 18

Examples:
  rulectl import rules.yaml
  rulectl import rules.yaml --dry-run
  rulectl import rules.yaml --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := loader.ReadFile(args[0])
		if err != nil {
			return err
		}
		if len(file.Rules) == 0 {
			return fmt.Errorf("no rules found in file")
		}

		out := cmd.OutOrStdout()
		if verbose {
			fmt.Fprintf(out, "Found %d rule(s) to import\n", len(file.Rules))
		}

		// Dry run mode - just validate and show what would be imported
		if importDryRun {
			fmt.Fprintln(out, "Dry run mode - the following rules would be imported:")
			for _, e := range file.Rules {
				fmt.Fprintf(out, "  - %s: %s\n", e.Name, e.Rule)
			}
			return nil
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		successCount, errorCount := 0, 0
		for _, e := range file.Rules {
			if verbose {
				fmt.Fprintf(out, "Importing rule: %s\n", e.Name)
			}

			if _, err := c.CreateRule(cmd.Context(), e.Name, e.Rule); err != nil {
				errorCount++
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to import rule '%s': %v\n", e.Name, err)
				if !importForce {
					return fmt.Errorf("import failed, use --force to continue on errors")
				}
				continue
			}
			successCount++
		}

		if !quiet {
			fmt.Fprintf(out, "Import complete: %d succeeded, %d failed\n", successCount, errorCount)
		}
		if errorCount > 0 {
			return fmt.Errorf("import completed with errors")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate without importing")
	importCmd.Flags().BoolVar(&importForce, "force", false, "Continue on errors")
}
