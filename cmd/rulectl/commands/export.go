package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/rulesmith/internal/cli"
	"github.com/TimurManjosov/rulesmith/internal/loader"
	"github.com/TimurManjosov/rulesmith/internal/rules"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export rules to a rules file",
	Long: `Write every stored rule to a rules file that "rulectl import" and the
server's RULES_FILE setting both accept. Rules are written in canonical form.

Examples:
  rulectl export --output rules.yaml
  rulectl export --format json > rules.json`,
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

		// Determine output destination
		var output io.Writer = cmd.OutOrStdout()
		if exportOutput != "" && exportOutput != "-" {
			file, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer file.Close()
			output = file
		}

		if err := writeRulesFile(output, list, f); err != nil {
			return err
		}

		if exportOutput != "" && exportOutput != "-" && !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Successfully exported %d rule(s) to %s\n", len(list), exportOutput)
		}
		return nil
	},
}

func writeRulesFile(w io.Writer, list []rules.Rule, f cli.OutputFormat) error {
	file := loader.File{Rules: make([]loader.Entry, len(list))}
	for i, r := range list {
		file.Rules[i] = loader.Entry{Name: r.Name, Rule: r.Root.String()}
	}

	switch f {
	case cli.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(file); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	default:
		// Default to YAML for export
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		if err := encoder.Encode(file); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}
