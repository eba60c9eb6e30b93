package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/rulesmith/internal/cli"
)

var (
	evaluateData string
	evaluateFile string
)

var evaluateCmd = &cobra.Command{
	Use:     "evaluate <name>",
	Aliases: []string{"eval"},
	Short:   "Evaluate a rule against data",
	Long: `Evaluate a stored rule against a JSON record given with --data or --file.

A JSON array of records runs as a batch and reports one result per record.

Examples:
  rulectl evaluate adults --data '{"age": 21}'
  rulectl evaluate adults --file records.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		raw, err := evaluationInput(evaluateData, evaluateFile)
		if err != nil {
			return err
		}
		record, records, err := decodeRecords(raw)
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

		if records != nil {
			batch, err := c.EvaluateBatch(cmd.Context(), name, records)
			if err != nil {
				return fmt.Errorf("failed to evaluate rule: %w", err)
			}
			if quiet {
				return nil
			}
			return cli.PrintBatch(cmd.OutOrStdout(), batch, f)
		}

		result, err := c.Evaluate(cmd.Context(), name, record)
		if err != nil {
			return fmt.Errorf("failed to evaluate rule: %w", err)
		}
		if quiet {
			return nil
		}
		if f == cli.FormatJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"rule": name, "result": result})
		}
		fmt.Fprintln(cmd.OutOrStdout(), result)
		return nil
	},
}

func evaluationInput(data, file string) ([]byte, error) {
	switch {
	case data != "" && file != "":
		return nil, fmt.Errorf("use either --data or --file")
	case data != "":
		return []byte(data), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("missing record: use --data or --file")
}

// decodeRecords accepts one JSON object or an array of them; exactly one of
// the results is non-nil.
func decodeRecords(raw []byte) (map[string]any, []map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []map[string]any
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, nil, fmt.Errorf("invalid records JSON: %w", err)
		}
		if records == nil {
			records = []map[string]any{}
		}
		return nil, records, nil
	}

	var record map[string]any
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return nil, nil, fmt.Errorf("invalid record JSON: %w", err)
	}
	if record == nil {
		return nil, nil, fmt.Errorf("record must be a JSON object")
	}
	return record, nil, nil
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evaluateData, "data", "", "Record as JSON")
	evaluateCmd.Flags().StringVarP(&evaluateFile, "file", "f", "", "File holding a JSON record or array of records")
}
