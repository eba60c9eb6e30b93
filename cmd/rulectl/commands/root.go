package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/rulesmith/internal/cli"
	"github.com/TimurManjosov/rulesmith/internal/client"
)

var (
	// Global flags
	baseURL string
	server  string
	format  string
	quiet   bool
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rulectl",
	Short: "CLI tool for managing rules",
	Long: `rulectl is a command-line tool for the rulesmith rule service.

It creates, inspects, evaluates and combines rules, and moves rule sets
in and out of YAML rules files.

Examples:
  rulectl create senior_sales "age > 30 AND department == 'Sales'"
  rulectl evaluate senior_sales --data '{"age": 35, "department": "Sales"}'
  rulectl combine senior_sales "vip == 1" --strategy any
  rulectl export --output rules.yaml
  rulectl import rules.yaml --server staging`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the rulesmith API")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "Named server from the config file")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}

// newClient builds an API client for the server selected by the global flags.
func newClient() (*client.Client, error) {
	url, err := cli.ResolveBaseURL(server, baseURL)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if verbose {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Using server %s\n", url)
	}
	return client.NewClient(url), nil
}

// outputFormat returns --format, falling back to the config file's output
// setting when the flag was not given.
func outputFormat() (cli.OutputFormat, error) {
	if !rootCmd.PersistentFlags().Changed("format") {
		if cfg, err := cli.LoadConfig(); err == nil && cfg.Output != "" {
			return cli.ParseFormat(cfg.Output)
		}
	}
	return cli.ParseFormat(format)
}
