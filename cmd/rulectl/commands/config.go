package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/rulesmith/internal/cli"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the rulectl configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Create a default configuration file at ~/.rulectl/config.yaml, or at
$RULECTL_CONFIG when set.

Example:
  rulectl config init`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := cli.InitConfig(configInitForce)
		if err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n", configPath)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	Long: `Display the current configuration.

Example:
  rulectl config list`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Default Server: %s\n\n", cfg.DefaultServer)
		fmt.Fprintln(out, "Servers:")
		names := make([]string, 0, len(cfg.Servers))
		for name := range cfg.Servers {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %s:\n", name)
			fmt.Fprintf(out, "    base_url: %s\n", cfg.Servers[name].BaseURL)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value. Keys are "default_server",
"output" or "<server>.base_url".

Examples:
  rulectl config get default_server
  rulectl config get local.base_url`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		value, err := configValue(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value. Setting "<server>.base_url" creates
the server entry when it does not exist.

Examples:
  rulectl config set staging.base_url https://rules.staging.example.com
  rulectl config set default_server staging`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cli.SaveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Successfully set %s\n", args[0])
		return nil
	},
}

func configValue(cfg *cli.Config, key string) (string, error) {
	switch key {
	case "default_server":
		return cfg.DefaultServer, nil
	case "output":
		return cfg.Output, nil
	}

	serverName, err := splitServerKey(key)
	if err != nil {
		return "", err
	}
	s, ok := cfg.Servers[serverName]
	if !ok {
		return "", fmt.Errorf("server '%s' not found", serverName)
	}
	return s.BaseURL, nil
}

func setConfigValue(cfg *cli.Config, key, value string) error {
	switch key {
	case "default_server":
		if _, ok := cfg.Servers[value]; !ok {
			return fmt.Errorf("server '%s' not found", value)
		}
		cfg.DefaultServer = value
		return nil
	case "output":
		f, err := cli.ParseFormat(value)
		if err != nil {
			return err
		}
		cfg.Output = string(f)
		return nil
	}

	serverName, err := splitServerKey(key)
	if err != nil {
		return err
	}
	s := cfg.Servers[serverName]
	s.BaseURL = value
	cfg.Servers[serverName] = s
	return nil
}

// splitServerKey returns the server name of a "<server>.base_url" key.
func splitServerKey(key string) (string, error) {
	serverName, field, ok := strings.Cut(key, ".")
	if !ok || serverName == "" {
		return "", fmt.Errorf("invalid key format, expected 'server.base_url', 'default_server' or 'output'")
	}
	if field != "base_url" {
		return "", fmt.Errorf("unknown key '%s', valid keys: base_url", field)
	}
	return serverName, nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
}
