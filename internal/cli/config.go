package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables read by the CLI.
const (
	EnvConfigPath = "RULECTL_CONFIG"
	EnvBaseURL    = "RULECTL_BASE_URL"
)

// DefaultBaseURL is used when nothing else is configured.
const DefaultBaseURL = "http://localhost:4000"

// Config represents the CLI configuration
type Config struct {
	DefaultServer string                  `yaml:"default_server"`
	Servers       map[string]ServerConfig `yaml:"servers"`
	Output        string                  `yaml:"output,omitempty"`
}

// ServerConfig represents one rulesmith server the CLI can talk to
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// GetConfigPath returns the path to the config file. RULECTL_CONFIG
// overrides the default of ~/.rulectl/config.yaml.
func GetConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".rulectl", "config.yaml"), nil
}

// LoadConfig loads the configuration from file. A missing file yields an
// empty configuration.
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Servers: make(map[string]ServerConfig)}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Servers == nil {
		cfg.Servers = make(map[string]ServerConfig)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to file
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveBaseURL picks the server to talk to.
// Priority: --base-url flag > RULECTL_BASE_URL > named or default server in
// the config file > DefaultBaseURL.
func ResolveBaseURL(serverName, baseURLFlag string) (string, error) {
	if baseURLFlag != "" {
		return baseURLFlag, nil
	}
	if env := os.Getenv(EnvBaseURL); env != "" {
		return env, nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return "", err
	}

	if serverName == "" {
		serverName = cfg.DefaultServer
	}
	if serverName == "" {
		return DefaultBaseURL, nil
	}

	server, ok := cfg.Servers[serverName]
	if !ok {
		return "", fmt.Errorf("server '%s' not found in config", serverName)
	}
	if strings.TrimSpace(server.BaseURL) == "" {
		return "", fmt.Errorf("base_url must be configured for server '%s'", serverName)
	}
	return server.BaseURL, nil
}

// InitConfig creates a default config file. An existing file is kept unless
// force is set.
func InitConfig(force bool) (string, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return configPath, fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	cfg := &Config{
		DefaultServer: "local",
		Servers: map[string]ServerConfig{
			"local": {BaseURL: DefaultBaseURL},
		},
		Output: string(FormatTable),
	}
	return configPath, SaveConfig(cfg)
}
