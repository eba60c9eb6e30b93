// Package config provides application configuration loading from environment variables and .env files.
// It uses viper for flexible configuration management with sensible defaults.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from environment variables or .env file.
// Configuration priority: environment variables > .env file > defaults.
type Config struct {
	AppEnv             string   // Application environment (dev, staging, prod)
	HTTPAddr           string   // HTTP server bind address (e.g., ":4000")
	MetricsAddr        string   // Metrics server bind address
	StoreType          string   // Storage backend type (memory, postgres or sqlite)
	DatabaseDSN        string   // PostgreSQL connection string
	SQLitePath         string   // SQLite database file
	OverwritePolicy    string   // What create does with an existing name (overwrite or reject)
	CombineStrategy    string   // Default combine strategy (all, any or majority)
	RateLimitPerIP     int      // Requests per minute per client IP
	CORSAllowedOrigins []string // Origins allowed to call the API from a browser
	LogLevel           string   // zerolog level name
	LogFormat          string   // json or console
	RulesFile          string   // Optional YAML file of rules loaded at startup
	RulesWatch         bool     // Reload RulesFile when it changes
	BatchWorkers       int      // Goroutines used by batch evaluation
	MaxRuleLength      int      // Maximum rule text length in bytes

	WebhookURLs       []string      // Endpoints notified of rule changes
	WebhookSecret     string        // HMAC key for the X-Rulesmith-Signature header
	WebhookEvents     []string      // Event types to send; empty sends all
	WebhookMaxRetries int           // Retries after a failed delivery
	WebhookTimeout    time.Duration // Per-attempt delivery timeout
}

// Load reads configuration from environment variables and .env file (if present).
// Environment variables take precedence over .env file values.
//
// Load does not check constraints between fields (e.g. postgres requires a
// DSN). Call Validate for that.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	setConfigDefaults(v)

	return &Config{
		AppEnv:             v.GetString("APP_ENV"),
		HTTPAddr:           v.GetString("APP_HTTP_ADDR"),
		MetricsAddr:        v.GetString("METRICS_ADDR"),
		StoreType:          strings.ToLower(v.GetString("STORE_TYPE")),
		DatabaseDSN:        v.GetString("DB_DSN"),
		SQLitePath:         v.GetString("SQLITE_PATH"),
		OverwritePolicy:    strings.ToLower(v.GetString("OVERWRITE_POLICY")),
		CombineStrategy:    strings.ToLower(v.GetString("COMBINE_STRATEGY")),
		RateLimitPerIP:     v.GetInt("RATE_LIMIT_PER_IP"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          strings.ToLower(v.GetString("LOG_FORMAT")),
		RulesFile:          v.GetString("RULES_FILE"),
		RulesWatch:         v.GetBool("RULES_WATCH"),
		BatchWorkers:       v.GetInt("BATCH_WORKERS"),
		MaxRuleLength:      v.GetInt("MAX_RULE_LENGTH"),
		WebhookURLs:        splitList(v.GetString("WEBHOOK_URLS")),
		WebhookSecret:      v.GetString("WEBHOOK_SECRET"),
		WebhookEvents:      splitList(v.GetString("WEBHOOK_EVENTS")),
		WebhookMaxRetries:  v.GetInt("WEBHOOK_MAX_RETRIES"),
		WebhookTimeout:     v.GetDuration("WEBHOOK_TIMEOUT"),
	}, nil
}

// setConfigDefaults sets default values for all configuration options.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":4000")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("STORE_TYPE", "memory")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("SQLITE_PATH", "rules.db")
	v.SetDefault("OVERWRITE_POLICY", "overwrite")
	v.SetDefault("COMBINE_STRATEGY", "all")
	v.SetDefault("RATE_LIMIT_PER_IP", 100)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("RULES_FILE", "")
	v.SetDefault("RULES_WATCH", false)
	v.SetDefault("BATCH_WORKERS", 8)
	v.SetDefault("MAX_RULE_LENGTH", 4096)
	v.SetDefault("WEBHOOK_URLS", "")
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("WEBHOOK_EVENTS", "")
	v.SetDefault("WEBHOOK_MAX_RETRIES", 3)
	v.SetDefault("WEBHOOK_TIMEOUT", "10s")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidationError represents a configuration validation error with details about what failed.
type ValidationError struct {
	Field   string // Name of the configuration field
	Message string // Human-readable error message
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks the configuration at startup and returns the first
// ValidationError found, or nil.
//
// Rules:
//  1. StoreType is memory, postgres or sqlite
//  2. postgres requires DB_DSN; sqlite requires SQLITE_PATH
//  3. APP_HTTP_ADDR and METRICS_ADDR are non-empty
//  4. OVERWRITE_POLICY, COMBINE_STRATEGY and LOG_FORMAT hold known values
//  5. numeric limits are positive
//  6. RULES_WATCH requires RULES_FILE
//  7. webhook URLs are absolute http(s) URLs, signed with a secret
func (c *Config) Validate() error {
	if !slices.Contains([]string{"memory", "postgres", "sqlite"}, c.StoreType) {
		return ValidationError{
			Field:   "STORE_TYPE",
			Message: fmt.Sprintf("must be 'memory', 'postgres' or 'sqlite', got '%s'", c.StoreType),
		}
	}

	if c.StoreType == "postgres" && c.DatabaseDSN == "" {
		return ValidationError{
			Field:   "DB_DSN",
			Message: "database DSN is required when STORE_TYPE=postgres",
		}
	}

	if c.StoreType == "sqlite" && c.SQLitePath == "" {
		return ValidationError{
			Field:   "SQLITE_PATH",
			Message: "database path is required when STORE_TYPE=sqlite",
		}
	}

	if c.HTTPAddr == "" {
		return ValidationError{
			Field:   "APP_HTTP_ADDR",
			Message: "HTTP server address cannot be empty",
		}
	}

	if c.MetricsAddr == "" {
		return ValidationError{
			Field:   "METRICS_ADDR",
			Message: "metrics server address cannot be empty",
		}
	}

	if !slices.Contains([]string{"overwrite", "reject"}, c.OverwritePolicy) {
		return ValidationError{
			Field:   "OVERWRITE_POLICY",
			Message: fmt.Sprintf("must be 'overwrite' or 'reject', got '%s'", c.OverwritePolicy),
		}
	}

	if !slices.Contains([]string{"all", "any", "majority"}, c.CombineStrategy) {
		return ValidationError{
			Field:   "COMBINE_STRATEGY",
			Message: fmt.Sprintf("must be 'all', 'any' or 'majority', got '%s'", c.CombineStrategy),
		}
	}

	if !slices.Contains([]string{"json", "console"}, c.LogFormat) {
		return ValidationError{
			Field:   "LOG_FORMAT",
			Message: fmt.Sprintf("must be 'json' or 'console', got '%s'", c.LogFormat),
		}
	}

	if c.RateLimitPerIP <= 0 {
		return ValidationError{Field: "RATE_LIMIT_PER_IP", Message: "must be positive"}
	}
	if c.BatchWorkers <= 0 {
		return ValidationError{Field: "BATCH_WORKERS", Message: "must be positive"}
	}
	if c.MaxRuleLength <= 0 {
		return ValidationError{Field: "MAX_RULE_LENGTH", Message: "must be positive"}
	}

	if c.RulesWatch && c.RulesFile == "" {
		return ValidationError{
			Field:   "RULES_WATCH",
			Message: "RULES_FILE must be set to watch it",
		}
	}

	for _, raw := range c.WebhookURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ValidationError{
				Field:   "WEBHOOK_URLS",
				Message: fmt.Sprintf("invalid webhook URL '%s'", raw),
			}
		}
	}
	if len(c.WebhookURLs) > 0 && c.WebhookSecret == "" {
		return ValidationError{
			Field:   "WEBHOOK_SECRET",
			Message: "a signing secret is required when WEBHOOK_URLS is set",
		}
	}
	for _, e := range c.WebhookEvents {
		if !slices.Contains([]string{"rule.created", "rule.replaced", "rule.deleted"}, e) {
			return ValidationError{
				Field:   "WEBHOOK_EVENTS",
				Message: fmt.Sprintf("unknown event '%s'", e),
			}
		}
	}
	if c.WebhookMaxRetries < 0 {
		return ValidationError{Field: "WEBHOOK_MAX_RETRIES", Message: "must not be negative"}
	}
	if c.WebhookTimeout <= 0 {
		return ValidationError{Field: "WEBHOOK_TIMEOUT", Message: "must be positive"}
	}

	return nil
}
