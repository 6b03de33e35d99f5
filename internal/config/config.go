// ABOUTME: Configuration loading and parsing for coven-desk
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389/coven-desk/internal/budget"
)

// Config represents the complete coven-desk configuration
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	State   StateConfig   `yaml:"state"`
	Budget  BudgetConfig  `yaml:"budget"`
	UI      UIConfig      `yaml:"ui"`
	Logging LoggingConfig `yaml:"logging"`
}

// GatewayConfig holds the connection to the coven gateway
type GatewayConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
	// TokenFile is read when no inline token is set. Useful for tokens
	// managed by external tooling.
	TokenFile string `yaml:"token_file"`
}

// StateConfig holds durable UI-state storage configuration
type StateConfig struct {
	// Path to the sqlite state file. Empty runs with in-memory state only.
	Path string `yaml:"path"`
}

// BudgetConfig holds client-side token budget configuration
type BudgetConfig struct {
	Enabled                 bool  `yaml:"enabled"`
	Limit                   int64 `yaml:"limit"`
	WarningThresholdPercent int   `yaml:"warning_threshold_percent"`

	Period budget.Period `yaml:"-"`

	// Raw string value for YAML unmarshaling
	PeriodRaw string `yaml:"period"`
}

// UIConfig holds interactive client tuning
type UIConfig struct {
	RedrawDebounce time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	RedrawDebounceRaw string `yaml:"redraw_debounce"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.Budget.Period, err = budget.ParsePeriod(cfg.Budget.PeriodRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing budget.period: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file exists: a
// local unauthenticated gateway with in-memory state and no budget.
func Default() *Config {
	cfg := &Config{Gateway: GatewayConfig{URL: "http://localhost:8080"}}
	cfg.applyDefaults()
	cfg.Budget.Period, _ = budget.ParsePeriod(cfg.Budget.PeriodRaw)
	return cfg
}

// applyDefaults fills the fields the file may omit.
func (c *Config) applyDefaults() {
	if c.Budget.PeriodRaw == "" {
		c.Budget.PeriodRaw = "monthly"
	}
	if c.Budget.WarningThresholdPercent == 0 {
		c.Budget.WarningThresholdPercent = 80
	}
	if c.UI.RedrawDebounceRaw == "" {
		c.UI.RedrawDebounce = 150 * time.Millisecond
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}

	if c.Budget.Enabled && c.Budget.Limit <= 0 {
		return fmt.Errorf("budget.limit must be positive when budget is enabled")
	}
	if p := c.Budget.WarningThresholdPercent; p < 0 || p > 100 {
		return fmt.Errorf("budget.warning_threshold_percent must be between 0 and 100")
	}

	return nil
}

// GatewayToken resolves the bearer token for gateway requests. An inline
// token wins; otherwise token_file is read and trimmed. Empty means the
// gateway runs unauthenticated.
func (c *Config) GatewayToken() (string, error) {
	if c.Gateway.Token != "" {
		return c.Gateway.Token, nil
	}
	if c.Gateway.TokenFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Gateway.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.UI.RedrawDebounceRaw != "" {
		cfg.UI.RedrawDebounce, err = time.ParseDuration(cfg.UI.RedrawDebounceRaw)
		if err != nil {
			return fmt.Errorf("parsing redraw_debounce %q: %w", cfg.UI.RedrawDebounceRaw, err)
		}
	}

	return nil
}
