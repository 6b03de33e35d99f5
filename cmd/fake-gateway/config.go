// ABOUTME: Configuration loading for the fake gateway
// ABOUTME: Loads TOML config with environment variable expansion

package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Reply  ReplyConfig  `toml:"reply"`
	Cost   CostConfig   `toml:"cost"`
}

type ServerConfig struct {
	Addr  string `toml:"addr"`
	Token string `toml:"token"`
}

type ReplyConfig struct {
	ChunkSize  int           `toml:"chunk_size"`
	ChunkDelay time.Duration `toml:"-"`
	// ChunkDelayRaw accepts Go duration strings ("50ms").
	ChunkDelayRaw string `toml:"chunk_delay"`
}

type CostConfig struct {
	Today         float64 `toml:"today"`
	Month         float64 `toml:"month"`
	MonthlyBudget float64 `toml:"monthly_budget"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: "localhost:8080"},
		Reply:  ReplyConfig{ChunkSize: 12, ChunkDelay: 50 * time.Millisecond},
		Cost:   CostConfig{Today: 1.25, Month: 20.40},
	}
}

// LoadConfig reads config from the given path, expanding environment
// variables and filling unset fields with defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Reply.ChunkDelayRaw != "" {
		d, err := time.ParseDuration(cfg.Reply.ChunkDelayRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing reply.chunk_delay: %w", err)
		}
		cfg.Reply.ChunkDelay = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Reply.ChunkSize <= 0 {
		return fmt.Errorf("reply.chunk_size must be positive")
	}
	if c.Reply.ChunkDelay < 0 {
		return fmt.Errorf("reply.chunk_delay must not be negative")
	}
	if c.Cost.MonthlyBudget < 0 {
		return fmt.Errorf("cost.monthly_budget must not be negative")
	}
	return nil
}
