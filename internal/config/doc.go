// Package config handles configuration loading for coven-desk.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path given with the -config flag
//  2. Path from COVEN_DESK_CONFIG environment variable
//  3. ~/.config/coven/desk.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	gateway:
//	  token: "${COVEN_TOKEN}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	ui:
//	  redraw_debounce: "150ms"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Gateway connection:
//
//	gateway:
//	  url: "http://localhost:8080"
//	  token: "${COVEN_TOKEN}"       # Inline bearer token
//	  token_file: ""                # Read token from file when no inline token
//
// Durable UI state:
//
//	state:
//	  path: "~/.local/share/coven/desk.db"  # Empty runs in-memory
//
// Client-side token budget:
//
//	budget:
//	  enabled: true
//	  period: "monthly"             # daily, weekly, monthly, per-conversation
//	  limit: 500000                 # Tokens per period
//	  warning_threshold_percent: 80
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Gateway URL presence
//   - Budget limit positivity when the budget is enabled
//   - Warning threshold range
//   - Duration and period format validity
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/home/me/.config/coven/desk.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
