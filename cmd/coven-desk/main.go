// ABOUTME: Terminal client for the coven gateway conversation API.
// ABOUTME: Maintains local conversation state and renders streaming replies.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/coven-desk/internal/backend"
	"github.com/2389/coven-desk/internal/budget"
	"github.com/2389/coven-desk/internal/config"
	"github.com/2389/coven-desk/internal/conversation"
	"github.com/2389/coven-desk/internal/state"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                   _           _
  ___ _____   _____ _ __        __| | ___  ___| | __
 / __/ _ \ \ / / _ \ '_ \ _____/ _' |/ _ \/ __| |/ /
| (_| (_) \ V /  __/ | | |_____| (_| |  __/\__ \   <
 \___\___/ \_/ \___|_| |_|      \__,_|\___||___/_|\_\
`

// getConfigPath returns the path to the desk config file.
// Priority: COVEN_DESK_CONFIG env var > XDG_CONFIG_HOME/coven/desk.yaml > ~/.config/coven/desk.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_DESK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "desk.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "desk.yaml")
}

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Config file path (overrides COVEN_DESK_CONFIG)")
	server := flag.String("server", "", "Gateway server URL (overrides config)")
	flag.Parse()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	if err := run(*configPath, *server); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(configPath, serverOverride string) error {
	explicit := configPath != ""
	if configPath == "" {
		configPath = getConfigPath()
	}

	// Load configuration. A missing file at the default location is not an
	// error; the client runs against localhost with an in-memory state store.
	cfg, err := config.Load(configPath)
	if err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = config.Default()
		configPath = "(built-in defaults)"
	}
	if serverOverride != "" {
		cfg.Gateway.URL = serverOverride
	}

	// Setup logger. Logs write to stderr; stdout carries the transcript.
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Gateway: %s\n", cfg.Gateway.URL)
	green.Print("    ▶ ")
	if cfg.State.Path != "" {
		fmt.Printf("State:   %s\n", cfg.State.Path)
	} else {
		fmt.Printf("State:   in-memory\n")
	}
	if cfg.Budget.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Budget:  %d tokens per %s period\n", cfg.Budget.Limit, cfg.Budget.Period)
	}
	fmt.Println()

	// Setup context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	token, err := cfg.GatewayToken()
	if err != nil {
		return fmt.Errorf("resolving gateway token: %w", err)
	}
	client := backend.NewHTTPClient(cfg.Gateway.URL, backend.NewTokenSource(token, logger), logger)

	persisted, err := openStateStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer persisted.Close()

	tracker := budget.NewTracker(logger)
	if cfg.Budget.Enabled {
		tracker.Configure(cfg.Budget.Period, cfg.Budget.Limit, cfg.Budget.WarningThresholdPercent)
	}

	store := conversation.New(client, persisted, tracker, logger)
	defer store.Close()

	// Consume gateway streaming events for the lifetime of the session.
	go store.Run(ctx, client.Events(ctx))

	printer := newStreamPrinter(store, cfg.UI.RedrawDebounce)
	go printer.run(ctx)

	store.LoadConversations(ctx)

	return runREPL(ctx, store, printer)
}

// openStateStore picks the persistence backend from config. No path means
// selection state lives only for this run.
func openStateStore(cfg *config.Config, logger *slog.Logger) (state.Store, error) {
	if cfg.State.Path == "" {
		return state.NewMemory(), nil
	}
	return state.NewSQLiteStore(cfg.State.Path, logger)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
// Output goes to stderr so the conversation transcript on stdout stays clean.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(os.Stderr, buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
