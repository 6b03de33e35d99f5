// ABOUTME: Interactive command loop dispatching slash commands to the store.
// ABOUTME: Bare input sends a chat message to the active conversation.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/2389/coven-desk/internal/backend"
	"github.com/2389/coven-desk/internal/budget"
	"github.com/2389/coven-desk/internal/conversation"
)

func runREPL(ctx context.Context, store *conversation.Store, printer *streamPrinter) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	printConversations(store)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	// Resume the conversation persisted from the last run, if any.
	if id := store.ActiveConversationID(); id != "" {
		if err := store.SelectConversation(ctx, id); err == nil {
			printer.flushNow()
		}
	}

	for {
		// Print prompt (include conversation title if one is selected)
		if title := activeTitle(store); title != "" {
			fmt.Printf("[%s]> ", truncate(title, 24))
		} else {
			fmt.Print("> ")
		}

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		// Trim whitespace
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		// Check for quit commands
		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if strings.HasPrefix(input, "/") {
			if err := dispatch(ctx, store, printer, input); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			fmt.Println()
			continue
		}

		// Send message and wait for the streamed reply
		if err := store.SendMessage(ctx, input, nil); err != nil {
			fmt.Printf("[error] %v\n", err)
			fmt.Println()
			continue
		}
		printer.flushNow()
		waitForReply(ctx, store, printer)
		printBudgetAlerts(store)
		fmt.Println()
	}
}

// dispatch routes one slash command. The command word is matched exactly;
// everything after it is the argument string.
func dispatch(ctx context.Context, store *conversation.Store, printer *streamPrinter, input string) error {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/list":
		store.LoadConversations(ctx)
		if err := store.LastError(); err != nil {
			fmt.Printf("[error] refresh failed: %v\n", err)
		}
		printConversations(store)
	case "/new":
		if args == "" {
			args = "New Conversation"
		}
		conv, err := store.CreateConversation(ctx, args)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s: %s\n", conv.ID, conv.Title)
		printer.flushNow()
	case "/use":
		if args == "" {
			if title := activeTitle(store); title != "" {
				fmt.Printf("Active conversation: %s\n", title)
			} else {
				fmt.Println("No conversation selected. Use /use <id>.")
			}
			return nil
		}
		if err := store.SelectConversation(ctx, args); err != nil {
			return err
		}
		// A history load failure leaves the selection in place; surface it.
		if err := store.LastError(); err != nil {
			fmt.Printf("[error] loading history: %v\n", err)
		}
		printer.flushNow()
	case "/rename":
		id, title, ok := strings.Cut(args, " ")
		if !ok {
			return fmt.Errorf("usage: /rename <id> <title>")
		}
		if err := store.RenameConversation(ctx, id, strings.TrimSpace(title)); err != nil {
			return err
		}
		fmt.Println("Renamed")
	case "/del":
		if args == "" {
			return fmt.Errorf("usage: /del <id>")
		}
		if err := store.DeleteConversation(ctx, args); err != nil {
			return err
		}
		fmt.Println("Deleted")
	case "/pin":
		if args == "" {
			return fmt.Errorf("usage: /pin <id>")
		}
		store.TogglePinned(args)
		printConversations(store)
	case "/stats":
		id := store.ActiveConversationID()
		if args != "" {
			id = args
		}
		if id == "" {
			return fmt.Errorf("no conversation selected. Use /use <id> first")
		}
		stats, err := store.Stats(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Messages: %d  Tokens: %d  Cost: $%.4f\n", stats.MessageCount, stats.TotalTokens, stats.TotalCost)
	case "/cost":
		overview, err := store.CostOverview(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Today: $%.2f  Month: $%.2f\n", overview.Today, overview.Month)
		if overview.MonthlyBudget != nil {
			fmt.Printf("Monthly budget: $%.2f", *overview.MonthlyBudget)
			if overview.Remaining != nil {
				fmt.Printf("  remaining: $%.2f", *overview.Remaining)
			}
			fmt.Println()
		}
	case "/budget":
		return budgetCommand(ctx, store, args)
	case "/alerts":
		printAlerts(store)
	case "/dismiss":
		if args == "" {
			return fmt.Errorf("usage: /dismiss <alert-id>")
		}
		if !store.Budget().Dismiss(args) {
			return fmt.Errorf("no alert with id %s", args)
		}
		fmt.Println("Dismissed")
	case "/help":
		printHelp()
	default:
		return fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return nil
}

// budgetCommand shows or changes budget settings. A bare number configures
// the local token tracker; a $-prefixed amount sets the gateway-side
// monthly dollar budget.
func budgetCommand(ctx context.Context, store *conversation.Store, args string) error {
	if args == "" {
		printBudget(store)
		return nil
	}

	if amount, ok := strings.CutPrefix(args, "$"); ok {
		value, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			return fmt.Errorf("bad amount %q", amount)
		}
		if err := store.SetMonthlyBudget(ctx, value); err != nil {
			return err
		}
		fmt.Printf("Monthly budget set to $%.2f\n", value)
		return nil
	}

	if args == "off" {
		store.Budget().Disable()
		fmt.Println("Token budget disabled")
		return nil
	}

	fields := strings.Fields(args)
	limit, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || limit <= 0 {
		return fmt.Errorf("usage: /budget <limit> [daily|weekly|monthly|per-conversation] or /budget $<amount>")
	}
	period := budget.PeriodMonthly
	if len(fields) > 1 {
		period, err = budget.ParsePeriod(fields[1])
		if err != nil {
			return err
		}
	}
	store.Budget().Configure(period, limit, defaultWarningPercent)
	fmt.Printf("Token budget: %d per %s period\n", limit, period)
	return nil
}

// defaultWarningPercent matches the config-file default for budgets
// enabled from the command line.
const defaultWarningPercent = 80

// waitForReply blocks until the assistant reply settles and the printer
// has drained it, so the next prompt does not interleave with streamed
// output. The send result's assistant stub arrives empty before the first
// stream event, so an idle printer alone does not mean the reply is done;
// a quiet period bounds the wait for gateways that never stream.
func waitForReply(ctx context.Context, store *conversation.Store, printer *streamPrinter) {
	const quietAfter = 2 * time.Second
	idleSince := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
		if !printer.idle() {
			idleSince = time.Now()
			continue
		}
		if lastAssistantSettled(store) || time.Since(idleSince) > quietAfter {
			return
		}
	}
}

// lastAssistantSettled reports whether the newest assistant message has
// finished streaming and carries content.
func lastAssistantSettled(store *conversation.Store) bool {
	msgs := store.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != backend.RoleAssistant {
			continue
		}
		return !m.Streaming && m.Content != ""
	}
	return true
}

func activeTitle(store *conversation.Store) string {
	id := store.ActiveConversationID()
	if id == "" {
		return ""
	}
	for _, c := range store.Conversations() {
		if c.ID == id {
			return c.Title
		}
	}
	return id
}

func printConversations(store *conversation.Store) {
	convs := store.Conversations()
	if len(convs) == 0 {
		fmt.Println("No conversations. Type a message to start one, or /new <title>.")
		return
	}

	fmt.Println("Conversations:")
	for _, c := range convs {
		marker := "  "
		if c.Pinned {
			marker = "* "
		}
		unread := ""
		if c.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", c.UnreadCount)
		}
		fmt.Printf("  %s%s: %s%s  \033[2m%s\033[0m\n", marker, c.ID, truncate(c.Title, 40), unread, formatAge(c.UpdatedAt))
		if c.LastMessage != "" {
			fmt.Printf("      \033[2m%s\033[0m\n", truncate(c.LastMessage, 70))
		}
	}
}

func printBudget(store *conversation.Store) {
	b := store.Budget().Budget()
	if !b.Enabled {
		fmt.Println("Token budget disabled. /budget <limit> [period] to enable.")
		return
	}
	fmt.Printf("Token budget: %d/%d (%.0f%%) per %s period\n", b.CurrentUsage, b.Limit, b.Percentage(), b.Period)
	if !b.PeriodEnd.IsZero() {
		fmt.Printf("Period resets %s\n", b.PeriodEnd.Format("2006-01-02 15:04 MST"))
	}
}

func printAlerts(store *conversation.Store) {
	alerts := store.Budget().Alerts()
	active := 0
	for _, a := range alerts {
		if a.Dismissed {
			continue
		}
		active++
		fmt.Printf("  [%s] %s: %s\n", a.ID, a.Severity, a.Message)
	}
	if active == 0 {
		fmt.Println("No active budget alerts")
	}
}

// printBudgetAlerts shows undismissed alerts raised since the last send.
func printBudgetAlerts(store *conversation.Store) {
	for _, a := range store.Budget().Alerts() {
		if a.Dismissed {
			continue
		}
		fmt.Printf("\033[33m[budget %s]\033[0m %s (dismiss with /dismiss %s)\n", a.Severity, a.Message, a.ID)
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /list            Refresh and show all conversations")
	fmt.Println("  /new <title>     Create a conversation")
	fmt.Println("  /use <id>        Switch conversation and replay its history")
	fmt.Println("  /rename <id> <title>  Rename a conversation")
	fmt.Println("  /del <id>        Delete a conversation")
	fmt.Println("  /pin <id>        Toggle pin (pinned sort first)")
	fmt.Println("  /stats [id]      Message, token, and cost totals")
	fmt.Println("  /cost            Spend overview from the gateway")
	fmt.Println("  /budget          Show local token budget")
	fmt.Println("  /budget 50000 weekly   Track tokens against a local limit")
	fmt.Println("  /budget $25      Set the gateway monthly dollar budget")
	fmt.Println("  /alerts          List budget alerts")
	fmt.Println("  /dismiss <id>    Dismiss a budget alert")
	fmt.Println("  /help            Show this help")
	fmt.Println("  /quit            Exit")
}

// formatAge renders a timestamp as a coarse relative age.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// truncate shortens a string to maxLen characters, adding ellipsis if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
