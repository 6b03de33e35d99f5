// ABOUTME: Debounced transcript renderer fed by store change notifications.
// ABOUTME: Replays history on conversation switches and appends streaming deltas.

package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/2389/coven-desk/internal/backend"
	"github.com/2389/coven-desk/internal/conversation"
)

// streamPrinter renders the active conversation transcript to stdout. It
// subscribes to store change topics, coalesces bursts behind a short
// debounce, and prints only the unseen suffix of each streaming message so
// a chunk burst becomes a single append.
type streamPrinter struct {
	store    *conversation.Store
	debounce time.Duration

	mu       sync.Mutex
	conv     string         // conversation the transcript on screen belongs to
	replayed bool           // false until the first flush
	printed  map[string]int // runes already written per message id
	open     string         // message id with an unterminated line
}

func newStreamPrinter(store *conversation.Store, debounce time.Duration) *streamPrinter {
	if debounce <= 0 {
		debounce = 50 * time.Millisecond
	}
	return &streamPrinter{
		store:    store,
		debounce: debounce,
		printed:  make(map[string]int),
	}
}

// run consumes change notifications until ctx is cancelled. A notification
// arms the debounce timer; the repaint happens when it fires, so a burst of
// stream chunks renders once.
func (p *streamPrinter) run(ctx context.Context) {
	topics, _ := p.store.Subscribe(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case _, ok := <-topics:
			if !ok {
				return
			}
			if fire == nil {
				timer = time.NewTimer(p.debounce)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			p.flush()
		}
	}
}

// flushNow repaints synchronously. The command loop calls it when output
// must land before the next prompt.
func (p *streamPrinter) flushNow() {
	p.flush()
}

// idle reports whether every assistant message in the active conversation
// is settled and fully printed.
func (p *streamPrinter) idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range p.store.Messages() {
		if m.Role != backend.RoleAssistant {
			continue
		}
		if m.Streaming || p.printed[m.ID] < len([]rune(m.Content)) {
			return false
		}
	}
	return true
}

func (p *streamPrinter) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	active := p.store.ActiveConversationID()
	if active != p.conv || !p.replayed {
		p.conv = active
		p.replayed = true
		p.printed = make(map[string]int)
		p.endLineLocked()
		p.replayLocked()
		return
	}

	msgs := p.store.Messages()

	// Drop the open line if its message vanished under it.
	if p.open != "" {
		found := false
		for _, m := range msgs {
			if m.ID == p.open {
				found = true
				break
			}
		}
		if !found {
			p.endLineLocked()
		}
	}

	for _, m := range msgs {
		if m.Role != backend.RoleAssistant {
			// The user's own input is already on screen at the prompt.
			p.printed[m.ID] = len([]rune(m.Content))
			continue
		}
		runes := []rune(m.Content)
		n := p.printed[m.ID]
		if n > len(runes) {
			// Content settled shorter than what streamed. A line client
			// cannot erase, so resync without repainting.
			n = len(runes)
			p.printed[m.ID] = n
		}
		if len(runes) > n {
			if p.open != "" && p.open != m.ID {
				p.endLineLocked()
			}
			if n == 0 {
				fmt.Print(assistantPrefix)
			}
			fmt.Print(string(runes[n:]))
			p.printed[m.ID] = len(runes)
			p.open = m.ID
		}
		if !m.Streaming && p.open == m.ID {
			p.endLineLocked()
		}
	}
}

// replayLocked prints the whole transcript of the freshly selected
// conversation and baselines every message as seen.
func (p *streamPrinter) replayLocked() {
	msgs := p.store.Messages()
	if len(msgs) == 0 {
		return
	}

	fmt.Println(strings.Repeat("-", 60))
	for _, m := range msgs {
		p.printed[m.ID] = len([]rune(m.Content))

		prefix := "  "
		switch m.Role {
		case backend.RoleUser:
			prefix = userPrefix
		case backend.RoleAssistant:
			prefix = assistantPrefix
		}
		text := m.Content
		if len(text) > 200 {
			text = text[:197] + "..."
		}
		fmt.Printf("%s%s\n", prefix, text)
	}
	fmt.Println(strings.Repeat("-", 60))
}

func (p *streamPrinter) endLineLocked() {
	if p.open == "" {
		return
	}
	fmt.Println()
	p.open = ""
}

const (
	userPrefix      = "\033[34m→\033[0m " // Blue arrow for user messages
	assistantPrefix = "\033[32m←\033[0m " // Green arrow for assistant messages
)
