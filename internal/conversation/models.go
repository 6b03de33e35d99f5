// ABOUTME: Engine-side models for conversations and messages.
// ABOUTME: Wire types convert here so UI state never aliases gateway payloads.

package conversation

import (
	"time"

	"github.com/2389/coven-desk/internal/backend"
	"github.com/2389/coven-desk/internal/preview"
)

const (
	// defaultTitle is the placeholder the gateway assigns before the first
	// user message names the thread.
	defaultTitle = "New Conversation"

	// maxTitleLen and maxContentLen bound user input in runes, matching the
	// gateway's own limits so rejections happen before a round-trip.
	maxTitleLen   = 500
	maxContentLen = 1_000_000

	// previewMaxLen bounds sidebar previews.
	previewMaxLen = 80

	// autoTitleMaxLen bounds titles derived from the first user message.
	autoTitleMaxLen = 50
)

// Conversation is the engine's view of a chat thread. Pinned and
// UnreadCount are client-side state layered over the gateway's record.
type Conversation struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Pinned       bool
	MessageCount int
	LastMessage  string
	UnreadCount  int
}

// Message is one chat message in the active conversation. Content is
// mutable while Streaming is true and settles on stream end.
type Message struct {
	ID             string
	ConversationID string
	Role           backend.Role
	Content        string
	Tokens         int64
	Cost           float64
	CreatedAt      time.Time
	Streaming      bool
}

// conversationFromWire converts a gateway conversation, deriving the
// sidebar preview from its last message.
func conversationFromWire(c backend.Conversation) Conversation {
	return Conversation{
		ID:           c.ID,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: c.MessageCount,
		LastMessage:  preview.Text(c.LastMessage, previewMaxLen),
	}
}

// messageFromWire converts a gateway message.
func messageFromWire(m backend.Message) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Tokens:         m.Tokens,
		Cost:           m.Cost,
		CreatedAt:      m.CreatedAt,
	}
}

// estimateTokens approximates a token count from content size for messages
// the gateway reported without one. Four bytes per token tracks English
// text closely enough for budget accounting.
func estimateTokens(content string) int64 {
	if content == "" {
		return 0
	}
	return int64((len(content) + 3) / 4)
}
