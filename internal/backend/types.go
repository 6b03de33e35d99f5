// ABOUTME: Wire types for the gateway command surface.
// ABOUTME: JSON shapes only; the conversation store keeps its own model types.

package backend

import (
	"fmt"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole validates a wire role string. Unknown roles are rejected rather
// than defaulted, so a contract drift surfaces as an error instead of
// misattributed messages.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant, RoleSystem:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown message role %q", s)
	}
}

// Conversation is a thread summary as the gateway reports it.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	LastMessage  string    `json:"last_message,omitempty"`
}

// Message is a single chat message on the wire.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Tokens         int64     `json:"tokens,omitempty"`
	Cost           float64   `json:"cost,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks fields the engine depends on.
func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message missing id")
	}
	if _, err := ParseRole(string(m.Role)); err != nil {
		return fmt.Errorf("message %s: %w", m.ID, err)
	}
	return nil
}

// Stats aggregates a conversation's messages.
type Stats struct {
	MessageCount int     `json:"message_count"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// SendRequest is the payload for the send-message command. Attachments are
// opaque references forwarded to the gateway untouched; routing hints let
// the caller bias model selection without this layer interpreting them.
type SendRequest struct {
	ConversationID string            `json:"conversation_id,omitempty"`
	Content        string            `json:"content"`
	Attachments    []string          `json:"attachments,omitempty"`
	RoutingHints   map[string]string `json:"routing_hints,omitempty"`
}

// SendResult is the synchronous response to send-message. The assistant
// message may still be streaming; its final content arrives over the event
// channel.
type SendResult struct {
	Conversation     Conversation `json:"conversation"`
	UserMessage      Message      `json:"user_message"`
	AssistantMessage Message      `json:"assistant_message"`
	Stats            Stats        `json:"stats"`
	LastMessage      string       `json:"last_message,omitempty"`
}

// CostOverview reports spend for the current day and month. Budget fields
// are nil when no monthly budget is configured on the gateway.
type CostOverview struct {
	Today         float64  `json:"today"`
	Month         float64  `json:"month"`
	MonthlyBudget *float64 `json:"monthly_budget,omitempty"`
	Remaining     *float64 `json:"remaining,omitempty"`
}

// GoalSubmission asks the goal-tracking subsystem to pick up a task
// extracted from chat.
type GoalSubmission struct {
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
}
