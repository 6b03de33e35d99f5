// ABOUTME: Adapter exposing the store's mutation surface to the stream ingestor.
// ABOUTME: Keeps streaming writes off the store's public API.

package conversation

import (
	"time"

	"github.com/2389/coven-desk/internal/backend"
	"github.com/2389/coven-desk/internal/preview"
	"github.com/2389/coven-desk/internal/stream"
)

// streamSink implements stream.Sink against the store. Every method takes
// the store mutex itself; the ingestor never holds it.
type streamSink struct {
	store *Store
}

var _ stream.Sink = streamSink{}

func (k streamSink) ActiveConversationID() string {
	return k.store.ActiveConversationID()
}

// UpsertStreamingMessage creates the assistant placeholder or re-flags an
// existing message as streaming. A placeholder also bumps the owning
// conversation's count and recency, since it is a new message arriving.
func (k streamSink) UpsertStreamingMessage(conversationID, messageID string, createdAt time.Time) {
	s := k.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID != conversationID {
		return
	}

	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].Streaming = true
			s.notify(TopicMessages)
			return
		}
	}

	s.messages = append(s.messages, Message{
		ID:             messageID,
		ConversationID: conversationID,
		Role:           backend.RoleAssistant,
		CreatedAt:      createdAt,
		Streaming:      true,
	})
	s.sortMessagesLocked()

	if idx := s.findConversationLocked(conversationID); idx >= 0 {
		c := &s.conversations[idx]
		c.MessageCount++
		if createdAt.After(c.UpdatedAt) {
			c.UpdatedAt = createdAt
		}
		Reconcile(s.conversations, s.pinned)
		s.notify(TopicConversations)
	}
	s.notify(TopicMessages)
}

// ReplaceStreamingContent applies a cumulative snapshot and refreshes the
// conversation's preview and recency.
func (k streamSink) ReplaceStreamingContent(conversationID, messageID, content string) {
	s := k.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID != conversationID {
		return
	}

	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].Content = content
			break
		}
	}

	if idx := s.findConversationLocked(conversationID); idx >= 0 {
		c := &s.conversations[idx]
		c.LastMessage = preview.Text(content, previewMaxLen)
		if now := s.now(); now.After(c.UpdatedAt) {
			c.UpdatedAt = now
		}
		Reconcile(s.conversations, s.pinned)
		s.notify(TopicConversations)
	}
	s.notify(TopicMessages)
}

// FinalizeStreamingMessage clears the streaming flag. A message with no
// token count gets one estimated from its content and fed to the budget
// tracker. Tokens already on the message were fed when the send result
// merged, so they do not feed again here.
func (k streamSink) FinalizeStreamingMessage(conversationID, messageID string) bool {
	s := k.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID != conversationID {
		return false
	}

	for i := range s.messages {
		if s.messages[i].ID != messageID {
			continue
		}
		m := &s.messages[i]
		if m.Streaming {
			m.Streaming = false
			if m.Tokens == 0 {
				m.Tokens = estimateTokens(m.Content)
				if m.Tokens > 0 {
					s.budget.Add(m.Tokens)
					s.notify(TopicBudget)
				}
			}
		}
		s.notify(TopicMessages)
		return true
	}
	return false
}

// NoteActivity bumps recency, preview, and optionally the unread count
// for a conversation that is not currently selected.
func (k streamSink) NoteActivity(conversationID, content string, at time.Time, countUnread bool) {
	s := k.store
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findConversationLocked(conversationID)
	if idx < 0 {
		// Not in the collection yet; the next load will fetch it.
		return
	}
	c := &s.conversations[idx]
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
	}
	if content != "" {
		c.LastMessage = preview.Text(content, previewMaxLen)
	}
	if countUnread {
		c.UnreadCount++
	}
	Reconcile(s.conversations, s.pinned)
	s.notify(TopicConversations)
}
