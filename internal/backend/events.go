// ABOUTME: Closed union of streaming event topics pushed by the gateway.
// ABOUTME: One variant pointer per topic; exactly one is non-nil per event.

package backend

import (
	"fmt"
	"time"
)

// EventType discriminates the streaming event union.
type EventType int

const (
	// EventStreamStart announces an assistant message beginning to stream.
	EventStreamStart EventType = iota
	// EventStreamChunk carries the cumulative content snapshot so far.
	EventStreamChunk
	// EventStreamEnd marks the message complete.
	EventStreamEnd
)

// String returns the wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventStreamStart:
		return "stream-start"
	case EventStreamChunk:
		return "stream-chunk"
	case EventStreamEnd:
		return "stream-end"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is one pushed streaming event. Type selects which variant is set.
type Event struct {
	Type  EventType
	Start *StreamStart
	Chunk *StreamChunk
	End   *StreamEnd
}

// StreamStart is emitted when the gateway begins streaming an assistant
// message.
type StreamStart struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// StreamChunk carries the full content accumulated so far. Delta is the
// increment since the previous chunk; consumers must treat Content as
// authoritative and never append Delta.
type StreamChunk struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Content        string `json:"content"`
	Delta          string `json:"delta,omitempty"`
}

// StreamEnd finalizes a streamed message.
type StreamEnd struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// ConversationID returns the conversation the event belongs to, regardless
// of variant.
func (e Event) ConversationID() string {
	switch e.Type {
	case EventStreamStart:
		if e.Start != nil {
			return e.Start.ConversationID
		}
	case EventStreamChunk:
		if e.Chunk != nil {
			return e.Chunk.ConversationID
		}
	case EventStreamEnd:
		if e.End != nil {
			return e.End.ConversationID
		}
	}
	return ""
}

// MessageID returns the message the event belongs to, regardless of variant.
func (e Event) MessageID() string {
	switch e.Type {
	case EventStreamStart:
		if e.Start != nil {
			return e.Start.MessageID
		}
	case EventStreamChunk:
		if e.Chunk != nil {
			return e.Chunk.MessageID
		}
	case EventStreamEnd:
		if e.End != nil {
			return e.End.MessageID
		}
	}
	return ""
}
