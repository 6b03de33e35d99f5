// ABOUTME: Ingestor applies gateway streaming events to conversation state.
// ABOUTME: Handles placeholder synthesis, snapshot chunks, and unread accounting.

package stream

import (
	"log/slog"
	"time"

	"github.com/2389/coven-desk/internal/backend"
)

const (
	// suppressionTTL bounds how long a finalized or counted stream key is
	// remembered. Redelivery happens within reconnect windows, so minutes
	// are plenty.
	suppressionTTL = 5 * time.Minute
	// seenCacheSize caps both caches. Entries are tiny; 10k covers far
	// more concurrent streams than a desktop session ever produces.
	seenCacheSize = 10_000
)

// Sink is the conversation-state surface the Ingestor mutates. The
// conversation store implements it; tests substitute a recorder.
type Sink interface {
	// ActiveConversationID returns the id of the currently selected
	// conversation, or "" when none is selected.
	ActiveConversationID() string

	// UpsertStreamingMessage creates an empty assistant placeholder with
	// the streaming flag set, or re-flags an existing message as
	// streaming. Existing content and creation time are left untouched.
	UpsertStreamingMessage(conversationID, messageID string, createdAt time.Time)

	// ReplaceStreamingContent overwrites a message's content with the
	// cumulative snapshot and refreshes the owning conversation's
	// preview and recency.
	ReplaceStreamingContent(conversationID, messageID, content string)

	// FinalizeStreamingMessage clears the streaming flag on a message.
	// It reports whether a matching message existed.
	FinalizeStreamingMessage(conversationID, messageID string) bool

	// NoteActivity bumps a conversation's recency for events that arrive
	// while it is not active. content updates the preview when non-empty,
	// and countUnread increments the unread counter.
	NoteActivity(conversationID, content string, at time.Time, countUnread bool)
}

// Ingestor consumes streaming events and drives the per-message lifecycle
// against a Sink. It is safe for concurrent use, though the store feeds it
// from a single event loop.
type Ingestor struct {
	sink   Sink
	logger *slog.Logger

	// finalized records stream keys whose end was observed, so late
	// chunks cannot overwrite completed content. counted records message
	// ids that already incremented an unread counter.
	finalized *seenCache
	counted   *seenCache

	now func() time.Time
}

// NewIngestor creates an Ingestor that applies events to sink. Callers
// must Close it to stop the cache cleanup goroutines.
func NewIngestor(sink Sink, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		sink:      sink,
		logger:    logger.With("component", "stream"),
		finalized: newSeenCache(suppressionTTL, seenCacheSize),
		counted:   newSeenCache(suppressionTTL, seenCacheSize),
		now:       time.Now,
	}
}

// HandleEvent applies a single gateway event. Unknown event types are
// logged and dropped.
func (i *Ingestor) HandleEvent(ev backend.Event) {
	switch ev.Type {
	case backend.EventStreamStart:
		i.handleStart(ev.Start)
	case backend.EventStreamChunk:
		i.handleChunk(ev.Chunk)
	case backend.EventStreamEnd:
		i.handleEnd(ev.End)
	default:
		i.logger.Debug("dropping event with unknown type", "type", ev.Type.String())
	}
}

// Close releases the suppression caches.
func (i *Ingestor) Close() {
	i.finalized.Close()
	i.counted.Close()
}

func (i *Ingestor) handleStart(p *backend.StreamStart) {
	if p == nil {
		return
	}

	// A start opens a fresh epoch for the id. Clearing the finalized
	// marker lets a regenerated response stream into the same message.
	i.finalized.Forget(streamKey(p.ConversationID, p.MessageID))

	if i.sink.ActiveConversationID() != p.ConversationID {
		i.noteInactive(p.ConversationID, p.MessageID, "")
		return
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = i.now()
	}
	i.sink.UpsertStreamingMessage(p.ConversationID, p.MessageID, createdAt)
}

func (i *Ingestor) handleChunk(p *backend.StreamChunk) {
	if p == nil {
		return
	}

	if i.finalized.Check(streamKey(p.ConversationID, p.MessageID)) {
		i.logger.Debug("dropping chunk for finalized stream",
			"conversation_id", p.ConversationID,
			"message_id", p.MessageID)
		return
	}

	if i.sink.ActiveConversationID() != p.ConversationID {
		i.noteInactive(p.ConversationID, p.MessageID, p.Content)
		return
	}

	// The upsert synthesizes a placeholder when the start was lost, so a
	// mid-stream subscriber still sees content accumulate.
	i.sink.UpsertStreamingMessage(p.ConversationID, p.MessageID, i.now())
	i.sink.ReplaceStreamingContent(p.ConversationID, p.MessageID, p.Content)
}

func (i *Ingestor) handleEnd(p *backend.StreamEnd) {
	if p == nil {
		return
	}

	i.finalized.Mark(streamKey(p.ConversationID, p.MessageID))

	if i.sink.ActiveConversationID() != p.ConversationID {
		i.noteInactive(p.ConversationID, p.MessageID, "")
		return
	}

	if !i.sink.FinalizeStreamingMessage(p.ConversationID, p.MessageID) {
		i.logger.Debug("stream end for unknown message",
			"conversation_id", p.ConversationID,
			"message_id", p.MessageID)
	}
}

// noteInactive reports activity on a conversation that is not selected.
// The unread counter increments at most once per message id.
func (i *Ingestor) noteInactive(conversationID, messageID, content string) {
	countUnread := !i.counted.CheckAndMark(streamKey(conversationID, messageID))
	i.sink.NoteActivity(conversationID, content, i.now(), countUnread)
}

// streamKey identifies one message's stream across event kinds.
func streamKey(conversationID, messageID string) string {
	return conversationID + "/" + messageID
}
