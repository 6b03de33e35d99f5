// ABOUTME: Tests for the streaming event ingestor.
// ABOUTME: Covers placeholder synthesis, snapshot chunks, finalization, and unread accounting.

package stream

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2389/coven-desk/internal/backend"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeMessage mirrors the message fields the ingestor is allowed to touch.
type fakeMessage struct {
	content   string
	streaming bool
	createdAt time.Time
}

// noteRecord captures one NoteActivity call.
type noteRecord struct {
	conversationID string
	content        string
	countUnread    bool
}

// fakeSink records ingestor mutations against an in-memory message table.
type fakeSink struct {
	mu       sync.Mutex
	active   string
	messages map[string]*fakeMessage
	notes    []noteRecord
}

func newFakeSink(active string) *fakeSink {
	return &fakeSink{
		active:   active,
		messages: make(map[string]*fakeMessage),
	}
}

func (s *fakeSink) ActiveConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *fakeSink) UpsertStreamingMessage(conversationID, messageID string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := conversationID + "/" + messageID
	if m, ok := s.messages[key]; ok {
		m.streaming = true
		return
	}
	s.messages[key] = &fakeMessage{streaming: true, createdAt: createdAt}
}

func (s *fakeSink) ReplaceStreamingContent(conversationID, messageID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[conversationID+"/"+messageID]; ok {
		m.content = content
	}
}

func (s *fakeSink) FinalizeStreamingMessage(conversationID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[conversationID+"/"+messageID]
	if !ok {
		return false
	}
	m.streaming = false
	return true
}

func (s *fakeSink) NoteActivity(conversationID, content string, _ time.Time, countUnread bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, noteRecord{
		conversationID: conversationID,
		content:        content,
		countUnread:    countUnread,
	})
}

func (s *fakeSink) message(t *testing.T, conversationID, messageID string) fakeMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[conversationID+"/"+messageID]
	require.True(t, ok, "expected message %s/%s to exist", conversationID, messageID)
	return *m
}

func (s *fakeSink) hasMessage(conversationID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.messages[conversationID+"/"+messageID]
	return ok
}

func (s *fakeSink) allNotes() []noteRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]noteRecord, len(s.notes))
	copy(out, s.notes)
	return out
}

func setupIngestor(t *testing.T, activeConversation string) (*Ingestor, *fakeSink) {
	t.Helper()
	sink := newFakeSink(activeConversation)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ing := NewIngestor(sink, logger)
	t.Cleanup(ing.Close)
	return ing, sink
}

func startEvent(conversationID, messageID string, at time.Time) backend.Event {
	return backend.Event{
		Type: backend.EventStreamStart,
		Start: &backend.StreamStart{
			ConversationID: conversationID,
			MessageID:      messageID,
			CreatedAt:      at,
		},
	}
}

func chunkEvent(conversationID, messageID, content string) backend.Event {
	return backend.Event{
		Type: backend.EventStreamChunk,
		Chunk: &backend.StreamChunk{
			ConversationID: conversationID,
			MessageID:      messageID,
			Content:        content,
		},
	}
}

func endEvent(conversationID, messageID string) backend.Event {
	return backend.Event{
		Type: backend.EventStreamEnd,
		End: &backend.StreamEnd{
			ConversationID: conversationID,
			MessageID:      messageID,
		},
	}
}

func TestIngestor_StartCreatesStreamingPlaceholder(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-1")
	createdAt := time.Date(2025, 3, 19, 15, 0, 0, 0, time.UTC)

	ing.HandleEvent(startEvent("conv-1", "msg-1", createdAt))

	msg := sink.message(t, "conv-1", "msg-1")
	assert.True(t, msg.streaming)
	assert.Empty(t, msg.content)
	assert.Equal(t, createdAt, msg.createdAt)
}

func TestIngestor_ChunksReplaceContentWholesale(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-1")

	ing.HandleEvent(startEvent("conv-1", "msg-1", time.Now()))
	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "Deploy"))
	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "Deploying the"))
	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "Deploying the service now."))

	msg := sink.message(t, "conv-1", "msg-1")
	assert.Equal(t, "Deploying the service now.", msg.content,
		"chunks are snapshots, not deltas")
	assert.True(t, msg.streaming)
}

func TestIngestor_DuplicateChunkIsHarmless(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-1")

	ing.HandleEvent(startEvent("conv-1", "msg-1", time.Now()))
	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "Hello world"))
	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "Hello world"))

	msg := sink.message(t, "conv-1", "msg-1")
	assert.Equal(t, "Hello world", msg.content)
}

func TestIngestor_ChunkBeforeStartSynthesizesPlaceholder(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-1")

	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "partial content"))

	msg := sink.message(t, "conv-1", "msg-1")
	assert.True(t, msg.streaming)
	assert.Equal(t, "partial content", msg.content)

	// A start arriving late must not reset what the chunk built.
	ing.HandleEvent(startEvent("conv-1", "msg-1", time.Now()))

	msg = sink.message(t, "conv-1", "msg-1")
	assert.True(t, msg.streaming)
	assert.Equal(t, "partial content", msg.content)
}

func TestIngestor_EndClearsStreamingFlag(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-1")

	ing.HandleEvent(startEvent("conv-1", "msg-1", time.Now()))
	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "All done."))
	ing.HandleEvent(endEvent("conv-1", "msg-1"))

	msg := sink.message(t, "conv-1", "msg-1")
	assert.False(t, msg.streaming)
	assert.Equal(t, "All done.", msg.content)
}

func TestIngestor_EndForUnknownMessageIsNoOp(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-1")

	ing.HandleEvent(endEvent("conv-1", "msg-ghost"))

	assert.False(t, sink.hasMessage("conv-1", "msg-ghost"),
		"an end must never materialize a message")
}

func TestIngestor_DuplicateEndIsIdempotent(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-1")

	ing.HandleEvent(startEvent("conv-1", "msg-1", time.Now()))
	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "done"))
	ing.HandleEvent(endEvent("conv-1", "msg-1"))
	ing.HandleEvent(endEvent("conv-1", "msg-1"))

	msg := sink.message(t, "conv-1", "msg-1")
	assert.False(t, msg.streaming)
	assert.Equal(t, "done", msg.content)
}

func TestIngestor_LateChunkAfterEndIsDropped(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-1")

	ing.HandleEvent(startEvent("conv-1", "msg-1", time.Now()))
	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "The complete answer."))
	ing.HandleEvent(endEvent("conv-1", "msg-1"))

	// A redelivered early chunk must not roll content back.
	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "The comp"))

	msg := sink.message(t, "conv-1", "msg-1")
	assert.Equal(t, "The complete answer.", msg.content)
	assert.False(t, msg.streaming)
}

func TestIngestor_StartAfterEndOpensNewEpoch(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-1")

	ing.HandleEvent(startEvent("conv-1", "msg-1", time.Now()))
	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "first answer"))
	ing.HandleEvent(endEvent("conv-1", "msg-1"))

	// Regeneration reuses the message id with a fresh start.
	ing.HandleEvent(startEvent("conv-1", "msg-1", time.Now()))
	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "second answer"))

	msg := sink.message(t, "conv-1", "msg-1")
	assert.True(t, msg.streaming)
	assert.Equal(t, "second answer", msg.content)
}

func TestIngestor_InactiveConversationNeverTouchesMessages(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-active")

	ing.HandleEvent(startEvent("conv-other", "msg-1", time.Now()))
	ing.HandleEvent(chunkEvent("conv-other", "msg-1", "background reply"))
	ing.HandleEvent(endEvent("conv-other", "msg-1"))

	assert.False(t, sink.hasMessage("conv-other", "msg-1"))

	notes := sink.allNotes()
	require.Len(t, notes, 3)
	for _, n := range notes {
		assert.Equal(t, "conv-other", n.conversationID)
	}
	assert.Equal(t, "background reply", notes[1].content,
		"chunk activity should carry content for the preview")
}

func TestIngestor_InactiveUnreadCountedOncePerMessage(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-active")

	ing.HandleEvent(startEvent("conv-other", "msg-1", time.Now()))
	ing.HandleEvent(chunkEvent("conv-other", "msg-1", "a"))
	ing.HandleEvent(chunkEvent("conv-other", "msg-1", "ab"))
	ing.HandleEvent(endEvent("conv-other", "msg-1"))
	ing.HandleEvent(startEvent("conv-other", "msg-2", time.Now()))
	ing.HandleEvent(endEvent("conv-other", "msg-2"))

	counted := 0
	for _, n := range sink.allNotes() {
		if n.countUnread {
			counted++
		}
	}
	assert.Equal(t, 2, counted, "one unread increment per message id")
}

func TestIngestor_NoSelectionTreatsAllConversationsAsInactive(t *testing.T) {
	ing, sink := setupIngestor(t, "")

	ing.HandleEvent(chunkEvent("conv-1", "msg-1", "hello"))

	assert.False(t, sink.hasMessage("conv-1", "msg-1"))
	require.Len(t, sink.allNotes(), 1)
}

func TestIngestor_NilPayloadIgnored(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-1")

	ing.HandleEvent(backend.Event{Type: backend.EventStreamStart})
	ing.HandleEvent(backend.Event{Type: backend.EventStreamChunk})
	ing.HandleEvent(backend.Event{Type: backend.EventStreamEnd})

	assert.Empty(t, sink.allNotes())
}

func TestIngestor_UnknownEventTypeIgnored(t *testing.T) {
	ing, sink := setupIngestor(t, "conv-1")

	ing.HandleEvent(backend.Event{Type: backend.EventType(99)})

	assert.Empty(t, sink.allNotes())
}
