// ABOUTME: Tests for the gateway HTTP client.
// ABOUTME: Covers command round-trips, error mapping, role validation, and SSE decoding.

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_GetConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/conversations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":"c1","title":"Demo","message_count":2,"last_message":"Hi"}]`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil, discardLogger())
	convs, err := c.GetConversations(t.Context())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "c1", convs[0].ID)
	assert.Equal(t, "Demo", convs[0].Title)
	assert.Equal(t, 2, convs[0].MessageCount)
	assert.Equal(t, "Hi", convs[0].LastMessage)
}

func TestHTTPClient_SendMessageCarriesAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/send", r.URL.Path)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var req SendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "Hello", req.Content)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SendResult{
			Conversation:     Conversation{ID: "c1", Title: "Demo"},
			UserMessage:      Message{ID: "1", ConversationID: "c1", Role: RoleUser, Content: "Hello"},
			AssistantMessage: Message{ID: "2", ConversationID: "c1", Role: RoleAssistant, Content: "Hi"},
			Stats:            Stats{MessageCount: 2},
			LastMessage:      "Hi",
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, NewTokenSource("tok-1", discardLogger()), discardLogger())
	res, err := c.SendMessage(t.Context(), SendRequest{ConversationID: "c1", Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "1", res.UserMessage.ID)
	assert.Equal(t, "2", res.AssistantMessage.ID)
	assert.Equal(t, "Hi", res.LastMessage)
}

func TestHTTPClient_NotFoundMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"no such conversation"}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil, discardLogger())
	err := c.DeleteConversation(t.Context(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var inv *InvocationError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "delete-conversation", inv.Command)
}

func TestHTTPClient_ServerErrorIncludesGatewayMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"model provider unavailable"}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil, discardLogger())
	_, err := c.CreateConversation(t.Context(), "Demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model provider unavailable")
	assert.Contains(t, err.Error(), "create-conversation")
}

func TestHTTPClient_GetMessagesRejectsUnknownRole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":"m1","conversation_id":"c1","role":"robot","content":"?"}]`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil, discardLogger())
	_, err := c.GetMessages(t.Context(), "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown message role")
}

func TestHTTPClient_ExpiredTokenFailsBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	raw := signedToken(t, time.Now().Add(-time.Minute))
	c := NewHTTPClient(srv.URL, NewTokenSource(raw, discardLogger()), discardLogger())

	_, err := c.GetConversations(t.Context())
	require.ErrorIs(t, err, ErrExpiredToken)
	assert.Equal(t, int32(0), hits.Load(), "expired token must not reach the gateway")
}

func TestHTTPClient_SubmitGoal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/goals", r.URL.Path)
		var sub GoalSubmission
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sub))
		require.Equal(t, "ship the release", sub.Description)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"goal_id":"goal_1234"}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil, discardLogger())
	id, err := c.SubmitGoal(t.Context(), GoalSubmission{Description: "ship the release"})
	require.NoError(t, err)
	assert.Equal(t, "goal_1234", id)
}

func TestHTTPClient_EventsDecodesStream(t *testing.T) {
	var connects atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/events", r.URL.Path)
		if connects.Add(1) > 1 {
			// Hold the reconnect open so the test can cancel cleanly.
			<-r.Context().Done()
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: stream-start\n")
		fmt.Fprint(w, `data: {"conversation_id":"c1","message_id":"m1","created_at":"2025-03-19T15:00:00Z"}`+"\n\n")
		fmt.Fprint(w, "event: stream-chunk\n")
		fmt.Fprint(w, `data: {"conversation_id":"c1","message_id":"m1","content":"Hel","delta":"Hel"}`+"\n\n")
		fmt.Fprint(w, "event: totally-new-topic\ndata: {}\n\n")
		fmt.Fprint(w, "event: stream-end\n")
		fmt.Fprint(w, `data: {"conversation_id":"c1","message_id":"m1"}`+"\n\n")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewHTTPClient(srv.URL, nil, discardLogger())
	events := c.Events(ctx)

	var got []Event
	for len(got) < 3 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d events", len(got))
		}
	}

	require.Equal(t, EventStreamStart, got[0].Type)
	assert.Equal(t, "c1", got[0].Start.ConversationID)
	assert.Equal(t, "m1", got[0].Start.MessageID)

	require.Equal(t, EventStreamChunk, got[1].Type)
	assert.Equal(t, "Hel", got[1].Chunk.Content)

	require.Equal(t, EventStreamEnd, got[2].Type)
	assert.Equal(t, "m1", got[2].End.MessageID)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "events channel should close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}

func TestDecodeEvent_UnknownTopic(t *testing.T) {
	_, err := decodeEvent("stream-restart", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event")
}

func TestDecodeEvent_MalformedPayload(t *testing.T) {
	_, err := decodeEvent("stream-chunk", []byte(`{nope`))
	require.Error(t, err)
}

func TestEvent_AccessorsAcrossVariants(t *testing.T) {
	start := Event{Type: EventStreamStart, Start: &StreamStart{ConversationID: "c9", MessageID: "m9"}}
	chunk := Event{Type: EventStreamChunk, Chunk: &StreamChunk{ConversationID: "c9", MessageID: "m9"}}
	end := Event{Type: EventStreamEnd, End: &StreamEnd{ConversationID: "c9", MessageID: "m9"}}

	for _, ev := range []Event{start, chunk, end} {
		assert.Equal(t, "c9", ev.ConversationID())
		assert.Equal(t, "m9", ev.MessageID())
	}

	var zero Event
	assert.Equal(t, "", zero.ConversationID())
}

func TestParseRole_Strict(t *testing.T) {
	for _, ok := range []string{"user", "assistant", "system"} {
		role, err := ParseRole(ok)
		require.NoError(t, err)
		assert.Equal(t, Role(ok), role)
	}

	_, err := ParseRole("tool")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
