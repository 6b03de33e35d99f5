// ABOUTME: In-memory conversation surface mirroring the gateway REST and SSE contract.
// ABOUTME: Replies are canned; streaming chunks carry cumulative content snapshots.

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-desk/internal/backend"
)

// costPerToken is the flat fake rate used for message cost fields.
const costPerToken = 0.00001

type server struct {
	cfg *Config

	mu     sync.Mutex
	convs  map[string]*backend.Conversation
	msgs   map[string][]backend.Message
	budget *float64
	subs   map[string]chan sseEvent
}

type sseEvent struct {
	name string
	data any
}

func newServer(cfg *Config) *server {
	s := &server{
		cfg:   cfg,
		convs: make(map[string]*backend.Conversation),
		msgs:  make(map[string][]backend.Message),
		subs:  make(map[string]chan sseEvent),
	}
	if cfg.Cost.MonthlyBudget > 0 {
		b := cfg.Cost.MonthlyBudget
		s.budget = &b
	}
	return s
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/conversations", s.handleConversations)
	mux.HandleFunc("/api/conversations/", s.handleConversationRoutes)
	mux.HandleFunc("/api/send", s.handleSend)
	mux.HandleFunc("/api/messages/", s.handleMessageRoutes)
	mux.HandleFunc("/api/cost-overview", s.handleCostOverview)
	mux.HandleFunc("/api/budget", s.handleBudget)
	mux.HandleFunc("/api/goals", s.handleGoals)
	mux.HandleFunc("/api/events", s.handleEvents)
	return s.withAuth(mux)
}

// withAuth enforces bearer auth on every route when a token is configured.
func (s *server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Server.Token != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.cfg.Server.Token {
				sendJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		out := make([]backend.Conversation, 0, len(s.convs))
		for _, c := range s.convs {
			out = append(out, *c)
		}
		s.mu.Unlock()
		// Most recent activity first
		sort.Slice(out, func(i, j int) bool {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		})
		sendJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			sendJSONError(w, http.StatusBadRequest, "title is required")
			return
		}
		s.mu.Lock()
		conv := s.createConversationLocked(req.Title)
		s.mu.Unlock()
		log.Printf("created conversation %s: %s", conv.ID, conv.Title)
		sendJSON(w, http.StatusCreated, conv)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleConversationRoutes dispatches /api/conversations/{id}[/messages|/stats].
func (s *server) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/conversations/")

	if id, ok := strings.CutSuffix(path, "/messages"); ok {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleMessages(w, id)
		return
	}
	if id, ok := strings.CutSuffix(path, "/stats"); ok {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleStats(w, id)
		return
	}

	id := path
	if id == "" || strings.Contains(id, "/") {
		sendJSONError(w, http.StatusBadRequest, "invalid path")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		s.mu.Lock()
		conv, ok := s.convs[id]
		var out backend.Conversation
		if ok {
			conv.Title = req.Title
			conv.UpdatedAt = time.Now().UTC()
			out = *conv
		}
		s.mu.Unlock()
		if !ok {
			sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		sendJSON(w, http.StatusOK, out)
	case http.MethodDelete:
		s.mu.Lock()
		_, ok := s.convs[id]
		delete(s.convs, id)
		delete(s.msgs, id)
		s.mu.Unlock()
		if !ok {
			sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		log.Printf("deleted conversation %s", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *server) handleMessages(w http.ResponseWriter, id string) {
	s.mu.Lock()
	_, ok := s.convs[id]
	msgs := append([]backend.Message(nil), s.msgs[id]...)
	s.mu.Unlock()
	if !ok {
		sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	sendJSON(w, http.StatusOK, msgs)
}

func (s *server) handleStats(w http.ResponseWriter, id string) {
	s.mu.Lock()
	_, ok := s.convs[id]
	stats := s.statsLocked(id)
	s.mu.Unlock()
	if !ok {
		sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	sendJSON(w, http.StatusOK, stats)
}

func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req backend.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	now := time.Now().UTC()
	tokens := estimateTokens(req.Content)

	s.mu.Lock()
	conv, ok := s.convs[req.ConversationID]
	if !ok {
		// No thread given (or an unknown one): open a fresh thread named
		// after the first line of the content.
		conv = s.createConversationLocked(firstLine(req.Content, 50))
	}

	userMsg := backend.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           backend.RoleUser,
		Content:        req.Content,
		Tokens:         tokens,
		Cost:           float64(tokens) * costPerToken,
		CreatedAt:      now,
	}
	assistantMsg := backend.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           backend.RoleAssistant,
		CreatedAt:      now.Add(time.Millisecond),
	}
	s.msgs[conv.ID] = append(s.msgs[conv.ID], userMsg, assistantMsg)
	conv.MessageCount = len(s.msgs[conv.ID])
	conv.LastMessage = truncateText(req.Content, 80)
	conv.UpdatedAt = now

	result := backend.SendResult{
		Conversation:     *conv,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Stats:            s.statsLocked(conv.ID),
		LastMessage:      conv.LastMessage,
	}
	s.mu.Unlock()

	log.Printf("send to %s: %s", conv.ID, truncateText(req.Content, 60))
	go s.streamReply(conv.ID, assistantMsg.ID, cannedReply(req.Content))

	sendJSON(w, http.StatusOK, result)
}

// handleMessageRoutes dispatches /api/messages/{id}.
func (s *server) handleMessageRoutes(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/messages/")
	if id == "" || strings.Contains(id, "/") {
		sendJSONError(w, http.StatusBadRequest, "invalid path")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		s.mu.Lock()
		msg, found := s.updateMessageLocked(id, req.Content)
		s.mu.Unlock()
		if !found {
			sendJSONError(w, http.StatusNotFound, "message not found")
			return
		}
		sendJSON(w, http.StatusOK, msg)
	case http.MethodDelete:
		s.mu.Lock()
		found := s.deleteMessageLocked(id)
		s.mu.Unlock()
		if !found {
			sendJSONError(w, http.StatusNotFound, "message not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *server) handleCostOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	overview := backend.CostOverview{
		Today: s.cfg.Cost.Today,
		Month: s.cfg.Cost.Month,
	}
	if s.budget != nil {
		b := *s.budget
		remaining := b - overview.Month
		if remaining < 0 {
			remaining = 0
		}
		overview.MonthlyBudget = &b
		overview.Remaining = &remaining
	}
	s.mu.Unlock()

	sendJSON(w, http.StatusOK, overview)
}

func (s *server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Amount < 0 {
		sendJSONError(w, http.StatusBadRequest, "amount must not be negative")
		return
	}

	s.mu.Lock()
	s.budget = &req.Amount
	s.mu.Unlock()

	log.Printf("monthly budget set to $%.2f", req.Amount)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGoals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var sub backend.GoalSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(sub.Description) == "" {
		sendJSONError(w, http.StatusBadRequest, "description is required")
		return
	}

	goalID := uuid.New().String()
	log.Printf("goal submitted [%s] priority=%s: %s", goalID, sub.Priority, truncateText(sub.Description, 60))
	sendJSON(w, http.StatusCreated, map[string]string{"goal_id": goalID})
}

// handleEvents serves the SSE stream. Every connected client receives every
// streaming event; slow clients drop events rather than stall the rest.
func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	subID := uuid.New().String()
	ch := make(chan sseEvent, 64)
	s.mu.Lock()
	s.subs[subID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, subID)
		s.mu.Unlock()
	}()

	log.Printf("event stream client connected [%s]", subID)

	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Printf("event stream client disconnected [%s]", subID)
			return
		case ev := <-ch:
			writeSSEEvent(w, ev.name, ev.data)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// streamReply pushes the canned reply as a stream-start, cumulative chunks,
// and a stream-end, settling the stored message before the end event so a
// reload observes the final content.
func (s *server) streamReply(convID, msgID, reply string) {
	s.broadcast("stream-start", backend.StreamStart{
		ConversationID: convID,
		MessageID:      msgID,
		CreatedAt:      time.Now().UTC(),
	})

	runes := []rune(reply)
	prev := 0
	for prev < len(runes) {
		next := prev + s.cfg.Reply.ChunkSize
		if next > len(runes) {
			next = len(runes)
		}
		s.broadcast("stream-chunk", backend.StreamChunk{
			ConversationID: convID,
			MessageID:      msgID,
			Content:        string(runes[:next]),
			Delta:          string(runes[prev:next]),
		})
		prev = next
		if prev < len(runes) {
			time.Sleep(s.cfg.Reply.ChunkDelay)
		}
	}

	s.settleMessage(convID, msgID, reply)
	s.broadcast("stream-end", backend.StreamEnd{
		ConversationID: convID,
		MessageID:      msgID,
	})
}

// settleMessage writes the final streamed content into storage.
func (s *server) settleMessage(convID, msgID, content string) {
	tokens := estimateTokens(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.msgs[convID]
	for i := range msgs {
		if msgs[i].ID != msgID {
			continue
		}
		msgs[i].Content = content
		msgs[i].Tokens = tokens
		msgs[i].Cost = float64(tokens) * costPerToken
		break
	}

	if conv, ok := s.convs[convID]; ok {
		conv.LastMessage = truncateText(content, 80)
		conv.UpdatedAt = time.Now().UTC()
	}
}

// broadcast fans one event out to every subscriber without blocking.
func (s *server) broadcast(name string, data any) {
	s.mu.Lock()
	subs := make([]chan sseEvent, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- sseEvent{name: name, data: data}:
		default:
		}
	}
}

func (s *server) createConversationLocked(title string) *backend.Conversation {
	now := time.Now().UTC()
	conv := &backend.Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.convs[conv.ID] = conv
	return conv
}

func (s *server) statsLocked(convID string) backend.Stats {
	var stats backend.Stats
	for _, m := range s.msgs[convID] {
		stats.MessageCount++
		stats.TotalTokens += m.Tokens
		stats.TotalCost += m.Cost
	}
	return stats
}

func (s *server) updateMessageLocked(id, content string) (backend.Message, bool) {
	for convID, msgs := range s.msgs {
		for i := range msgs {
			if msgs[i].ID != id {
				continue
			}
			msgs[i].Content = content
			if conv, ok := s.convs[convID]; ok && i == len(msgs)-1 {
				conv.LastMessage = truncateText(content, 80)
			}
			return msgs[i], true
		}
	}
	return backend.Message{}, false
}

func (s *server) deleteMessageLocked(id string) bool {
	for convID, msgs := range s.msgs {
		for i := range msgs {
			if msgs[i].ID != id {
				continue
			}
			s.msgs[convID] = append(msgs[:i], msgs[i+1:]...)
			if conv, ok := s.convs[convID]; ok {
				conv.MessageCount = len(s.msgs[convID])
			}
			return true
		}
	}
	return false
}

// writeSSEEvent writes a single SSE event to the response writer.
func writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal SSE data: %v", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// sendJSON writes a JSON response body.
func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// cannedReply picks a reply for the given input, markdown included so the
// client's preview stripping has something to chew on.
func cannedReply(input string) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "markdown") || strings.Contains(lower, "bullet") || strings.Contains(lower, "list") {
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n\n> This is a blockquote.\n"
	}
	if strings.Contains(lower, "status") || strings.Contains(lower, "health") {
		return "All systems are **operational**. No incidents in the last 24 hours."
	}
	return fmt.Sprintf("Echo: **%s**\n\nI received your message and am responding with some *formatted* text.", input)
}

// estimateTokens mirrors the rough chars-per-token heuristic clients use.
func estimateTokens(content string) int64 {
	if content == "" {
		return 0
	}
	return int64((len(content) + 3) / 4)
}

// firstLine returns the first line of s, truncated to max runes.
func firstLine(s string, max int) string {
	line := s
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	runes := []rune(line)
	if len(runes) > max {
		line = string(runes[:max])
	}
	return line
}

// truncateText shortens s to maxLen characters, adding ellipsis if truncated.
func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
