// ABOUTME: Store is the central layer for client-side conversation state.
// ABOUTME: All mutations flow through here - gateway first, local merge on success.

package conversation

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/2389/coven-desk/internal/backend"
	"github.com/2389/coven-desk/internal/budget"
	"github.com/2389/coven-desk/internal/classify"
	"github.com/2389/coven-desk/internal/preview"
	"github.com/2389/coven-desk/internal/state"
	"github.com/2389/coven-desk/internal/stream"
)

// persistTimeout bounds best-effort side writes (UI state, auto-title
// renames, goal submissions) that run outside a caller's context.
const persistTimeout = 5 * time.Second

// Backend defines what the store needs from the gateway.
type Backend interface {
	GetConversations(ctx context.Context) ([]backend.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]backend.Message, error)
	GetStats(ctx context.Context, conversationID string) (backend.Stats, error)
	CreateConversation(ctx context.Context, title string) (backend.Conversation, error)
	UpdateConversation(ctx context.Context, id, title string) (backend.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	SendMessage(ctx context.Context, req backend.SendRequest) (*backend.SendResult, error)
	UpdateMessage(ctx context.Context, id, content string) (backend.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	GetCostOverview(ctx context.Context) (backend.CostOverview, error)
	SetMonthlyBudget(ctx context.Context, amount float64) error
	SubmitGoal(ctx context.Context, sub backend.GoalSubmission) (string, error)
}

// SendOptions carries optional send parameters forwarded to the gateway.
type SendOptions struct {
	Attachments  []string
	RoutingHints map[string]string
}

// Store owns all client-side conversation state. One mutex serializes
// mutations; it is never held across a gateway call, so overlapping sends
// proceed concurrently and merge independently by message id.
type Store struct {
	backend  Backend
	state    state.Store
	budget   *budget.Tracker
	notifier *Notifier
	ingest   *stream.Ingestor
	logger   *slog.Logger

	mu            sync.Mutex
	conversations []Conversation
	messages      []Message // active conversation only
	activeID      string
	pinned        map[string]bool
	loading       bool
	lastErr       error

	now func() time.Time
}

// New creates a store wired to the given gateway and durable UI state.
// The pinned set and active conversation id rehydrate immediately, before
// the first load. Pass nil logger for the default.
func New(b Backend, st state.Store, tracker *budget.Tracker, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if st == nil {
		st = state.NewMemory()
	}
	if tracker == nil {
		tracker = budget.NewTracker(logger)
	}
	s := &Store{
		backend:  b,
		state:    st,
		budget:   tracker,
		notifier: NewNotifier(logger),
		logger:   logger.With("component", "conversation"),
		pinned:   make(map[string]bool),
		now:      time.Now,
	}
	s.ingest = stream.NewIngestor(streamSink{store: s}, logger)
	s.hydrate()
	return s
}

// hydrate restores the persisted pinned set and active conversation id so
// both apply to the first load.
func (s *Store) hydrate() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if ids, err := s.state.PinnedConversations(ctx); err != nil {
		s.logger.Warn("loading pinned set failed", "error", err)
	} else {
		for _, id := range ids {
			s.pinned[id] = true
		}
	}

	if id, err := s.state.ActiveConversation(ctx); err != nil {
		s.logger.Warn("loading active conversation failed", "error", err)
	} else {
		s.activeID = id
	}
}

// Close releases the ingestor caches and subscriber channels.
func (s *Store) Close() {
	s.ingest.Close()
	s.notifier.Close()
}

// LoadConversations replaces the collection from the gateway. Stale
// pinned ids are pruned and the pruned set persisted. A gateway failure
// is recorded in the error field and leaves the prior collection
// untouched; it is not returned, so stale-but-valid state keeps
// rendering.
func (s *Store) LoadConversations(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.lastErr = nil
	s.mu.Unlock()
	s.notify(TopicConversations)

	wire, err := s.backend.GetConversations(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.logger.Error("conversation load failed", "error", err)
		s.notify(TopicConversations)
		return
	}

	convs := make([]Conversation, 0, len(wire))
	valid := make(map[string]bool, len(wire))
	for _, c := range wire {
		convs = append(convs, conversationFromWire(c))
		valid[c.ID] = true
	}

	pruned := false
	for id := range s.pinned {
		if !valid[id] {
			delete(s.pinned, id)
			pruned = true
		}
	}

	s.conversations = convs
	Reconcile(s.conversations, s.pinned)
	if pruned {
		s.persistPinsLocked()
	}

	// A hydrated active id may reference a conversation that no longer
	// exists on the gateway.
	if s.activeID != "" && !valid[s.activeID] {
		s.logger.Debug("clearing stale active conversation", "conversation_id", s.activeID)
		s.activeID = ""
		s.messages = nil
		s.persistActiveLocked()
		s.notify(TopicMessages)
	}

	s.notify(TopicConversations)
}

// CreateConversation validates the title, creates the thread on the
// gateway, prepends it to the collection, and makes it active with an
// empty message list.
func (s *Store) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Conversation{}, validationErr("title", "must not be empty")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return Conversation{}, validationErr("title", "exceeds 500 characters")
	}

	wire, err := s.backend.CreateConversation(ctx, title)
	if err != nil {
		s.recordErr(err)
		return Conversation{}, err
	}

	conv := conversationFromWire(wire)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append([]Conversation{conv}, s.conversations...)
	Reconcile(s.conversations, s.pinned)
	s.activeID = conv.ID
	s.messages = nil
	s.lastErr = nil
	s.persistActiveLocked()
	s.notify(TopicConversations, TopicMessages)

	s.logger.Debug("conversation created", "conversation_id", conv.ID)
	return conv, nil
}

// RenameConversation validates the new title locally, renames on the
// gateway, then updates the local record and re-sorts.
func (s *Store) RenameConversation(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return validationErr("title", "must not be empty")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return validationErr("title", "exceeds 500 characters")
	}

	updated, err := s.backend.UpdateConversation(ctx, id, title)
	if err != nil {
		s.recordErr(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findConversationLocked(id)
	if idx < 0 {
		// Deleted while the rename was in flight; the gateway accepted it,
		// nothing local to update.
		s.logger.Debug("rename landed on missing conversation", "conversation_id", id)
		return nil
	}
	c := &s.conversations[idx]
	c.Title = title
	if updated.Title != "" {
		c.Title = updated.Title
	}
	c.UpdatedAt = s.now()
	if !updated.UpdatedAt.IsZero() {
		c.UpdatedAt = updated.UpdatedAt
	}
	Reconcile(s.conversations, s.pinned)
	s.lastErr = nil
	s.notify(TopicConversations)
	return nil
}

// DeleteConversation removes the thread on the gateway, then locally.
// Its pinned id is dropped and the set persisted; deleting the active
// conversation clears the selection and message list.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if err := s.backend.DeleteConversation(ctx, id); err != nil {
		s.recordErr(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findConversationLocked(id)
	if idx >= 0 {
		s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	}
	if s.pinned[id] {
		delete(s.pinned, id)
		s.persistPinsLocked()
	}
	if s.activeID == id {
		s.activeID = ""
		s.messages = nil
		s.persistActiveLocked()
		s.notify(TopicMessages)
	}
	Reconcile(s.conversations, s.pinned)
	s.lastErr = nil
	s.notify(TopicConversations)

	s.logger.Debug("conversation deleted", "conversation_id", id)
	return nil
}

// SelectConversation makes a conversation active, clears its unread
// count, and loads its history. History load failures follow the read
// path: recorded, not returned.
func (s *Store) SelectConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.findConversationLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return validationErr("conversation_id", "unknown conversation")
	}
	s.activeID = id
	s.conversations[idx].UnreadCount = 0
	s.messages = nil
	s.loading = true
	s.lastErr = nil
	s.persistActiveLocked()
	s.notify(TopicConversations, TopicMessages)
	s.mu.Unlock()

	wire, err := s.backend.GetMessages(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if s.activeID != id {
		// Selection moved on while the history loaded; drop the stale result.
		s.logger.Debug("discarding history for superseded selection", "conversation_id", id)
		return nil
	}
	if err != nil {
		s.lastErr = err
		s.logger.Error("message load failed", "conversation_id", id, "error", err)
		s.notify(TopicMessages)
		return nil
	}

	msgs := make([]Message, 0, len(wire))
	for _, m := range wire {
		msgs = append(msgs, messageFromWire(m))
	}
	s.messages = msgs
	s.sortMessagesLocked()
	s.notify(TopicMessages)
	return nil
}

// SendMessage sends content to the active conversation (or lets the
// gateway open one when nothing is selected) and merges the returned
// user and assistant pair by message id. Whitespace-only content is a
// silent no-op. Goal-like content additionally fires a best-effort goal
// submission that never blocks or fails the send.
func (s *Store) SendMessage(ctx context.Context, content string, opts *SendOptions) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return validationErr("content", "exceeds 1000000 characters")
	}

	if classify.GoalLike(content) {
		go s.submitGoal(content)
	}

	correlationID := uuid.New().String()

	s.mu.Lock()
	conversationID := s.activeID
	s.loading = true
	s.lastErr = nil
	s.notify(TopicMessages)
	s.mu.Unlock()

	s.logger.Debug("sending message",
		"correlation_id", correlationID,
		"conversation_id", conversationID)

	req := backend.SendRequest{ConversationID: conversationID, Content: content}
	if opts != nil {
		req.Attachments = opts.Attachments
		req.RoutingHints = opts.RoutingHints
	}
	res, err := s.backend.SendMessage(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.logger.Error("send failed",
			"correlation_id", correlationID,
			"conversation_id", conversationID,
			"error", err)
		s.notify(TopicMessages)
		return err
	}

	s.applySendResultLocked(conversationID, correlationID, res)
	return nil
}

// applySendResultLocked merges a successful send into local state. Must be
// called with mu held.
func (s *Store) applySendResultLocked(requestedID, correlationID string, res *backend.SendResult) {
	target := res.Conversation.ID
	if target == "" {
		target = requestedID
	}

	// The conversation may have been deleted while the send was in flight.
	// Dropping the result beats resurrecting a deleted thread.
	if requestedID != "" && s.findConversationLocked(requestedID) < 0 {
		s.logger.Debug("dropping send result for deleted conversation",
			"correlation_id", correlationID,
			"conversation_id", requestedID)
		return
	}

	idx := s.findConversationLocked(target)
	if idx < 0 {
		// The gateway opened a new thread for this send.
		s.conversations = append([]Conversation{conversationFromWire(res.Conversation)}, s.conversations...)
		idx = 0
		s.activeID = target
		s.messages = nil
		s.persistActiveLocked()
	}

	// The gateway can omit token counts; fall back to the size estimate
	// for completed content so the messages and the budget still account
	// for it. A streamed reply returns an empty assistant stub here and
	// reports its tokens at finalization instead.
	user := res.UserMessage
	if user.Tokens == 0 {
		user.Tokens = estimateTokens(user.Content)
	}
	assistant := res.AssistantMessage
	if assistant.Tokens == 0 {
		assistant.Tokens = estimateTokens(assistant.Content)
	}

	if s.activeID == target {
		s.mergeMessageLocked(messageFromWire(user))
		s.mergeMessageLocked(messageFromWire(assistant))
		s.sortMessagesLocked()
		s.notify(TopicMessages)
	}

	c := &s.conversations[idx]
	if res.Stats.MessageCount > 0 {
		c.MessageCount = res.Stats.MessageCount
	}
	c.UpdatedAt = s.now()
	if !res.Conversation.UpdatedAt.IsZero() {
		c.UpdatedAt = res.Conversation.UpdatedAt
	}
	if res.Conversation.Title != "" {
		c.Title = res.Conversation.Title
	}

	last := res.LastMessage
	if last == "" {
		last = res.AssistantMessage.Content
	}
	if last == "" && s.activeID == target && len(s.messages) > 0 {
		// An empty assistant stub means the reply streamed; the merged
		// list already holds whatever content has arrived.
		last = s.messages[len(s.messages)-1].Content
	}
	if last == "" {
		last = res.UserMessage.Content
	}
	c.LastMessage = preview.Text(last, previewMaxLen)

	// The gateway titles threads from the first user message; cover for
	// older gateways that leave the default in place.
	if c.Title == defaultTitle {
		if title := preview.FirstLine(res.UserMessage.Content, autoTitleMaxLen); title != "" {
			c.Title = title
			go s.renameRemote(c.ID, title)
		}
	}

	Reconcile(s.conversations, s.pinned)
	s.notify(TopicConversations)

	if tokens := user.Tokens + assistant.Tokens; tokens > 0 {
		s.budget.Add(tokens)
		s.notify(TopicBudget)
	}

	s.logger.Debug("send merged",
		"correlation_id", correlationID,
		"conversation_id", target,
		"user_message_id", res.UserMessage.ID,
		"assistant_message_id", res.AssistantMessage.ID)
}

// mergeMessageLocked inserts a message or updates the existing one with
// the same id. A streaming placeholder is updated in place, never
// duplicated, and its streaming flag survives until the stream ends.
// Empty incoming content never overwrites: a streamed reply returns an
// empty assistant stub in the send result, and the stream may have
// already finished filling the message by the time the result merges.
func (s *Store) mergeMessageLocked(m Message) {
	for i := range s.messages {
		if s.messages[i].ID != m.ID {
			continue
		}
		existing := &s.messages[i]
		if m.Content != "" {
			existing.Content = m.Content
		}
		existing.Role = m.Role
		if m.Tokens > 0 {
			existing.Tokens = m.Tokens
		}
		if m.Cost > 0 {
			existing.Cost = m.Cost
		}
		if !m.CreatedAt.IsZero() {
			existing.CreatedAt = m.CreatedAt
		}
		return
	}
	s.messages = append(s.messages, m)
}

// EditMessage replaces a message's content. The conversation preview is
// recomputed only when the edited message is the latest, from the
// in-memory list without a re-fetch.
func (s *Store) EditMessage(ctx context.Context, id, content string) error {
	if strings.TrimSpace(content) == "" {
		return validationErr("content", "must not be empty")
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return validationErr("content", "exceeds 1000000 characters")
	}

	s.mu.Lock()
	if s.findMessageLocked(id) < 0 {
		s.mu.Unlock()
		return validationErr("message_id", "unknown message")
	}
	s.mu.Unlock()

	updated, err := s.backend.UpdateMessage(ctx, id, content)
	if err != nil {
		s.recordErr(err)
		return err
	}
	if updated.Content != "" {
		content = updated.Content
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findMessageLocked(id)
	if idx < 0 {
		return nil
	}
	s.messages[idx].Content = content
	if idx == len(s.messages)-1 {
		if c := s.activeConversationLocked(); c != nil {
			c.LastMessage = preview.Text(content, previewMaxLen)
			s.notify(TopicConversations)
		}
	}
	s.lastErr = nil
	s.notify(TopicMessages)
	return nil
}

// DeleteMessage removes a message on the gateway, then locally. The
// conversation's count and preview adjust only when the removed message
// was the latest, from the in-memory list without a re-fetch.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.findMessageLocked(id) < 0 {
		s.mu.Unlock()
		return validationErr("message_id", "unknown message")
	}
	s.mu.Unlock()

	if err := s.backend.DeleteMessage(ctx, id); err != nil {
		s.recordErr(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findMessageLocked(id)
	if idx < 0 {
		return nil
	}
	wasLatest := idx == len(s.messages)-1
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)

	if wasLatest {
		if c := s.activeConversationLocked(); c != nil {
			if c.MessageCount > 0 {
				c.MessageCount--
			}
			latest := ""
			if len(s.messages) > 0 {
				latest = s.messages[len(s.messages)-1].Content
			}
			c.LastMessage = preview.Text(latest, previewMaxLen)
			s.notify(TopicConversations)
		}
	}
	s.lastErr = nil
	s.notify(TopicMessages)
	return nil
}

// TogglePinned flips a conversation's pin locally, persists the set
// best-effort, and re-sorts immediately. No gateway call.
func (s *Store) TogglePinned(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findConversationLocked(id) < 0 {
		s.logger.Debug("pin toggle for unknown conversation", "conversation_id", id)
		return
	}
	if s.pinned[id] {
		delete(s.pinned, id)
	} else {
		s.pinned[id] = true
	}
	Reconcile(s.conversations, s.pinned)
	s.persistPinsLocked()
	s.notify(TopicConversations)
}

// Stats reads a conversation's aggregates straight through to the
// gateway. No local state changes, including the error field.
func (s *Store) Stats(ctx context.Context, conversationID string) (backend.Stats, error) {
	return s.backend.GetStats(ctx, conversationID)
}

// CostOverview reads current spend straight through to the gateway.
func (s *Store) CostOverview(ctx context.Context) (backend.CostOverview, error) {
	return s.backend.GetCostOverview(ctx)
}

// SetMonthlyBudget validates the dollar amount and forwards it to the
// gateway.
func (s *Store) SetMonthlyBudget(ctx context.Context, amount float64) error {
	if amount < 0 || amount > 1_000_000 {
		return validationErr("amount", "must be between 0 and 1000000")
	}
	if err := s.backend.SetMonthlyBudget(ctx, amount); err != nil {
		s.recordErr(err)
		return err
	}
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
	s.notify(TopicBudget)
	return nil
}

// Reset restores all state to initial empty values, including the
// persisted selection and pins. Used on logout and teardown.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = nil
	s.messages = nil
	s.activeID = ""
	s.pinned = make(map[string]bool)
	s.loading = false
	s.lastErr = nil
	s.persistActiveLocked()
	s.persistPinsLocked()
	s.budget.Reset()
	s.notify(TopicConversations, TopicMessages, TopicBudget)
	s.logger.Debug("store reset")
}

// HandleEvent applies one gateway streaming event.
func (s *Store) HandleEvent(ev backend.Event) {
	s.ingest.HandleEvent(ev)
}

// Run consumes streaming events until the channel closes or ctx is
// cancelled.
func (s *Store) Run(ctx context.Context, events <-chan backend.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.HandleEvent(ev)
		}
	}
}

// Subscribe registers for change notifications. The channel delivers
// topics only; subscribers pull snapshots.
func (s *Store) Subscribe(ctx context.Context) (<-chan Topic, string) {
	return s.notifier.Subscribe(ctx)
}

// Conversations returns a copy of the collection in display order.
func (s *Store) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Messages returns a copy of the active conversation's messages.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ActiveConversationID returns the selected conversation id, or "".
func (s *Store) ActiveConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// LastError returns the most recent captured failure, or nil.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Loading reports whether a load or send is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Budget returns the tracker for configuration and alert queries.
func (s *Store) Budget() *budget.Tracker {
	return s.budget
}

// submitGoal forwards goal-like chat content to the goal subsystem.
// Failures are logged, never surfaced; the send path does not wait.
func (s *Store) submitGoal(content string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	goalID, err := s.backend.SubmitGoal(ctx, backend.GoalSubmission{
		Description: content,
		Priority:    "medium",
	})
	if err != nil {
		s.logger.Debug("goal submission failed", "error", err)
		return
	}
	s.logger.Debug("goal submitted", "goal_id", goalID)
}

// renameRemote pushes an auto-derived title to the gateway best-effort.
func (s *Store) renameRemote(conversationID, title string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if _, err := s.backend.UpdateConversation(ctx, conversationID, title); err != nil {
		s.logger.Warn("auto-title rename failed",
			"conversation_id", conversationID,
			"error", err)
	}
}

// recordErr captures a write-path failure for the UI error field.
func (s *Store) recordErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.notify(TopicMessages)
}

// notify publishes change topics. Non-blocking, safe with mu held.
func (s *Store) notify(topics ...Topic) {
	for _, t := range topics {
		s.notifier.Publish(t)
	}
}

// persistActiveLocked writes the active id best-effort. Must be called
// with mu held.
func (s *Store) persistActiveLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.state.SetActiveConversation(ctx, s.activeID); err != nil {
		s.logger.Warn("persisting active conversation failed", "error", err)
	}
}

// persistPinsLocked writes the pinned set best-effort. Must be called
// with mu held.
func (s *Store) persistPinsLocked() {
	ids := make([]string, 0, len(s.pinned))
	for id := range s.pinned {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.state.SetPinnedConversations(ctx, ids); err != nil {
		s.logger.Warn("persisting pinned set failed", "error", err)
	}
}

// sortMessagesLocked keeps the active message list chronological. Stable,
// so same-instant messages keep arrival order. Must be called with mu held.
func (s *Store) sortMessagesLocked() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
}

func (s *Store) findConversationLocked(id string) int {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) findMessageLocked(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// activeConversationLocked returns the active conversation's entry, or
// nil. Must be called with mu held; the pointer is only valid under it.
func (s *Store) activeConversationLocked() *Conversation {
	idx := s.findConversationLocked(s.activeID)
	if idx < 0 {
		return nil
	}
	return &s.conversations[idx]
}
