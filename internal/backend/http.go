// ABOUTME: HTTP implementation of the gateway command surface and event stream.
// ABOUTME: JSON requests with bearer auth; SSE consumption with automatic reconnect.

package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// eventBuffer sizes the delivered-events channel.
	eventBuffer = 64
	// reconnectDelay is the pause between event stream connection attempts.
	reconnectDelay = 2 * time.Second
	// requestTimeout bounds command calls. The event stream client has no
	// timeout; it stays open indefinitely.
	requestTimeout = 30 * time.Second
	// maxEventLine bounds a single SSE line; cumulative chunks grow with
	// message length.
	maxEventLine = 1024 * 1024
)

// HTTPClient talks to the gateway over JSON HTTP plus an SSE event stream.
type HTTPClient struct {
	baseURL string
	tokens  *TokenSource
	api     *http.Client
	stream  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the gateway at baseURL. tokens may be
// nil for unauthenticated gateways.
func NewHTTPClient(baseURL string, tokens *TokenSource, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		api:     &http.Client{Timeout: requestTimeout},
		stream:  &http.Client{},
		logger:  logger.With("component", "backend"),
	}
}

// GetConversations fetches all conversation summaries, most recent first.
func (c *HTTPClient) GetConversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.do(ctx, "get-conversations", http.MethodGet, "/api/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMessages fetches the full message list of one conversation.
func (c *HTTPClient) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	path := "/api/conversations/" + conversationID + "/messages"
	if err := c.do(ctx, "get-messages", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	for _, m := range out {
		if err := m.Validate(); err != nil {
			return nil, invocationErr("get-messages", err)
		}
	}
	return out, nil
}

// GetStats fetches aggregate counters for one conversation.
func (c *HTTPClient) GetStats(ctx context.Context, conversationID string) (Stats, error) {
	var out Stats
	path := "/api/conversations/" + conversationID + "/stats"
	err := c.do(ctx, "get-conversation-stats", http.MethodGet, path, nil, &out)
	return out, err
}

// CreateConversation creates a conversation with the given title.
func (c *HTTPClient) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	var out Conversation
	body := map[string]string{"title": title}
	err := c.do(ctx, "create-conversation", http.MethodPost, "/api/conversations", body, &out)
	return out, err
}

// UpdateConversation renames a conversation.
func (c *HTTPClient) UpdateConversation(ctx context.Context, id, title string) (Conversation, error) {
	var out Conversation
	body := map[string]string{"title": title}
	err := c.do(ctx, "update-conversation", http.MethodPatch, "/api/conversations/"+id, body, &out)
	return out, err
}

// DeleteConversation removes a conversation and its messages.
func (c *HTTPClient) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, "delete-conversation", http.MethodDelete, "/api/conversations/"+id, nil, nil)
}

// SendMessage submits user content and returns the synchronous result. When
// the gateway streams the assistant reply, the returned assistant message is
// a stub whose content fills in over the event channel.
func (c *HTTPClient) SendMessage(ctx context.Context, req SendRequest) (*SendResult, error) {
	var out SendResult
	if err := c.do(ctx, "send-message", http.MethodPost, "/api/send", req, &out); err != nil {
		return nil, err
	}
	if err := out.UserMessage.Validate(); err != nil {
		return nil, invocationErr("send-message", err)
	}
	if err := out.AssistantMessage.Validate(); err != nil {
		return nil, invocationErr("send-message", err)
	}
	return &out, nil
}

// UpdateMessage replaces a message's content.
func (c *HTTPClient) UpdateMessage(ctx context.Context, id, content string) (Message, error) {
	var out Message
	body := map[string]string{"content": content}
	err := c.do(ctx, "update-message", http.MethodPatch, "/api/messages/"+id, body, &out)
	return out, err
}

// DeleteMessage removes a single message.
func (c *HTTPClient) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, "delete-message", http.MethodDelete, "/api/messages/"+id, nil, nil)
}

// GetCostOverview fetches current spend aggregates.
func (c *HTTPClient) GetCostOverview(ctx context.Context) (CostOverview, error) {
	var out CostOverview
	err := c.do(ctx, "get-cost-overview", http.MethodGet, "/api/cost-overview", nil, &out)
	return out, err
}

// SetMonthlyBudget updates the gateway's monthly dollar budget.
func (c *HTTPClient) SetMonthlyBudget(ctx context.Context, amount float64) error {
	body := map[string]float64{"amount": amount}
	return c.do(ctx, "set-monthly-budget", http.MethodPut, "/api/budget", body, nil)
}

// SubmitGoal hands a chat-derived task to the goal-tracking subsystem and
// returns the assigned goal id.
func (c *HTTPClient) SubmitGoal(ctx context.Context, sub GoalSubmission) (string, error) {
	var out struct {
		GoalID string `json:"goal_id"`
	}
	if err := c.do(ctx, "submit-goal", http.MethodPost, "/api/goals", sub, &out); err != nil {
		return "", err
	}
	return out.GoalID, nil
}

// Events opens the gateway's event stream and delivers decoded events until
// ctx is canceled. The connection is re-established after failures; the
// returned channel closes only on cancellation.
func (c *HTTPClient) Events(ctx context.Context) <-chan Event {
	out := make(chan Event, eventBuffer)
	go c.streamEvents(ctx, out)
	return out
}

// do runs one command round-trip: encode body, send, map status, decode out.
func (c *HTTPClient) do(ctx context.Context, command, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return invocationErr(command, fmt.Errorf("encoding request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return invocationErr(command, fmt.Errorf("creating request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(req); err != nil {
		return invocationErr(command, err)
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return invocationErr(command, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return invocationErr(command, fmt.Errorf("%w: %s", ErrNotFound, errorBody(resp)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errorBody(resp)
		if msg == "" {
			return invocationErr(command, fmt.Errorf("server returned status %d", resp.StatusCode))
		}
		return invocationErr(command, fmt.Errorf("server returned status %d: %s", resp.StatusCode, msg))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return invocationErr(command, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// authorize attaches the bearer token when one is configured.
func (c *HTTPClient) authorize(req *http.Request) error {
	header, err := c.tokens.Authorization()
	if err != nil {
		return err
	}
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return nil
}

// errorBody extracts the gateway's {"error": "..."} message, if any.
func errorBody(resp *http.Response) string {
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return ""
	}
	var errResp map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return ""
	}
	return errResp["error"]
}

// streamEvents owns the reconnect loop. It closes out when ctx ends.
func (c *HTTPClient) streamEvents(ctx context.Context, out chan<- Event) {
	defer close(out)

	for {
		err := c.consumeEventStream(ctx, out)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn("event stream disconnected", "error", err)
		} else {
			c.logger.Debug("event stream closed by gateway, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// consumeEventStream runs one SSE connection until it drops.
func (c *HTTPClient) consumeEventStream(ctx context.Context, out chan<- Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/events", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	var eventName string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if eventName != "" && len(dataLines) > 0 {
				c.dispatchEvent(ctx, out, eventName, strings.Join(dataLines, "\n"))
			}
			eventName = ""
			dataLines = nil
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimPrefix(line, "data:"))
			continue
		}
	}

	return scanner.Err()
}

// dispatchEvent decodes one SSE event and forwards it. Unknown topics are
// skipped so a newer gateway can add events without breaking older clients.
func (c *HTTPClient) dispatchEvent(ctx context.Context, out chan<- Event, name, data string) {
	ev, err := decodeEvent(name, []byte(data))
	if err != nil {
		c.logger.Debug("ignoring stream event", "event", name, "error", err)
		return
	}

	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

// decodeEvent maps an SSE event name and JSON payload onto the event union.
func decodeEvent(name string, data []byte) (Event, error) {
	switch name {
	case "stream-start":
		var p StreamStart
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("decoding %s: %w", name, err)
		}
		return Event{Type: EventStreamStart, Start: &p}, nil
	case "stream-chunk":
		var p StreamChunk
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("decoding %s: %w", name, err)
		}
		return Event{Type: EventStreamChunk, Chunk: &p}, nil
	case "stream-end":
		var p StreamEnd
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("decoding %s: %w", name, err)
		}
		return Event{Type: EventStreamEnd, End: &p}, nil
	default:
		return Event{}, fmt.Errorf("unknown event %q", name)
	}
}
