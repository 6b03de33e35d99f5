// ABOUTME: In-memory fan-out for coarse store-change notifications.
// ABOUTME: Subscribers receive topics and pull fresh snapshots; no state rides the channel.

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Topic identifies a class of store change.
type Topic string

const (
	// TopicConversations covers collection membership, order, titles,
	// previews, pins, and unread counts.
	TopicConversations Topic = "conversations"
	// TopicMessages covers the active conversation's message list and the
	// loading and error flags.
	TopicMessages Topic = "messages"
	// TopicBudget covers usage accumulation and alerts.
	TopicBudget Topic = "budget"
)

// subscriberBufferSize is the channel buffer for each subscriber. Topics
// coalesce on the pull side, so a small buffer is enough.
const subscriberBufferSize = 16

// Notifier provides in-memory pub/sub for store-change topics. A
// notification means "this class of state changed, pull a snapshot";
// dropping one for a slow subscriber is harmless because the next pull
// sees the same state.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[string]chan Topic
	logger      *slog.Logger
}

// NewNotifier creates a notifier. Pass nil logger for the default.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		subscribers: make(map[string]chan Topic),
		logger:      logger.With("component", "notifier"),
	}
}

// Subscribe registers a subscriber for all topics. It returns the receive
// channel and a subscription id for explicit unsubscription. The
// subscription is cleaned up automatically when ctx is cancelled.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan Topic, string) {
	subID := uuid.New().String()
	ch := make(chan Topic, subscriberBufferSize)

	n.mu.Lock()
	n.subscribers[subID] = ch
	n.mu.Unlock()

	n.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		n.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish fans a topic out to every subscriber. Non-blocking: the topic is
// dropped for subscribers whose channels are full. Sends happen under the
// read lock, so Unsubscribe and Close cannot close a channel mid-send.
func (n *Notifier) Publish(topic Topic) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subscribers {
		select {
		case ch <- topic:
		default:
			n.logger.Debug("dropped notification for slow subscriber", "topic", string(topic))
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (n *Notifier) Unsubscribe(subID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch, ok := n.subscribers[subID]
	if !ok {
		return
	}

	delete(n.subscribers, subID)
	close(ch)

	n.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the notifier and closes all subscriber channels.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for subID, ch := range n.subscribers {
		close(ch)
		delete(n.subscribers, subID)
	}

	n.logger.Debug("notifier closed")
}
