// ABOUTME: Store interface for durable UI-selection state plus an in-memory implementation.
// ABOUTME: Exactly two keys live here: active conversation id and pinned ids.

package state

import (
	"context"
	"sync"
)

// Store persists selection and pin state across restarts. Implementations
// must be safe for concurrent use.
type Store interface {
	// ActiveConversation returns the persisted active conversation id, or
	// an empty string when none is set.
	ActiveConversation(ctx context.Context) (string, error)
	// SetActiveConversation records the active conversation. An empty id
	// clears the selection.
	SetActiveConversation(ctx context.Context, id string) error
	// PinnedConversations returns the pinned ids in their persisted order.
	PinnedConversations(ctx context.Context) ([]string, error)
	// SetPinnedConversations replaces the pinned id set.
	SetPinnedConversations(ctx context.Context, ids []string) error
	// Close releases any underlying resources.
	Close() error
}

// Memory is a Store that lives and dies with the process. Used by tests and
// by runs configured without a state path.
type Memory struct {
	mu     sync.Mutex
	active string
	pinned []string
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) ActiveConversation(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, nil
}

func (m *Memory) SetActiveConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = id
	return nil
}

func (m *Memory) PinnedConversations(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.pinned))
	copy(out, m.pinned)
	return out, nil
}

func (m *Memory) SetPinnedConversations(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinned = make([]string, len(ids))
	copy(m.pinned, ids)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
