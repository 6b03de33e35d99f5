// ABOUTME: Tests for display-order reconciliation.
// ABOUTME: Pinned-first grouping, recency order, stability, and idempotence.

package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conv(id string, updated time.Time) Conversation {
	return Conversation{ID: id, Title: id, UpdatedAt: updated}
}

func ids(conversations []Conversation) []string {
	out := make([]string, len(conversations))
	for i, c := range conversations {
		out[i] = c.ID
	}
	return out
}

func TestReconcile_PinnedFirstThenRecency(t *testing.T) {
	base := time.Date(2025, 3, 19, 12, 0, 0, 0, time.UTC)
	conversations := []Conversation{
		conv("recent", base.Add(3*time.Hour)),
		conv("pinned-old", base),
		conv("middle", base.Add(2*time.Hour)),
		conv("pinned-new", base.Add(time.Hour)),
	}
	pinned := map[string]bool{"pinned-old": true, "pinned-new": true}

	Reconcile(conversations, pinned)

	assert.Equal(t, []string{"pinned-new", "pinned-old", "recent", "middle"}, ids(conversations))
	assert.True(t, conversations[0].Pinned)
	assert.True(t, conversations[1].Pinned)
	assert.False(t, conversations[2].Pinned)
	assert.False(t, conversations[3].Pinned)
}

func TestReconcile_UnpinningRejoinsRecencyOrder(t *testing.T) {
	base := time.Date(2025, 3, 19, 12, 0, 0, 0, time.UTC)
	conversations := []Conversation{
		conv("a", base.Add(2*time.Hour)),
		conv("b", base.Add(time.Hour)),
		conv("c", base),
	}
	pinned := map[string]bool{"c": true}

	Reconcile(conversations, pinned)
	require.Equal(t, []string{"c", "a", "b"}, ids(conversations))

	// Unpin: c must rejoin the unpinned group by recency, not stay on top.
	delete(pinned, "c")
	Reconcile(conversations, pinned)

	assert.Equal(t, []string{"a", "b", "c"}, ids(conversations))
	assert.False(t, conversations[2].Pinned)
}

func TestReconcile_EqualTimestampsKeepRelativeOrder(t *testing.T) {
	at := time.Date(2025, 3, 19, 12, 0, 0, 0, time.UTC)
	conversations := []Conversation{
		conv("first", at),
		conv("second", at),
		conv("third", at),
	}

	Reconcile(conversations, nil)

	assert.Equal(t, []string{"first", "second", "third"}, ids(conversations))
}

func TestReconcile_IsIdempotent(t *testing.T) {
	base := time.Date(2025, 3, 19, 12, 0, 0, 0, time.UTC)
	conversations := []Conversation{
		conv("x", base.Add(time.Hour)),
		conv("y", base),
		conv("z", base.Add(2*time.Hour)),
	}
	pinned := map[string]bool{"y": true}

	Reconcile(conversations, pinned)
	once := make([]Conversation, len(conversations))
	copy(once, conversations)

	Reconcile(conversations, pinned)

	assert.True(t, Equal(once, conversations),
		"reconciling an ordered collection must change nothing")
}

func TestReconcile_EmptyCollection(t *testing.T) {
	Reconcile(nil, map[string]bool{"ghost": true})
	Reconcile([]Conversation{}, nil)
}

func TestEqual_DetectsFieldDifferences(t *testing.T) {
	at := time.Date(2025, 3, 19, 12, 0, 0, 0, time.UTC)
	a := []Conversation{conv("a", at)}

	b := []Conversation{conv("a", at)}
	assert.True(t, Equal(a, b))

	b[0].Title = "renamed"
	assert.False(t, Equal(a, b))

	b[0].Title = "a"
	b[0].UnreadCount = 1
	assert.False(t, Equal(a, b))

	assert.False(t, Equal(a, nil))
	assert.True(t, Equal(nil, nil))
}

func TestEqual_ComparesTimestampsByInstant(t *testing.T) {
	at := time.Date(2025, 3, 19, 12, 0, 0, 0, time.UTC)
	a := []Conversation{conv("a", at)}
	b := []Conversation{conv("a", at.In(time.FixedZone("EST", -5*3600)))}

	assert.True(t, Equal(a, b), "same instant in another zone is still equal")
}
