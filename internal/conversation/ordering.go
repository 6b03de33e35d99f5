// ABOUTME: Display-order reconciliation for the conversation collection.
// ABOUTME: Pinned threads first, then most recently updated; stable and idempotent.

package conversation

import "sort"

// Reconcile applies the pinned set to the collection and restores the
// display order: pinned conversations first, then non-increasing
// UpdatedAt within each group. The sort is stable, so reconciling an
// already-ordered collection leaves it untouched. Safe to call after any
// mutation, including ones that could not have changed the order.
func Reconcile(conversations []Conversation, pinned map[string]bool) {
	for i := range conversations {
		conversations[i].Pinned = pinned[conversations[i].ID]
	}
	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
}

// Equal reports whether two collections are structurally identical.
// Consumers use it to skip redundant re-renders after a reconcile that
// changed nothing. Timestamps compare by instant, not representation.
func Equal(a, b []Conversation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalConversation(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalConversation(a, b Conversation) bool {
	return a.ID == b.ID &&
		a.Title == b.Title &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		a.Pinned == b.Pinned &&
		a.MessageCount == b.MessageCount &&
		a.LastMessage == b.LastMessage &&
		a.UnreadCount == b.UnreadCount
}
