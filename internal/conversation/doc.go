// Package conversation holds the client-side state for chat threads.
//
// # Overview
//
// The conversation package sits between the UI and the gateway client. It
// owns the conversation list, the message list of the active conversation,
// the pinned set, and the loading and error flags the UI renders from. All
// mutations flow through the Store so the ordering invariant and pin
// persistence stay consistent no matter which operation ran.
//
// # Store
//
// The Store coordinates every operation:
//
//	st := conversation.New(gatewayClient, stateStore, tracker, logger)
//
// Key operations:
//
//   - LoadConversations(ctx): Replace the collection from the gateway
//   - CreateConversation(ctx, title): Create, activate, and clear messages
//   - SendMessage(ctx, content, opts): Send and merge the returned pair
//   - SelectConversation(ctx, id): Switch threads and load history
//   - TogglePinned(id): Flip a pin locally and persist the set
//   - Reset(): Drop all state back to empty
//
// Writes call the gateway first and mutate local state only on success.
// Write failures are recorded in the error field and returned. Read
// failures (loads) are recorded and swallowed so stale-but-valid state
// keeps rendering.
//
// # Ordering
//
// After every mutation the collection is reconciled: pinned conversations
// first, then most recently updated. Reconcile is stable and idempotent,
// so callers run it freely after any change.
//
// # Streaming
//
// Gateway stream events enter through HandleEvent, which routes them to
// the stream ingestor. The ingestor mutates the store through a narrow
// sink: placeholder creation, content replacement, finalization, and
// activity bumps for inactive conversations.
//
// # Change Notifications
//
// UIs subscribe for coarse change topics and pull snapshots when one
// arrives:
//
//	ch, id := st.Subscribe(ctx)
//
// Topics:
//   - conversations: collection membership, order, titles, previews
//   - messages: the active conversation's message list
//   - budget: usage or alerts changed
//
// Notifications carry no state. Snapshot getters return copies, never
// live references.
package conversation
