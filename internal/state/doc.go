// Package state persists the small slice of engine state that survives a
// restart: the active conversation id and the pinned-conversation set.
//
// Conversation and message content is never stored here; it is re-fetched
// from the gateway on every load. The SQLite implementation keeps a single
// key/value table; Memory backs tests and ephemeral runs.
package state
