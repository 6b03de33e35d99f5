// Package stream turns gateway streaming events into conversation state
// changes.
//
// The gateway emits three event kinds for each assistant response:
// stream-start announces a message id, stream-chunk carries a cumulative
// snapshot of the content so far, and stream-end marks the message
// complete. The Ingestor consumes these events one at a time and applies
// them to a Sink, which is the conversation store's mutation surface.
//
// # Lifecycle
//
// A message id moves through three phases: unseen, streaming, finalized.
// A start (or the first chunk, when the start was lost) materializes a
// placeholder in the active conversation with the streaming flag set.
// Each chunk replaces the placeholder content wholesale; chunks are
// snapshots, not deltas, so a dropped chunk costs nothing once the next
// one arrives. An end clears the streaming flag and is a no-op when the
// message was never materialized.
//
// Events for conversations other than the active one never touch message
// state. They only bump the conversation's recency, preview, and unread
// count so the sidebar reflects activity the user has not looked at yet.
//
// # Delivery tolerances
//
// Chunks for a given id are assumed to arrive in emission order, but the
// Ingestor keeps a short-lived record of finalized ids so that a chunk
// redelivered after its end cannot overwrite completed content. A new
// start for the same id clears that record, which lets a regenerated
// response stream into the same message.
package stream
