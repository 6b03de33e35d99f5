// Package backend speaks to the gateway that owns conversation data and
// model routing.
//
// # Overview
//
// The engine never talks to a model provider directly. All durable
// conversation state lives behind a gateway exposing a JSON-over-HTTP
// command surface plus a server-sent-events stream for in-flight responses.
// This package holds the wire types for that contract, the closed union of
// streaming event topics, and the HTTP client implementation.
//
// # Commands
//
// Request/response calls, one method per gateway command:
//
//	client := backend.NewHTTPClient(baseURL, tokenSource, logger)
//	convs, err := client.GetConversations(ctx)
//	result, err := client.SendMessage(ctx, backend.SendRequest{Content: "hi"})
//
// Failures are wrapped in *InvocationError carrying the command name; HTTP
// 404 responses additionally match ErrNotFound via errors.Is.
//
// # Event stream
//
// Events(ctx) opens GET /api/events and decodes the stream into Event
// values, reconnecting until the context is canceled:
//
//	for ev := range client.Events(ctx) {
//	    switch ev.Type {
//	    case backend.EventStreamStart: ...
//	    case backend.EventStreamChunk: ...
//	    case backend.EventStreamEnd: ...
//	    }
//	}
//
// Chunk events carry the cumulative content snapshot, not a delta; consumers
// replace rather than append.
package backend
