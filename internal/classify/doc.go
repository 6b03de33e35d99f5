// Package classify provides a heuristic check for chat messages that read
// like actionable goals, used to feed best-effort goal submissions.
package classify
