// ABOUTME: Error types for gateway calls.
// ABOUTME: InvocationError wraps every transport failure with the command name.

package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by gateway calls.
var (
	// ErrNotFound maps HTTP 404 responses: the conversation or message no
	// longer exists on the gateway.
	ErrNotFound = errors.New("not found")
	// ErrExpiredToken means the configured bearer token's JWT expiry has
	// passed; calls fail fast without hitting the network.
	ErrExpiredToken = errors.New("bearer token expired")
)

// InvocationError is any failure of a gateway command: connection refused,
// request encoding, non-2xx status, or response decoding. Command holds the
// gateway command name for logs and error fields.
type InvocationError struct {
	Command string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Command, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// invocationErr wraps err for the named command.
func invocationErr(command string, err error) error {
	return &InvocationError{Command: command, Err: err}
}
