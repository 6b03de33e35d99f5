// ABOUTME: Validation errors raised before any gateway call.
// ABOUTME: Distinct from invocation errors so UIs can render them inline.

package conversation

import "fmt"

// ValidationError reports input rejected locally, before the gateway was
// contacted. It never changes store state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
