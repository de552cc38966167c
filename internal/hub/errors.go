package hub

import "errors"

// Domain-specific errors for hub API operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrEntityNotFound is returned when the hub reports no entity at the
	// requested identifier.
	ErrEntityNotFound = errors.New("hub: entity not found")

	// ErrUnavailable is returned on transport failures and hub server errors.
	ErrUnavailable = errors.New("hub: unavailable")

	// ErrMalformedResponse is returned when the hub answers with a payload
	// that does not match the documented shape.
	ErrMalformedResponse = errors.New("hub: malformed response")

	// ErrOperationFailed is returned when the hub rejects a state write,
	// entity deletion, or action invocation.
	ErrOperationFailed = errors.New("hub: operation failed")
)
