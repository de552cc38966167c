package stream

import "errors"

// Domain-specific errors for the hub event stream.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the websocket dial or protocol
	// handshake fails.
	ErrConnectionFailed = errors.New("stream: connection failed")

	// ErrAuthFailed is returned when the hub rejects the access token.
	ErrAuthFailed = errors.New("stream: authentication failed")

	// ErrSubscribeFailed is returned when the event subscription is not
	// acknowledged.
	ErrSubscribeFailed = errors.New("stream: subscription failed")

	// ErrMalformedEvent is returned when an inbound event payload is missing
	// required fields. Fatal for that event only, never for the connection.
	ErrMalformedEvent = errors.New("stream: malformed event")
)
