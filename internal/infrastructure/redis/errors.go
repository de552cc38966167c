package redis

import "errors"

// Domain-specific errors for cache store operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("redis: connection failed")

	// ErrNotConnected is returned when a health check finds the store unreachable.
	ErrNotConnected = errors.New("redis: store not reachable")
)
