package state

import "errors"

// Domain-specific errors for state identifiers, values, and cache operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidID is returned when an identifier does not match the
	// "domain.entity" or "domain.entity.attribute" grammar.
	ErrInvalidID = errors.New("state: invalid identifier")

	// ErrUnsupportedType is returned when a raw payload value has no
	// corresponding value tag.
	ErrUnsupportedType = errors.New("state: unsupported value type")

	// ErrUnsupportedTag is returned when a cached envelope carries an
	// unknown type tag.
	ErrUnsupportedTag = errors.New("state: unsupported value tag")

	// ErrEntityStateNotString is returned when a non-string value is written
	// to an entity-level identifier. Entity state is always a string; typed
	// values live under attribute identifiers.
	ErrEntityStateNotString = errors.New("state: entity state must be a string")

	// ErrNotCached is returned when a read misses both the cache and,
	// where a fallback applies, the hub.
	ErrNotCached = errors.New("state: value not cached")
)
