package state

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ovationhq/ovation-core/internal/infrastructure/redis"
)

// StatePrefix is the cache key namespace for mirrored entity state.
const StatePrefix = "STATE"

var (
	entityPattern    = regexp.MustCompile(`^[a-z_][a-z0-9_]*\.[a-z0-9_]+$`)
	attributePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*\.[a-z0-9_]+\.[a-z0-9_]+$`)
)

// ID is a validated identifier for an entity ("domain.entity") or one of its
// attributes ("domain.entity.attribute"). An ID is immutable once constructed;
// construct one through ParseID, ParseEntityID, or ParseAttributeID.
type ID struct {
	domain    string
	entity    string
	attribute string
}

// ParseID validates and parses an entity-level or attribute-level identifier.
//
// Returns:
//   - ID: The parsed identifier
//   - error: ErrInvalidID if the value does not match the identifier grammar
func ParseID(value string) (ID, error) {
	if !entityPattern.MatchString(value) && !attributePattern.MatchString(value) {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, value)
	}

	parts := strings.Split(value, ".")
	id := ID{domain: parts[0], entity: parts[1]}
	if len(parts) > 2 {
		id.attribute = parts[2]
	}
	return id, nil
}

// ParseEntityID validates and parses an entity-level identifier.
// Attribute-level values are rejected.
func ParseEntityID(value string) (ID, error) {
	if !entityPattern.MatchString(value) {
		return ID{}, fmt.Errorf("%w: %q is not an entity id", ErrInvalidID, value)
	}
	parts := strings.Split(value, ".")
	return ID{domain: parts[0], entity: parts[1]}, nil
}

// ParseAttributeID validates and parses an attribute-level identifier.
// Entity-level values are rejected.
func ParseAttributeID(value string) (ID, error) {
	if !attributePattern.MatchString(value) {
		return ID{}, fmt.Errorf("%w: %q is not an attribute id", ErrInvalidID, value)
	}
	parts := strings.Split(value, ".")
	return ID{domain: parts[0], entity: parts[1], attribute: parts[2]}, nil
}

// Domain returns the identifier's domain part (e.g., "switch").
func (id ID) Domain() string { return id.domain }

// Entity returns the identifier's entity part (e.g., "heater").
func (id ID) Entity() string { return id.entity }

// Attribute returns the attribute part, or "" for an entity-level ID.
func (id ID) Attribute() string { return id.attribute }

// IsEntity reports whether this is an entity-level identifier.
func (id ID) IsEntity() bool { return id.attribute == "" }

// IsAttribute reports whether this is an attribute-level identifier.
func (id ID) IsAttribute() bool { return id.attribute != "" }

// EntityID returns the entity-level identifier for this ID, stripping the
// attribute part if present.
func (id ID) EntityID() ID {
	return ID{domain: id.domain, entity: id.entity}
}

// WithAttribute derives an attribute-level ID under this entity.
// The attribute name must satisfy the identifier grammar.
func (id ID) WithAttribute(attribute string) (ID, error) {
	return ParseAttributeID(id.EntityID().String() + "." + attribute)
}

// String returns the dotted identifier form.
func (id ID) String() string {
	if id.attribute == "" {
		return id.domain + "." + id.entity
	}
	return id.domain + "." + id.entity + "." + id.attribute
}

// CacheKey returns the cache store key for this identifier:
// "STATE:<domain>:<entity>" or "STATE:<domain>:<entity>:<attribute>".
func (id ID) CacheKey() string {
	if id.attribute == "" {
		return redis.BuildKey(StatePrefix, id.domain, id.entity)
	}
	return redis.BuildKey(StatePrefix, id.domain, id.entity, id.attribute)
}

// AttributeScanPattern returns the scan pattern matching every attribute-level
// cache key under this identifier's entity.
func (id ID) AttributeScanPattern() string {
	return redis.BuildKey(StatePrefix, id.domain, id.entity, "*")
}
