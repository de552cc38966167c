package state

import (
	"fmt"
	"strings"
	"time"
)

// Reserved attribute names injected from the hub's state envelope.
const (
	AttrLastChanged = "last_changed"
	AttrLastUpdated = "last_updated"
)

// EntityState is a snapshot of one hub entity: its primary state string plus
// its attributes as tagged values. Attribute names are normalized and the
// envelope timestamps are injected as regular attributes, so a snapshot can be
// mirrored into the cache without further shaping.
type EntityState struct {
	ID         ID
	State      string
	Attributes map[string]Value
}

// NewEntityState builds a snapshot from a raw hub payload.
//
// Attribute names are normalized (lowercased, spaces become underscores) and
// values are converted to tagged values, with string values that parse as
// ISO-8601 timestamps promoted to datetime. The envelope's last_changed and
// last_updated stamps are injected as attributes when non-zero.
//
// Parameters:
//   - id: Entity-level identifier for the snapshot
//   - stateStr: The entity's primary state string
//   - rawAttrs: Attribute payload as decoded JSON (may be nil)
//   - lastChanged: Envelope timestamp of the last state transition
//   - lastUpdated: Envelope timestamp of the last attribute update
//
// Returns:
//   - EntityState: The normalized snapshot
//   - error: ErrInvalidID for an attribute-level id, or a conversion error
//     for an unsupported attribute value type
func NewEntityState(id ID, stateStr string, rawAttrs map[string]any, lastChanged, lastUpdated time.Time) (EntityState, error) {
	if id.IsAttribute() {
		return EntityState{}, fmt.Errorf("%w: %q is not an entity id", ErrInvalidID, id.String())
	}

	attrs := make(map[string]Value, len(rawAttrs)+2)
	for name, raw := range rawAttrs {
		value, err := NormalizeAttributeValue(raw)
		if err != nil {
			return EntityState{}, fmt.Errorf("attribute %q of %s: %w", name, id.String(), err)
		}
		attrs[NormalizeAttributeName(name)] = value
	}
	if !lastChanged.IsZero() {
		attrs[AttrLastChanged] = TimeValue(lastChanged)
	}
	if !lastUpdated.IsZero() {
		attrs[AttrLastUpdated] = TimeValue(lastUpdated)
	}

	return EntityState{ID: id, State: stateStr, Attributes: attrs}, nil
}

// NormalizeAttributeName maps a hub attribute name onto the identifier
// grammar: lowercased, with spaces replaced by underscores.
func NormalizeAttributeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// NormalizeAttributeValue converts a raw attribute value to a tagged value,
// promoting strings that parse as ISO-8601 timestamps to datetime so they
// survive a cache round trip as instants rather than opaque strings.
func NormalizeAttributeValue(raw any) (Value, error) {
	if s, ok := raw.(string); ok {
		if t, err := ParseTimestamp(s); err == nil {
			return TimeValue(t), nil
		}
	}
	return ValueOf(raw)
}

// AttributeID returns the attribute-level identifier for the named attribute
// of this snapshot's entity. The name is normalized first.
func (e EntityState) AttributeID(name string) (ID, error) {
	return e.ID.WithAttribute(NormalizeAttributeName(name))
}
