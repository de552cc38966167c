package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ovationhq/ovation-core/internal/state"
)

// hubEvent is a decoded inbound event payload.
type hubEvent struct {
	Type      string
	Data      map[string]any
	TimeFired time.Time
	UserID    string
}

// wireHubEvent matches the hub's event payload shape.
type wireHubEvent struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
	TimeFired string         `json:"time_fired"`
	Context   struct {
		UserID *string `json:"user_id"`
	} `json:"context"`
}

// parseEvent decodes a raw event payload. An event without a type string is
// malformed; a missing or unparseable time_fired falls back to now.
func parseEvent(raw []byte) (hubEvent, error) {
	var wire wireHubEvent
	if err := json.Unmarshal(raw, &wire); err != nil {
		return hubEvent{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if wire.EventType == "" {
		return hubEvent{}, fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	}

	timeFired := time.Now().UTC()
	if wire.TimeFired != "" {
		if parsed, err := state.ParseTimestamp(wire.TimeFired); err == nil {
			timeFired = parsed
		}
	}

	ev := hubEvent{
		Type:      wire.EventType,
		Data:      wire.Data,
		TimeFired: timeFired,
	}
	if ev.Data == nil {
		ev.Data = map[string]any{}
	}
	if wire.Context.UserID != nil {
		ev.UserID = *wire.Context.UserID
	}
	return ev, nil
}

// resolveEventEntity builds an entity snapshot from the old_state/new_state
// object embedded in a state_changed event.
func resolveEventEntity(raw map[string]any) (state.EntityState, error) {
	entityID, _ := raw["entity_id"].(string)
	id, err := state.ParseEntityID(entityID)
	if err != nil {
		return state.EntityState{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	lastChangedStr, _ := raw["last_changed"].(string)
	lastUpdatedStr, _ := raw["last_updated"].(string)
	if lastChangedStr == "" || lastUpdatedStr == "" {
		return state.EntityState{}, fmt.Errorf("%w: state object missing timestamps", ErrMalformedEvent)
	}
	lastChanged, err := state.ParseTimestamp(lastChangedStr)
	if err != nil {
		return state.EntityState{}, fmt.Errorf("%w: bad last_changed %q", ErrMalformedEvent, lastChangedStr)
	}
	lastUpdated, err := state.ParseTimestamp(lastUpdatedStr)
	if err != nil {
		return state.EntityState{}, fmt.Errorf("%w: bad last_updated %q", ErrMalformedEvent, lastUpdatedStr)
	}

	stateStr := fmt.Sprint(raw["state"])
	attrs, _ := raw["attributes"].(map[string]any)

	entity, err := state.NewEntityState(id, stateStr, attrs, lastChanged, lastUpdated)
	if err != nil {
		return state.EntityState{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return entity, nil
}
