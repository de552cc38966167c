package trigger

import (
	"fmt"
	"time"

	"github.com/ovationhq/ovation-core/internal/state"
)

// Event type discriminators used to classify inbound hub events. These names
// are part of the hub's wire protocol.
const (
	EventTypeStateChanged = "state_changed"
	EventTypeNotifAction  = "ios.notification_action_fired"
	EventTypeHubStarted   = "ovation_hub_started"
	EventTypeHubShutdown  = "homeassistant_final_write"
)

// Attribute names synthesized during state-change handling and excluded from
// the derived changes map.
const attrPreviousState = "previous_state"

var syntheticAttrs = map[string]struct{}{
	attrPreviousState:     {},
	state.AttrLastChanged: {},
	state.AttrLastUpdated: {},
}

// FiredEvent is a generic hub event.
type FiredEvent struct {
	Timestamp time.Time
	TimeFired time.Time
	Type      string
	Data      map[string]any
	UserID    string
}

// StateChangeEvent describes one entity state transition. At least one of
// Old/New is present; both nil is malformed input and is rejected upstream.
type StateChangeEvent struct {
	Timestamp time.Time
	TimeFired time.Time
	EntityID  state.ID
	Old       *state.EntityState
	New       *state.EntityState
}

// NotifActionEvent describes a tapped notification action.
type NotifActionEvent struct {
	FiredEvent
	Name       string
	ActionData any
	DeviceID   string
	DeviceName string
}

// LifecyclePhase identifies a service lifecycle transition, for either this
// process or the hub.
type LifecyclePhase string

const (
	PhaseCoreStartup  LifecyclePhase = "core_startup"
	PhaseCoreShutdown LifecyclePhase = "core_shutdown"
	PhaseHubStartup   LifecyclePhase = "hub_startup"
	PhaseHubShutdown  LifecyclePhase = "hub_shutdown"
)

// Changes derives a per-key (old, new) diff across the transition for
// diagnostics logging: the state pair when it changed, plus every attribute
// whose value differs, excluding synthetic bookkeeping attributes. Returns
// nil unless both Old and New are present.
func (e StateChangeEvent) Changes() map[string][2]string {
	if e.Old == nil || e.New == nil {
		return nil
	}

	changes := make(map[string][2]string)
	if e.Old.State != e.New.State {
		changes["state"] = [2]string{e.Old.State, e.New.State}
	}

	seen := make(map[string]struct{}, len(e.Old.Attributes)+len(e.New.Attributes))
	for name := range e.Old.Attributes {
		seen[name] = struct{}{}
	}
	for name := range e.New.Attributes {
		seen[name] = struct{}{}
	}

	for name := range seen {
		if _, synthetic := syntheticAttrs[name]; synthetic {
			continue
		}
		oldVal, hadOld := e.Old.Attributes[name]
		newVal, hadNew := e.New.Attributes[name]
		if hadOld != hadNew || !oldVal.Equal(newVal) {
			changes[name] = [2]string{renderValue(oldVal, hadOld), renderValue(newVal, hadNew)}
		}
	}
	return changes
}

func renderValue(v state.Value, present bool) string {
	if !present || v.IsNone() {
		return "<absent>"
	}
	switch v.Tag() {
	case state.TagString:
		return v.String()
	case state.TagInt:
		return fmt.Sprint(v.Int())
	case state.TagFloat:
		return fmt.Sprint(v.Float())
	case state.TagBool:
		return fmt.Sprint(v.Bool())
	case state.TagTime:
		return v.Time().Format(time.RFC3339)
	case state.TagDict:
		return fmt.Sprint(v.Dict())
	case state.TagList:
		return fmt.Sprint(v.List())
	default:
		return "<absent>"
	}
}
