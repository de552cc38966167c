package trigger

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// StateChangeOption narrows a state-change registration.
type StateChangeOption func(*Registration)

// FromState fires only when the previous state equals s.
func FromState(s string) StateChangeOption {
	return func(r *Registration) { r.fromState = &s }
}

// ToState fires only when the new state equals s.
func ToState(s string) StateChangeOption {
	return func(r *Registration) { r.toState = &s }
}

// EventOption narrows a generic event registration.
type EventOption func(*Registration)

// ForUser fires only for events originated by the given hub user.
func ForUser(userID string) EventOption {
	return func(r *Registration) { r.userID = &userID }
}

// MatchData fires only when every given key/value pair is present in the
// event's data payload.
func MatchData(data map[string]any) EventOption {
	return func(r *Registration) { r.eventData = data }
}

// NotifActionOption narrows a notification-action registration.
type NotifActionOption func(*Registration)

// ForDevice fires only for actions tapped on the given device.
func ForDevice(deviceID string) NotifActionOption {
	return func(r *Registration) { r.deviceID = &deviceID }
}

// OnStateChange registers a handler for state transitions of one entity.
//
// Example, fire when the heater turns on:
//
//	provider.OnStateChange("switch.heater", handler, trigger.FromState("off"), trigger.ToState("on"))
//
// Available handler params: state_change.
func (p *Provider) OnStateChange(entityID string, h Handler, opts ...StateChangeOption) error {
	if err := h.validate(); err != nil {
		return err
	}
	reg := &Registration{Kind: KindStateChange, MatchKey: entityID, Handler: h}
	for _, opt := range opts {
		opt(reg)
	}
	p.register(reg)
	return nil
}

// CronSpec describes a cron schedule either as a single pattern string or as
// five independent fields. Each field accepts scalars, lists (joined with
// commas), or wildcards; an empty field means "*". Pattern and fields are
// mutually exclusive.
type CronSpec struct {
	Pattern    string
	Minute     []string
	Hour       []string
	DayOfMonth []string
	Month      []string
	DayOfWeek  []string
}

func (s CronSpec) expression() (string, error) {
	hasFields := len(s.Minute)+len(s.Hour)+len(s.DayOfMonth)+len(s.Month)+len(s.DayOfWeek) > 0
	if s.Pattern != "" && hasFields {
		return "", ErrCronConflict
	}
	if s.Pattern != "" {
		return s.Pattern, nil
	}
	field := func(parts []string) string {
		if len(parts) == 0 {
			return "*"
		}
		return strings.Join(parts, ",")
	}
	return strings.Join([]string{
		field(s.Minute),
		field(s.Hour),
		field(s.DayOfMonth),
		field(s.Month),
		field(s.DayOfWeek),
	}, " "), nil
}

// OnCron registers a handler on a cron schedule. The schedule is validated
// here by building it; a malformed spec never reaches the timer runner.
//
// Available handler params: none.
func (p *Provider) OnCron(spec CronSpec, h Handler) error {
	if err := h.validate(); err != nil {
		return err
	}
	expr, err := spec.expression()
	if err != nil {
		return err
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidCron, expr, err)
	}
	p.register(&Registration{
		Kind:     KindCron,
		MatchKey: expr,
		Handler:  h,
		schedule: schedule,
		cronExpr: expr,
	})
	return nil
}

// OnEvent registers a handler for a generic hub event type. Event types with
// a dedicated trigger kind are rejected; use the specific registration
// instead (e.g. OnStateChange, not OnEvent("state_changed", ...)).
//
// Available handler params: event.
func (p *Provider) OnEvent(eventType string, h Handler, opts ...EventOption) error {
	if err := h.validate(); err != nil {
		return err
	}
	switch eventType {
	case EventTypeStateChanged, EventTypeNotifAction, EventTypeHubStarted, EventTypeHubShutdown:
		return fmt.Errorf("%w: %q", ErrReservedEventType, eventType)
	}
	reg := &Registration{Kind: KindEventFired, MatchKey: eventType, Handler: h}
	for _, opt := range opts {
		opt(reg)
	}
	p.register(reg)
	return nil
}

// OnNotifAction registers a handler for a notification action name.
//
// Available handler params: notif_action.
func (p *Provider) OnNotifAction(action string, h Handler, opts ...NotifActionOption) error {
	if err := h.validate(); err != nil {
		return err
	}
	reg := &Registration{Kind: KindNotifAction, MatchKey: action, Handler: h}
	for _, opt := range opts {
		opt(reg)
	}
	p.register(reg)
	return nil
}

// OnSun registers a handler against a solar event with an offset. The offset
// must lie strictly inside ±12h so consecutive occurrences stay unambiguous.
//
// Example, close the blinds half an hour after sunset:
//
//	provider.OnSun(trigger.SolarSunset, 30*time.Minute, handler)
//
// Available handler params: none.
func (p *Provider) OnSun(event SolarEvent, offset time.Duration, h Handler) error {
	if err := h.validate(); err != nil {
		return err
	}
	if offset <= -12*time.Hour || offset >= 12*time.Hour {
		return fmt.Errorf("%w: got %s", ErrSunOffset, offset)
	}
	p.register(&Registration{
		Kind:       KindSun,
		MatchKey:   string(event),
		Handler:    h,
		solarEvent: event,
		offset:     offset,
	})
	return nil
}

// OnLifecycle registers a handler for a lifecycle phase. Handlers on
// PhaseCoreShutdown run synchronously before the process exits.
//
// Available handler params: none.
func (p *Provider) OnLifecycle(phase LifecyclePhase, h Handler) error {
	if err := h.validate(); err != nil {
		return err
	}
	p.register(&Registration{Kind: KindLifecycle, MatchKey: string(phase), Handler: h})
	return nil
}

func (p *Provider) register(reg *Registration) {
	p.active().add(reg)
}
