package trigger

import "context"

// Parameter names handlers may bind, drawn from the per-kind parameter set:
// state-change handlers may bind ParamStateChange, generic event handlers
// ParamEvent, notification-action handlers ParamNotifAction. Cron, sun, and
// lifecycle handlers bind nothing.
const (
	ParamStateChange = "state_change"
	ParamEvent       = "event"
	ParamNotifAction = "notif_action"
)

// Args carries the resolved parameter values for one handler invocation,
// keyed by declared parameter name.
type Args map[string]any

// StateChange returns the bound state-change event.
// Valid only when ParamStateChange was declared.
func (a Args) StateChange() StateChangeEvent {
	ev, _ := a[ParamStateChange].(StateChangeEvent)
	return ev
}

// Event returns the bound generic event.
// Valid only when ParamEvent was declared.
func (a Args) Event() FiredEvent {
	ev, _ := a[ParamEvent].(FiredEvent)
	return ev
}

// NotifAction returns the bound notification action event.
// Valid only when ParamNotifAction was declared.
func (a Args) NotifAction() NotifActionEvent {
	ev, _ := a[ParamNotifAction].(NotifActionEvent)
	return ev
}

// HandlerFunc is the automation entry point. It receives only the parameters
// the handler declared at registration.
type HandlerFunc func(ctx context.Context, args Args) error

// Handler pairs an automation function with its identity and its parameter
// binding descriptor. Params lists the names the function wants resolved from
// the trigger kind's parameter set; an empty list binds nothing.
type Handler struct {
	Name   string
	Params []string
	Run    HandlerFunc
}

func (h Handler) validate() error {
	if h.Name == "" || h.Run == nil {
		return ErrInvalidHandler
	}
	return nil
}
