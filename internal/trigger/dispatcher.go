package trigger

import (
	"context"
	"reflect"
	"sync"
)

// Logger defines the logging interface required by the dispatcher.
// This allows the package to remain decoupled from specific logging implementations.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Dispatcher routes typed events to matching registrations.
//
// Each matching handler runs in its own goroutine, fire-and-forget relative
// to the dispatcher and to its siblings, with panics recovered and errors
// logged against the handler's identity. The one exception is core shutdown,
// whose handlers run synchronously so they complete before the process exits.
//
// Thread Safety: safe for concurrent use.
type Dispatcher struct {
	provider *Provider
	logger   Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher over the given provider.
// If logger is nil, logging is disabled.
func NewDispatcher(provider *Provider, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{provider: provider, logger: logger}
}

// StateChanged dispatches a state transition to handlers registered on the
// entity. A transition with no actual state change never fires, and the
// from/to filters are applied per registration.
func (d *Dispatcher) StateChanged(ctx context.Context, ev StateChangeEvent) {
	if ev.Old == nil || ev.New == nil || ev.Old.State == ev.New.State {
		return
	}

	var matched []*Registration
	for _, reg := range d.provider.union(KindStateChange, ev.EntityID.String()) {
		if reg.fromState != nil && ev.Old.State != *reg.fromState {
			continue
		}
		if reg.toState != nil && ev.New.State != *reg.toState {
			continue
		}
		matched = append(matched, reg)
	}
	d.invoke(ctx, matched, Args{ParamStateChange: ev}, false)
}

// EventFired dispatches a generic event to handlers registered on its type,
// applying the per-registration user and data filters.
func (d *Dispatcher) EventFired(ctx context.Context, ev FiredEvent) {
	var matched []*Registration
	for _, reg := range d.provider.union(KindEventFired, ev.Type) {
		if reg.userID != nil && ev.UserID != *reg.userID {
			continue
		}
		if !matchesData(reg.eventData, ev.Data) {
			continue
		}
		matched = append(matched, reg)
	}
	d.invoke(ctx, matched, Args{ParamEvent: ev}, false)
}

// NotifAction dispatches a notification action to handlers registered on the
// action name, applying the per-registration device filter.
func (d *Dispatcher) NotifAction(ctx context.Context, ev NotifActionEvent) {
	var matched []*Registration
	for _, reg := range d.provider.union(KindNotifAction, ev.Name) {
		if reg.deviceID != nil && ev.DeviceID != *reg.deviceID {
			continue
		}
		matched = append(matched, reg)
	}
	d.invoke(ctx, matched, Args{ParamNotifAction: ev}, false)
}

// Lifecycle dispatches a lifecycle phase. PhaseCoreShutdown handlers run
// synchronously; all other phases run concurrently.
func (d *Dispatcher) Lifecycle(ctx context.Context, phase LifecyclePhase) {
	regs := d.provider.union(KindLifecycle, string(phase))
	d.invoke(ctx, regs, Args{}, phase == PhaseCoreShutdown)
}

// fireTimed invokes one timed (cron or sun) registration. Used by the timer
// runner when a schedule comes due.
func (d *Dispatcher) fireTimed(ctx context.Context, reg *Registration) {
	d.invoke(ctx, []*Registration{reg}, Args{}, false)
}

// Wait blocks until every in-flight handler has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// invoke binds each registration's declared parameters and runs the handler.
// A declared name with no value in the parameter set is a configuration
// error: it is logged and that handler is skipped, siblings still run.
func (d *Dispatcher) invoke(ctx context.Context, regs []*Registration, available Args, synchronous bool) {
	for _, reg := range regs {
		args, ok := d.bind(reg, available)
		if !ok {
			continue
		}
		if synchronous {
			d.run(ctx, reg, args)
			continue
		}
		d.wg.Add(1)
		go func(reg *Registration) {
			defer d.wg.Done()
			d.run(ctx, reg, args)
		}(reg)
	}
}

func (d *Dispatcher) bind(reg *Registration, available Args) (Args, bool) {
	args := make(Args, len(reg.Handler.Params))
	for _, name := range reg.Handler.Params {
		value, ok := available[name]
		if !ok {
			d.logger.Error("handler declares parameter not available for trigger kind",
				"handler", reg.Handler.Name,
				"kind", reg.Kind,
				"param", name)
			return nil, false
		}
		args[name] = value
	}
	return args, true
}

func (d *Dispatcher) run(ctx context.Context, reg *Registration, args Args) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in triggered handler",
				"handler", reg.Handler.Name,
				"kind", reg.Kind,
				"panic", r)
		}
	}()
	if err := reg.Handler.Run(ctx, args); err != nil {
		d.logger.Error("triggered handler failed",
			"handler", reg.Handler.Name,
			"kind", reg.Kind,
			"error", err)
	}
}

// matchesData reports whether every required key/value pair appears in the
// event data.
func matchesData(required, data map[string]any) bool {
	for key, want := range required {
		got, ok := data[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
