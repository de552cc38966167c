package trigger

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind identifies a trigger kind.
type Kind string

const (
	KindStateChange Kind = "state_change"
	KindCron        Kind = "cron"
	KindEventFired  Kind = "event_fired"
	KindNotifAction Kind = "notif_action"
	KindSun         Kind = "sun"
	KindLifecycle   Kind = "lifecycle"
)

// Registration is one handler bound to one trigger. Created at registration
// time and immutable afterwards; the dispatcher and the timer runner only
// read it.
type Registration struct {
	Kind     Kind
	MatchKey string
	Handler  Handler

	// State-change predicate. Nil pointer means no filter.
	fromState *string
	toState   *string

	// Event-fired predicate.
	userID    *string
	eventData map[string]any

	// Notification-action predicate.
	deviceID *string

	// Cron schedule, built at registration time.
	schedule cron.Schedule
	cronExpr string

	// Sun parameters.
	solarEvent SolarEvent
	offset     time.Duration
}

// Registry is a keyed collection of registrations per trigger kind. It is
// append-only during normal operation.
//
// Thread Safety: safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[Kind]map[string][]*Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Kind]map[string][]*Registration)}
}

func (r *Registry) add(reg *Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byKey, ok := r.entries[reg.Kind]
	if !ok {
		byKey = make(map[string][]*Registration)
		r.entries[reg.Kind] = byKey
	}
	byKey[reg.MatchKey] = append(byKey[reg.MatchKey], reg)
}

// lookup returns a snapshot of the registrations under one match key.
func (r *Registry) lookup(kind Kind, key string) []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := r.entries[kind][key]
	out := make([]*Registration, len(regs))
	copy(out, regs)
	return out
}

// all returns a snapshot of every registration of one kind.
func (r *Registry) all(kind Kind) []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Registration
	for _, regs := range r.entries[kind] {
		out = append(out, regs...)
	}
	return out
}

// Provider selects which registry registrations go to and dispatch reads
// from. The production registry lives for the process lifetime; an isolated
// registry can be installed for a bounded scope (tests) so registrations made
// there neither leak into nor shadow production. Dispatch reads the union of
// the two; a registration lives in exactly one registry, so the union never
// double-invokes.
//
// Thread Safety: safe for concurrent use.
type Provider struct {
	mu         sync.RWMutex
	production *Registry
	isolated   *Registry
}

// NewProvider creates a provider with an empty production registry.
func NewProvider() *Provider {
	return &Provider{production: NewRegistry()}
}

// Isolate installs a fresh isolated registry and returns a release function
// that uninstalls it. While installed, new registrations land in the isolated
// registry only.
func (p *Provider) Isolate() func() {
	p.mu.Lock()
	p.isolated = NewRegistry()
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.isolated = nil
		p.mu.Unlock()
	}
}

// active returns the registry receiving new registrations.
func (p *Provider) active() *Registry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.isolated != nil {
		return p.isolated
	}
	return p.production
}

// union returns the registrations for one kind and key across both
// registries, isolated entries first.
func (p *Provider) union(kind Kind, key string) []*Registration {
	p.mu.RLock()
	isolated := p.isolated
	production := p.production
	p.mu.RUnlock()

	var out []*Registration
	if isolated != nil {
		out = append(out, isolated.lookup(kind, key)...)
	}
	out = append(out, production.lookup(kind, key)...)
	return out
}

// unionAll returns every registration of one kind across both registries.
func (p *Provider) unionAll(kind Kind) []*Registration {
	p.mu.RLock()
	isolated := p.isolated
	production := p.production
	p.mu.RUnlock()

	var out []*Registration
	if isolated != nil {
		out = append(out, isolated.all(kind)...)
	}
	out = append(out, production.all(kind)...)
	return out
}
