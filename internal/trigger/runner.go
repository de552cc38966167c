package trigger

import (
	"context"
	"sync"
	"time"
)

// Runner arms in-process timers for the timed trigger kinds (cron and sun)
// and re-arms each registration after it fires. It reads the registry once at
// Start; timed registrations made after startup are not picked up until the
// next Start.
//
// Thread Safety: safe for concurrent use.
type Runner struct {
	provider   *Provider
	dispatcher *Dispatcher
	clock      Clock
	solar      solarSource
	logger     Logger

	mu      sync.Mutex
	timers  map[*Registration]Timer
	stopped bool
}

// NewRunner creates a timer runner. If clock is nil the wall clock is used;
// if logger is nil, logging is disabled.
func NewRunner(provider *Provider, dispatcher *Dispatcher, solar solarSource, clock Clock, logger Logger) *Runner {
	if clock == nil {
		clock = NewClock()
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Runner{
		provider:   provider,
		dispatcher: dispatcher,
		clock:      clock,
		solar:      solar,
		logger:     logger,
		timers:     make(map[*Registration]Timer),
	}
}

// Start arms a timer for every cron and sun registration currently in the
// registry.
func (r *Runner) Start(ctx context.Context) {
	for _, reg := range r.provider.unionAll(KindCron) {
		r.armCron(ctx, reg)
	}
	for _, reg := range r.provider.unionAll(KindSun) {
		r.armSun(ctx, reg, false)
	}
}

// Stop disarms every timer. Handlers already dispatched keep running.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for reg, timer := range r.timers {
		timer.Stop()
		delete(r.timers, reg)
	}
}

func (r *Runner) armCron(ctx context.Context, reg *Registration) {
	now := r.clock.Now()
	next := reg.schedule.Next(now)
	if next.IsZero() {
		r.logger.Warn("cron schedule yields no next run", "handler", reg.Handler.Name, "schedule", reg.cronExpr)
		return
	}
	r.logger.Debug("armed cron trigger", "handler", reg.Handler.Name, "schedule", reg.cronExpr, "next", next)
	r.arm(reg, next.Sub(now), func() {
		r.dispatcher.fireTimed(ctx, reg)
		r.armCron(ctx, reg)
	})
}

func (r *Runner) armSun(ctx context.Context, reg *Registration, rescheduling bool) {
	now := r.clock.Now()
	run, err := nextSunRun(r.solar, reg.solarEvent, reg.offset, now, rescheduling)
	if err != nil {
		r.logger.Error("failed to compute sun trigger run time",
			"handler", reg.Handler.Name, "event", reg.solarEvent, "error", err)
		return
	}
	r.logger.Debug("armed sun trigger",
		"handler", reg.Handler.Name, "event", reg.solarEvent, "offset", reg.offset, "next", run)
	r.arm(reg, run.Sub(now), func() {
		r.dispatcher.fireTimed(ctx, reg)
		r.armSun(ctx, reg, true)
	})
}

func (r *Runner) arm(reg *Registration, d time.Duration, fire func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.timers[reg] = r.clock.AfterFunc(d, fire)
}
