package main

import (
	"github.com/ovationhq/ovation-core/internal/hub"
	"github.com/ovationhq/ovation-core/internal/infrastructure/logging"
	"github.com/ovationhq/ovation-core/internal/sched"
	"github.com/ovationhq/ovation-core/internal/state"
	"github.com/ovationhq/ovation-core/internal/trigger"
)

// automationDeps is everything a site automation can reach: trigger
// registration, the schedulable-handler table, the scheduler itself, cached
// state, and the hub.
type automationDeps struct {
	Provider  *trigger.Provider
	Table     *sched.Table
	Scheduler *sched.Scheduler
	Cache     *state.Cache
	Hub       *hub.Client
	Logger    *logging.Logger
}

// registerAutomations wires site-specific automations into the core. Each
// automation registers its triggers on deps.Provider and its schedulable
// handlers on deps.Table here, before persisted jobs are restored.
//
// Automations are compiled in: add a file next to this one per automation
// and call its register function below.
func registerAutomations(_ automationDeps) error {
	return nil
}
