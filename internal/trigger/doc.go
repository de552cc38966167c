// Package trigger implements the registry and dispatcher that connect hub
// events to automation handlers.
//
// Handlers register interest through a Provider, one registration call per
// trigger kind: entity state changes (with optional from/to filters), cron
// schedules, generic hub events, notification actions, solar events, and
// lifecycle phases. Registration validates the trigger up front; a malformed
// cron spec or out-of-range sun offset never reaches dispatch.
//
// The Dispatcher resolves each handler's declared parameters from the trigger
// kind's parameter set and runs matching handlers concurrently, each
// fault-isolated: a panic or error in one handler is logged and never touches
// its siblings. Core-shutdown handlers are the exception and run to
// completion synchronously.
//
// The Runner owns the timers behind cron and sun registrations, re-arming
// each after it fires. Tests drive it through the Clock abstraction.
package trigger
