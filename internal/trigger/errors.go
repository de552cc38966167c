package trigger

import "errors"

// Domain-specific errors for trigger registration.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidHandler is returned when a handler has no name or no function.
	ErrInvalidHandler = errors.New("trigger: invalid handler")

	// ErrCronConflict is returned when a cron registration supplies both a
	// pattern and individual schedule fields.
	ErrCronConflict = errors.New("trigger: cron accepts a pattern or individual fields, not both")

	// ErrInvalidCron is returned when a cron pattern or field set does not
	// parse into a schedule.
	ErrInvalidCron = errors.New("trigger: invalid cron schedule")

	// ErrSunOffset is returned when a sun trigger offset falls outside the
	// open interval (-12h, +12h).
	ErrSunOffset = errors.New("trigger: sun offset must be less than 12 hours")

	// ErrReservedEventType is returned when a generic event registration
	// names an event type that has a dedicated trigger kind.
	ErrReservedEventType = errors.New("trigger: event type has a dedicated trigger kind")
)
