package sched

import "errors"

var (
	// ErrPastRunTime indicates a job was scheduled with a run time that is
	// not strictly in the future.
	ErrPastRunTime = errors.New("sched: run time is in the past")

	// ErrBeyondHorizon indicates a run time further out than the maximum
	// scheduling horizon.
	ErrBeyondHorizon = errors.New("sched: run time beyond scheduling horizon")

	// ErrUnknownHandler indicates a handler reference that is not present
	// in the handler table.
	ErrUnknownHandler = errors.New("sched: unknown handler")

	// ErrDuplicateHandler indicates a handler name registered twice.
	ErrDuplicateHandler = errors.New("sched: handler already registered")

	// ErrMalformedDescriptor indicates a persisted job descriptor that
	// cannot be decoded.
	ErrMalformedDescriptor = errors.New("sched: malformed job descriptor")
)
