// Package sched runs registered handlers at a future instant, surviving
// process restarts.
//
// A job is a (handler reference, arguments, run time) triple. The reference
// is a symbolic name resolved through a Table built at startup, so only the
// name is persisted. Each job's JSON descriptor lives in the store under
// SCHEDULED:<id> with a TTL equal to the scheduling horizon; the in-process
// timer is a cache of that durable state, not the source of truth. On
// startup RestoreAll re-arms every surviving descriptor and discards the
// ones whose run time passed while the process was down.
package sched
