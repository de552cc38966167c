// Package state models hub entity state and mirrors it into the cache store.
//
// The package owns the identifier grammar ("domain.entity" and
// "domain.entity.attribute"), the tagged Value union that survives the
// string-oriented store losslessly, and the Cache that keeps the STATE:*
// keyspace consistent with the hub: entity snapshots are written whole, and
// attribute keys the hub no longer reports are reconciled away.
//
// Handlers read through the Cache rather than calling the hub directly; a
// cache miss transparently falls back to a hub fetch that refreshes the
// entity's full mirror.
package state
