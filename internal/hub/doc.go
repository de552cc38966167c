// Package hub provides the REST client for the automation hub.
//
// The client covers the hub's state surface (fetch one entity, fetch the
// registry, write, delete) and its action surface (service invocations such
// as switch.turn_on). Entities arrive as state.EntityState snapshots with the
// envelope timestamps injected as attributes, ready for the cache mirror.
//
// Entities in configured ignore domains are filtered out of registry fetches
// so bulk resynchronization never floods the cache with noise domains.
package hub
