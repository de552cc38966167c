// Package stream ingests the hub's live event feed.
//
// The Client speaks the hub's websocket protocol: an auth_required greeting,
// token authentication, then an acknowledged subscribe_events request. The
// Manager keeps one Client alive on a dedicated goroutine, reconnecting with
// exponential backoff and resynchronizing the full entity mirror after every
// successful subscribe so nothing missed while disconnected is lost for good.
//
// Every inbound event is classified by its event_type, given a correlation id
// for log tracing, and routed: state changes update the cache before any
// trigger fires, notification actions and lifecycle events map to their
// dedicated trigger kinds, and everything else dispatches as a generic event.
package stream
