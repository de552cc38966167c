// Package webhook exposes the inbound HTTP surface of the core.
//
// The hub (or anything else) can push event envelopes over plain HTTP
// instead of the websocket stream: one POST endpoint per recognized event
// type plus a generic fallback, all feeding the same classification and
// dispatch pipeline the stream uses. Entry points always acknowledge with
// success unless the payload is structurally unparseable. /healthz reports
// store and hub reachability.
package webhook
