// Package redis provides the cache store client for Ovation Core.
//
// The store is the single persistence substrate for the whole system: the
// state package keeps the entity mirror under STATE:* keys, and the sched
// package keeps durable job descriptors under SCHEDULED:* keys. Every key is
// TTL-bound, so an abandoned deployment drains itself.
//
// All operations are key-scoped (get/set/delete/exists/scan); no multi-key
// transactions are assumed by callers.
package redis
