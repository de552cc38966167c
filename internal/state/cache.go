package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Store is the key-value persistence surface the cache needs. Implemented by
// the infrastructure redis client.
type Store interface {
	// Get returns the value at key and whether the key existed.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes value at key with the given TTL and returns the previous
	// value, if any.
	Set(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error)

	// Delete removes the given keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int, error)

	// ScanKeys returns every key matching the glob pattern.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// HubClient is the hub surface the cache needs to fill misses, resynchronize,
// and upsert. Implemented by the hub REST client.
type HubClient interface {
	GetEntity(ctx context.Context, id ID) (EntityState, error)
	GetAllEntities(ctx context.Context) ([]EntityState, error)
	SetEntity(ctx context.Context, id ID, state string, attributes map[string]any) (EntityState, bool, error)
}

// Logger defines the logging interface required by the cache.
// This allows the package to remain decoupled from specific logging implementations.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Cache mirrors hub entity state into the store under STATE:* keys.
//
// Each entity occupies one entity-level key holding its state string plus one
// key per attribute, all written with the configured TTL. Mirroring an entity
// reconciles the attribute keyspace: attributes no longer present on the
// entity are deleted, so the mirror never serves values the hub has dropped.
//
// Thread Safety: safe for concurrent use. Entity mirroring and deletion are
// serialized so a reconciliation scan never races a concurrent rewrite of the
// same keyspace.
type Cache struct {
	store  Store
	hub    HubClient
	ttl    time.Duration
	logger Logger

	mu sync.Mutex
}

// NewCache creates a Cache over the given store and hub client. Values are
// written with the supplied TTL. If logger is nil, logging is disabled.
func NewCache(store Store, hub HubClient, ttl time.Duration, logger Logger) *Cache {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Cache{store: store, hub: hub, ttl: ttl, logger: logger}
}

// GetCachedValue reads the value at id from the cache only.
//
// Returns:
//   - Value: The cached value
//   - error: ErrNotCached on a miss, or a store/decode error
func (c *Cache) GetCachedValue(ctx context.Context, id ID) (Value, error) {
	encoded, found, err := c.store.Get(ctx, id.CacheKey())
	if err != nil {
		return Value{}, fmt.Errorf("reading %s: %w", id.String(), err)
	}
	if !found {
		return Value{}, fmt.Errorf("%w: %s", ErrNotCached, id.String())
	}

	value, err := Decode(encoded)
	if err != nil {
		return Value{}, fmt.Errorf("decoding %s: %w", id.String(), err)
	}
	return value, nil
}

// GetValue reads the value at id, falling back to the hub on a cache miss.
// A fallback hit refreshes the cache for the whole entity, so one miss pulls
// the entity's full attribute set into the mirror.
func (c *Cache) GetValue(ctx context.Context, id ID) (Value, error) {
	value, err := c.GetCachedValue(ctx, id)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrNotCached) {
		return Value{}, err
	}

	c.logger.Debug("cache miss, fetching entity from hub", "id", id.String())
	if _, err := c.FetchEntity(ctx, id.EntityID()); err != nil {
		return Value{}, err
	}
	return c.GetCachedValue(ctx, id)
}

// SetCachedValue writes value at id and returns the previous value, or the
// none value if the key was absent. Entity-level identifiers only accept
// string-tagged values; typed values belong under attribute identifiers.
func (c *Cache) SetCachedValue(ctx context.Context, id ID, value Value) (Value, error) {
	if id.IsEntity() && value.Tag() != TagString {
		return Value{}, fmt.Errorf("%w: %s given %s", ErrEntityStateNotString, id.String(), value.Tag())
	}

	encoded, err := value.Encode()
	if err != nil {
		return Value{}, fmt.Errorf("encoding %s: %w", id.String(), err)
	}

	prevEncoded, hadPrev, err := c.store.Set(ctx, id.CacheKey(), encoded, c.ttl)
	if err != nil {
		return Value{}, fmt.Errorf("writing %s: %w", id.String(), err)
	}
	if !hadPrev {
		return NoneValue(), nil
	}

	previous, err := Decode(prevEncoded)
	if err != nil {
		// The write itself succeeded; an undecodable predecessor is
		// reported as absent rather than failing the set.
		c.logger.Warn("discarding undecodable previous value", "id", id.String(), "error", err)
		return NoneValue(), nil
	}
	return previous, nil
}

// CacheEntity mirrors a full entity snapshot: the entity-level key, every
// attribute key, and deletion of attribute keys the snapshot no longer carries.
func (c *Cache) CacheEntity(ctx context.Context, entity EntityState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.SetCachedValue(ctx, entity.ID, StringValue(entity.State)); err != nil {
		return err
	}

	live := make(map[string]struct{}, len(entity.Attributes))
	for name, value := range entity.Attributes {
		attrID, err := entity.AttributeID(name)
		if err != nil {
			c.logger.Warn("skipping attribute with invalid name", "entity", entity.ID.String(), "attribute", name)
			continue
		}
		if _, err := c.SetCachedValue(ctx, attrID, value); err != nil {
			return err
		}
		live[attrID.CacheKey()] = struct{}{}
	}

	existing, err := c.store.ScanKeys(ctx, entity.ID.AttributeScanPattern())
	if err != nil {
		return fmt.Errorf("scanning attributes of %s: %w", entity.ID.String(), err)
	}

	var stale []string
	for _, key := range existing {
		if _, ok := live[key]; !ok {
			stale = append(stale, key)
		}
	}
	if len(stale) > 0 {
		if _, err := c.store.Delete(ctx, stale...); err != nil {
			return fmt.Errorf("deleting stale attributes of %s: %w", entity.ID.String(), err)
		}
		c.logger.Debug("reconciled stale attributes", "entity", entity.ID.String(), "deleted", len(stale))
	}
	return nil
}

// DeleteCachedEntity removes an entity's entity-level key and every attribute
// key beneath it, returning how many keys were deleted. Deleting an entity
// that is not cached is not an error.
func (c *Cache) DeleteCachedEntity(ctx context.Context, id ID) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entityID := id.EntityID()
	keys := []string{entityID.CacheKey()}

	attrs, err := c.store.ScanKeys(ctx, entityID.AttributeScanPattern())
	if err != nil {
		return 0, fmt.Errorf("scanning attributes of %s: %w", entityID.String(), err)
	}
	keys = append(keys, attrs...)

	deleted, err := c.store.Delete(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("deleting %s: %w", entityID.String(), err)
	}
	return deleted, nil
}

// UpsertEntity writes an entity to the hub and mirrors the hub's resolved
// snapshot into the cache, returning the snapshot and whether the entity was
// newly created.
func (c *Cache) UpsertEntity(ctx context.Context, id ID, stateStr string, attributes map[string]any) (EntityState, bool, error) {
	entity, created, err := c.hub.SetEntity(ctx, id.EntityID(), stateStr, attributes)
	if err != nil {
		return EntityState{}, false, fmt.Errorf("upserting %s: %w", id.String(), err)
	}
	if err := c.CacheEntity(ctx, entity); err != nil {
		return EntityState{}, false, err
	}
	return entity, created, nil
}

// FetchEntity pulls one entity from the hub and mirrors it into the cache.
func (c *Cache) FetchEntity(ctx context.Context, id ID) (EntityState, error) {
	entity, err := c.hub.GetEntity(ctx, id.EntityID())
	if err != nil {
		return EntityState{}, fmt.Errorf("fetching %s: %w", id.String(), err)
	}
	if err := c.CacheEntity(ctx, entity); err != nil {
		return EntityState{}, err
	}
	return entity, nil
}

// FetchAllEntities pulls the full entity registry from the hub and mirrors
// every entity, returning how many were cached. A failure to mirror one
// entity is logged and does not abort the resynchronization.
func (c *Cache) FetchAllEntities(ctx context.Context) (int, error) {
	entities, err := c.hub.GetAllEntities(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching entity registry: %w", err)
	}

	cached := 0
	for _, entity := range entities {
		if err := c.CacheEntity(ctx, entity); err != nil {
			c.logger.Error("failed to cache entity during resync", "entity", entity.ID.String(), "error", err)
			continue
		}
		cached++
	}
	c.logger.Debug("resynchronized entity mirror", "cached", cached, "total", len(entities))
	return cached, nil
}
