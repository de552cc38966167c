package state

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeStore is an in-memory Store for cache tests.
type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (s *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key, value string, _ time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data[key]
	s.data[key] = value
	return prev, had, nil
}

func (s *fakeStore) Delete(_ context.Context, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, key := range keys {
		if _, ok := s.data[key]; ok {
			delete(s.data, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *fakeStore) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// fakeHub is an in-memory HubClient for cache tests.
type fakeHub struct {
	entities map[string]EntityState
	err      error
	calls    int
}

func (h *fakeHub) GetEntity(_ context.Context, id ID) (EntityState, error) {
	h.calls++
	if h.err != nil {
		return EntityState{}, h.err
	}
	entity, ok := h.entities[id.String()]
	if !ok {
		return EntityState{}, errors.New("hub: entity not found")
	}
	return entity, nil
}

func (h *fakeHub) SetEntity(_ context.Context, id ID, stateStr string, attrs map[string]any) (EntityState, bool, error) {
	h.calls++
	if h.err != nil {
		return EntityState{}, false, h.err
	}
	if h.entities == nil {
		h.entities = make(map[string]EntityState)
	}
	_, existed := h.entities[id.String()]
	entity, err := NewEntityState(id, stateStr, attrs, time.Time{}, time.Time{})
	if err != nil {
		return EntityState{}, false, err
	}
	h.entities[id.String()] = entity
	return entity, !existed, nil
}

func (h *fakeHub) GetAllEntities(_ context.Context) ([]EntityState, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	ids := make([]string, 0, len(h.entities))
	for id := range h.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	entities := make([]EntityState, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, h.entities[id])
	}
	return entities, nil
}

func testEntity(t *testing.T, idStr, stateStr string, attrs map[string]any) EntityState {
	t.Helper()
	entity, err := NewEntityState(mustParseID(t, idStr), stateStr, attrs, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("NewEntityState(%q): %v", idStr, err)
	}
	return entity
}

func TestSetCachedValueReturnsPrevious(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newFakeStore(), &fakeHub{}, time.Hour, nil)
	id := mustParseID(t, "switch.heater")

	prev, err := cache.SetCachedValue(ctx, id, StringValue("off"))
	if err != nil {
		t.Fatalf("first set: %v", err)
	}
	if !prev.IsNone() {
		t.Errorf("first set previous = %+v, want none", prev)
	}

	prev, err = cache.SetCachedValue(ctx, id, StringValue("on"))
	if err != nil {
		t.Fatalf("second set: %v", err)
	}
	if prev.Tag() != TagString || prev.String() != "off" {
		t.Errorf("second set previous = %+v, want string off", prev)
	}
}

func TestSetCachedValueRejectsTypedEntityState(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newFakeStore(), &fakeHub{}, time.Hour, nil)

	_, err := cache.SetCachedValue(ctx, mustParseID(t, "sensor.temp"), FloatValue(21.5))
	if !errors.Is(err, ErrEntityStateNotString) {
		t.Fatalf("error = %v, want ErrEntityStateNotString", err)
	}

	// The same value is fine under an attribute identifier.
	if _, err := cache.SetCachedValue(ctx, mustParseID(t, "sensor.temp.reading"), FloatValue(21.5)); err != nil {
		t.Fatalf("attribute set: %v", err)
	}
}

func TestGetCachedValueMiss(t *testing.T) {
	cache := NewCache(newFakeStore(), &fakeHub{}, time.Hour, nil)
	_, err := cache.GetCachedValue(context.Background(), mustParseID(t, "switch.heater"))
	if !errors.Is(err, ErrNotCached) {
		t.Fatalf("error = %v, want ErrNotCached", err)
	}
}

func TestCacheEntityReconcilesStaleAttributes(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	cache := NewCache(store, &fakeHub{}, time.Hour, nil)

	first := testEntity(t, "light.lounge", "on", map[string]any{
		"brightness": float64(180),
		"color_mode": "hs",
	})
	if err := cache.CacheEntity(ctx, first); err != nil {
		t.Fatalf("first CacheEntity: %v", err)
	}

	second := testEntity(t, "light.lounge", "on", map[string]any{
		"color_mode": "xy",
		"transition": float64(2),
	})
	if err := cache.CacheEntity(ctx, second); err != nil {
		t.Fatalf("second CacheEntity: %v", err)
	}

	keys, err := store.ScanKeys(ctx, "STATE:light:lounge:*")
	if err != nil {
		t.Fatalf("ScanKeys: %v", err)
	}
	want := []string{"STATE:light:lounge:color_mode", "STATE:light:lounge:transition"}
	if len(keys) != len(want) {
		t.Fatalf("attribute keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("attribute keys = %v, want %v", keys, want)
		}
	}

	mode, err := cache.GetCachedValue(ctx, mustParseID(t, "light.lounge.color_mode"))
	if err != nil {
		t.Fatalf("GetCachedValue: %v", err)
	}
	if mode.String() != "xy" {
		t.Errorf("color_mode = %q, want xy", mode.String())
	}
}

func TestDeleteCachedEntityRemovesAttributeKeys(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	cache := NewCache(store, &fakeHub{}, time.Hour, nil)

	entity := testEntity(t, "switch.heater", "on", map[string]any{"friendly_name": "Heater"})
	if err := cache.CacheEntity(ctx, entity); err != nil {
		t.Fatalf("CacheEntity: %v", err)
	}

	deleted, err := cache.DeleteCachedEntity(ctx, mustParseID(t, "switch.heater"))
	if err != nil {
		t.Fatalf("DeleteCachedEntity: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	// Idempotent on a missing entity.
	deleted, err = cache.DeleteCachedEntity(ctx, mustParseID(t, "switch.heater"))
	if err != nil {
		t.Fatalf("second DeleteCachedEntity: %v", err)
	}
	if deleted != 0 {
		t.Errorf("second delete = %d, want 0", deleted)
	}
}

func TestGetValueFallsBackToHub(t *testing.T) {
	ctx := context.Background()
	hub := &fakeHub{entities: map[string]EntityState{
		"sensor.temp": testEntity(t, "sensor.temp", "21.5", map[string]any{"unit": "C"}),
	}}
	cache := NewCache(newFakeStore(), hub, time.Hour, nil)

	value, err := cache.GetValue(ctx, mustParseID(t, "sensor.temp.unit"))
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if value.String() != "C" {
		t.Errorf("value = %q, want C", value.String())
	}
	if hub.calls != 1 {
		t.Errorf("hub calls = %d, want 1", hub.calls)
	}

	// Second read is served from the mirror.
	if _, err := cache.GetValue(ctx, mustParseID(t, "sensor.temp")); err != nil {
		t.Fatalf("second GetValue: %v", err)
	}
	if hub.calls != 1 {
		t.Errorf("hub calls after cached read = %d, want 1", hub.calls)
	}
}

func TestUpsertEntity(t *testing.T) {
	ctx := context.Background()
	hub := &fakeHub{}
	store := newFakeStore()
	cache := NewCache(store, hub, time.Hour, nil)
	id := mustParseID(t, "input_boolean.guest_mode")

	_, created, err := cache.UpsertEntity(ctx, id, "on", map[string]any{"source": "automation"})
	if err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if !created {
		t.Error("first upsert should create")
	}

	value, err := cache.GetCachedValue(ctx, id)
	if err != nil {
		t.Fatalf("GetCachedValue: %v", err)
	}
	if value.String() != "on" {
		t.Errorf("cached state = %q, want on", value.String())
	}

	_, created, err = cache.UpsertEntity(ctx, id, "off", nil)
	if err != nil {
		t.Fatalf("second UpsertEntity: %v", err)
	}
	if created {
		t.Error("second upsert should update, not create")
	}
}

func TestFetchAllEntities(t *testing.T) {
	ctx := context.Background()
	hub := &fakeHub{entities: map[string]EntityState{
		"switch.heater": testEntity(t, "switch.heater", "off", nil),
		"light.lounge":  testEntity(t, "light.lounge", "on", map[string]any{"brightness": float64(90)}),
	}}
	store := newFakeStore()
	cache := NewCache(store, hub, time.Hour, nil)

	cached, err := cache.FetchAllEntities(ctx)
	if err != nil {
		t.Fatalf("FetchAllEntities: %v", err)
	}
	if cached != 2 {
		t.Errorf("cached = %d, want 2", cached)
	}

	if _, err := cache.GetCachedValue(ctx, mustParseID(t, "light.lounge.brightness")); err != nil {
		t.Errorf("brightness not mirrored: %v", err)
	}
}
