package main

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ovationhq/ovation-core/internal/sched"
	"github.com/ovationhq/ovation-core/internal/state"
	"github.com/ovationhq/ovation-core/internal/trigger"
)

// memStore is an in-memory stand-in for the redis client.
type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string)}
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string, _ time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.values[key]
	s.values[key] = value
	return prev, had, nil
}

func (s *memStore) Delete(_ context.Context, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, key := range keys {
		if _, ok := s.values[key]; ok {
			delete(s.values, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memStore) Exists(_ context.Context, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, key := range keys {
		if _, ok := s.values[key]; ok {
			n++
		}
	}
	return n, nil
}

func (s *memStore) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func heaterStateChange(t *testing.T, oldState, newState string) trigger.StateChangeEvent {
	t.Helper()
	id, err := state.ParseEntityID("switch.heater")
	if err != nil {
		t.Fatalf("ParseEntityID: %v", err)
	}
	return trigger.StateChangeEvent{
		Timestamp: time.Now(),
		TimeFired: time.Now(),
		EntityID:  id,
		Old:       &state.EntityState{ID: id, State: oldState, Attributes: map[string]state.Value{}},
		New:       &state.EntityState{ID: id, State: newState, Attributes: map[string]state.Value{}},
	}
}

// TestHeaterAutoOffScenario drives the full path from a state change through
// a trigger handler into the scheduler: turning the heater on schedules an
// auto-off job two hours out, turning it off again cancels that job.
func TestHeaterAutoOffScenario(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	table := sched.NewTable()
	scheduler := sched.NewScheduler(store, table, nil, nil)
	defer scheduler.Stop()

	if err := table.Register("heating.AutoOff", func(context.Context, map[string]any) error {
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	provider := trigger.NewProvider()
	dispatcher := trigger.NewDispatcher(provider, nil)

	const jobID = "heater_auto_off"
	onErr := provider.OnStateChange("switch.heater", trigger.Handler{
		Name:   "heater_on",
		Params: []string{trigger.ParamStateChange},
		Run: func(ctx context.Context, args trigger.Args) error {
			_, err := scheduler.Schedule(ctx, time.Now().Add(2*time.Hour), "heating.AutoOff",
				map[string]any{"entity_id": args.StateChange().EntityID.String()}, jobID)
			return err
		},
	}, trigger.FromState("off"), trigger.ToState("on"))
	if onErr != nil {
		t.Fatalf("OnStateChange on: %v", onErr)
	}

	offErr := provider.OnStateChange("switch.heater", trigger.Handler{
		Name: "heater_off",
		Run: func(ctx context.Context, _ trigger.Args) error {
			return scheduler.Cancel(ctx, jobID)
		},
	}, trigger.ToState("off"))
	if offErr != nil {
		t.Fatalf("OnStateChange off: %v", offErr)
	}

	// Heater turns on: the auto-off job appears with a ~2h delay.
	dispatcher.StateChanged(ctx, heaterStateChange(t, "off", "on"))
	dispatcher.Wait()

	job, err := scheduler.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job == nil {
		t.Fatal("auto-off job was not scheduled")
	}
	delay := time.Until(job.RunTime)
	if delay < 119*time.Minute || delay > 121*time.Minute {
		t.Errorf("job delay = %v, want ~2h", delay)
	}
	if job.Kwargs["entity_id"] != "switch.heater" {
		t.Errorf("job kwargs = %v", job.Kwargs)
	}

	// Heater turns off again: the job is cancelled.
	dispatcher.StateChanged(ctx, heaterStateChange(t, "on", "off"))
	dispatcher.Wait()

	job, err = scheduler.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("Get after cancel: %v", err)
	}
	if job != nil {
		t.Fatalf("auto-off job survived cancellation: %+v", job)
	}
}
