package sched

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ovationhq/ovation-core/internal/infrastructure/redis"
)

// MaxHorizon is how far into the future a job may be scheduled. Descriptors
// are persisted with this TTL, so a descriptor that somehow survives its run
// time expires on its own.
const MaxHorizon = 30 * 24 * time.Hour

// keyPrefix namespaces job descriptors in the store.
const keyPrefix = "SCHEDULED"

// Store is the persistence surface the scheduler needs. Implemented by the
// infrastructure redis client.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error)
	Delete(ctx context.Context, keys ...string) (int, error)
	Exists(ctx context.Context, keys ...string) (int, error)
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// Clock abstracts wall time and timer arming so scheduling can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is an armed timer handle.
type Timer interface {
	Stop() bool
}

type realClock struct{}

// NewClock returns the wall clock.
func NewClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Logger defines the logging interface required by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// descriptor is the persisted wire form of a scheduled job.
type descriptor struct {
	ID         string         `json:"id"`
	RunTime    string         `json:"run_time"`
	ModulePath string         `json:"module_path"`
	FuncName   string         `json:"func_name"`
	Kwargs     map[string]any `json:"kwargs"`
}

// Job describes a persisted scheduled job.
type Job struct {
	ID      string
	RunTime time.Time
	Handler string
	Kwargs  map[string]any
}

// Scheduler runs registered handlers at a future instant and survives
// restarts. The persisted descriptor is the source of truth: it is written
// before the in-process timer is armed, and deleted only after the handler
// has been invoked, so a crash between scheduling and firing is recovered by
// RestoreAll while a completed job can never fire twice.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Scheduler struct {
	store  Store
	table  *Table
	clock  Clock
	logger Logger

	mu     sync.Mutex
	timers map[string]Timer
}

// NewScheduler creates a scheduler over the given store and handler table.
// A nil clock selects the wall clock; a nil logger disables logging.
func NewScheduler(store Store, table *Table, clock Clock, logger Logger) *Scheduler {
	if clock == nil {
		clock = NewClock()
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		store:  store,
		table:  table,
		clock:  clock,
		logger: logger,
		timers: make(map[string]Timer),
	}
}

func jobKey(jobID string) string {
	return redis.BuildKey(keyPrefix, jobID)
}

// Schedule arms a handler to run at runTime with the given keyword arguments.
//
// Validation happens before anything is written: runTime must be strictly in
// the future and within MaxHorizon, and ref must resolve in the handler
// table. A persistence failure fails the call, since an unpersisted job would
// not survive a restart.
//
// Parameters:
//   - runTime: When the handler should run
//   - ref: Handler reference registered in the table
//   - kwargs: Arguments stored with the job and passed to the handler
//   - jobID: Job identity; empty generates one. Scheduling an existing id
//     replaces that job.
//
// Returns:
//   - string: The job id
//   - error: Validation or persistence failure
func (s *Scheduler) Schedule(ctx context.Context, runTime time.Time, ref string, kwargs map[string]any, jobID string) (string, error) {
	now := s.clock.Now()
	if !runTime.After(now) {
		return "", fmt.Errorf("%w: %s", ErrPastRunTime, runTime.Format(time.RFC3339))
	}
	if runTime.After(now.Add(MaxHorizon)) {
		return "", fmt.Errorf("%w: %s", ErrBeyondHorizon, runTime.Format(time.RFC3339))
	}
	if _, err := s.table.resolve(ref); err != nil {
		return "", err
	}

	if jobID == "" {
		jobID = uuid.NewString()
	}

	modulePath, funcName := splitRef(ref)
	encoded, err := json.Marshal(descriptor{
		ID:         jobID,
		RunTime:    runTime.UTC().Format(time.RFC3339Nano),
		ModulePath: modulePath,
		FuncName:   funcName,
		Kwargs:     kwargs,
	})
	if err != nil {
		return "", fmt.Errorf("encoding job %s: %w", jobID, err)
	}
	if _, _, err := s.store.Set(ctx, jobKey(jobID), string(encoded), MaxHorizon); err != nil {
		return "", fmt.Errorf("persisting job %s: %w", jobID, err)
	}

	s.arm(jobID, ref, kwargs, runTime.Sub(now))
	s.logger.Info("scheduled job",
		"job_id", jobID, "run_time", runTime.Format(time.RFC3339), "handler", ref)
	return jobID, nil
}

// Cancel disarms and deletes a job. Cancelling a job that already fired or
// never existed is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) error {
	s.disarm(jobID)
	deleted, err := s.store.Delete(ctx, jobKey(jobID))
	if err != nil {
		return fmt.Errorf("cancelling job %s: %w", jobID, err)
	}
	if deleted > 0 {
		s.logger.Info("cancelled job", "job_id", jobID)
	}
	return nil
}

// Get returns the persisted job, or nil if no such job exists.
func (s *Scheduler) Get(ctx context.Context, jobID string) (*Job, error) {
	encoded, found, err := s.store.Get(ctx, jobKey(jobID))
	if err != nil {
		return nil, fmt.Errorf("reading job %s: %w", jobID, err)
	}
	if !found {
		return nil, nil
	}
	desc, runTime, err := decodeDescriptor(encoded)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:      desc.ID,
		RunTime: runTime,
		Handler: joinRef(desc.ModulePath, desc.FuncName),
		Kwargs:  desc.Kwargs,
	}, nil
}

// RestoreAll scans the store for persisted descriptors and re-arms the ones
// still in the future. Elapsed descriptors are deleted rather than fired
// late. A descriptor that cannot be decoded or whose handler no longer
// resolves is logged and skipped without aborting the others.
//
// Returns:
//   - int: How many jobs were re-armed
//   - error: Store scan failure
func (s *Scheduler) RestoreAll(ctx context.Context) (int, error) {
	keys, err := s.store.ScanKeys(ctx, keyPrefix+":*")
	if err != nil {
		return 0, fmt.Errorf("scanning scheduled jobs: %w", err)
	}

	now := s.clock.Now()
	restored := 0
	for _, key := range keys {
		encoded, found, err := s.store.Get(ctx, key)
		if err != nil {
			s.logger.Error("failed to read job descriptor", "key", key, "error", err)
			continue
		}
		if !found {
			continue
		}

		desc, runTime, err := decodeDescriptor(encoded)
		if err != nil {
			s.logger.Error("discarding undecodable job descriptor", "key", key, "error", err)
			s.store.Delete(ctx, key)
			continue
		}

		if !runTime.After(now) {
			s.logger.Warn("discarding elapsed job", "job_id", desc.ID, "run_time", desc.RunTime)
			s.store.Delete(ctx, key)
			continue
		}

		ref := joinRef(desc.ModulePath, desc.FuncName)
		if _, err := s.table.resolve(ref); err != nil {
			s.logger.Error("skipping job with unresolvable handler", "job_id", desc.ID, "handler", ref)
			continue
		}

		s.arm(desc.ID, ref, desc.Kwargs, runTime.Sub(now))
		restored++
		s.logger.Info("restored job", "job_id", desc.ID, "run_time", desc.RunTime, "handler", ref)
	}
	return restored, nil
}

// Stop disarms every in-process timer. Persisted descriptors are untouched,
// so a later RestoreAll picks the jobs back up.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jobID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, jobID)
	}
}

// arm installs the in-process timer for a job, replacing any existing one.
func (s *Scheduler) arm(jobID, ref string, kwargs map[string]any, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.timers[jobID]; ok {
		existing.Stop()
	}
	s.timers[jobID] = s.clock.AfterFunc(delay, func() {
		s.run(jobID, ref, kwargs)
	})
}

func (s *Scheduler) disarm(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[jobID]; ok {
		timer.Stop()
		delete(s.timers, jobID)
	}
}

// run fires a job: resolve, invoke, and delete the descriptor. The delete is
// unconditional so a job that ran (successfully or not) never lingers to fire
// again after a restart.
func (s *Scheduler) run(jobID, ref string, kwargs map[string]any) {
	s.disarm(jobID)

	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in scheduled job", "job_id", jobID, "handler", ref, "panic", r)
		}
		if _, err := s.store.Delete(ctx, jobKey(jobID)); err != nil {
			s.logger.Error("failed to delete fired job descriptor", "job_id", jobID, "error", err)
		}
	}()

	fn, err := s.table.resolve(ref)
	if err != nil {
		s.logger.Error("scheduled handler vanished from table", "job_id", jobID, "handler", ref)
		return
	}

	if err := fn(ctx, kwargs); err != nil {
		s.logger.Error("scheduled job failed", "job_id", jobID, "handler", ref, "error", err)
		return
	}
	s.logger.Info("scheduled job completed", "job_id", jobID, "handler", ref)
}

func decodeDescriptor(encoded string) (descriptor, time.Time, error) {
	var desc descriptor
	if err := json.Unmarshal([]byte(encoded), &desc); err != nil {
		return descriptor{}, time.Time{}, fmt.Errorf("%w: %w", ErrMalformedDescriptor, err)
	}
	if desc.ID == "" || desc.FuncName == "" {
		return descriptor{}, time.Time{}, fmt.Errorf("%w: missing id or func_name", ErrMalformedDescriptor)
	}
	runTime, err := time.Parse(time.RFC3339Nano, desc.RunTime)
	if err != nil {
		runTime, err = time.Parse(time.RFC3339, desc.RunTime)
	}
	if err != nil {
		return descriptor{}, time.Time{}, fmt.Errorf("%w: bad run_time %q", ErrMalformedDescriptor, desc.RunTime)
	}
	return desc, runTime.UTC(), nil
}
