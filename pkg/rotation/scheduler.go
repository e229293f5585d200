package rotation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	rotorerrors "github.com/systmms/rotor/internal/errors"
	"github.com/systmms/rotor/internal/logging"
	"github.com/systmms/rotor/internal/rotation/health"
)

// Scheduler owns the in-memory timer registry, the schedule state machine,
// retry/backoff, overdue detection, and retention cleanup.
//
// There is no global scheduler instance: construct one per process with its
// collaborators injected, which also enables multiple independent instances
// in tests.
type Scheduler struct {
	store    ScheduleStore
	registry *StrategyRegistry
	notifier Notifier
	cfg      Config
	logger   *logging.Logger
	metrics  *health.Metrics

	// now is the clock; replaced in tests.
	now func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer // keyed by secret id
	closed bool

	wg   sync.WaitGroup
	stop chan struct{}
}

// NewScheduler creates a scheduler. notifier may be nil, in which case
// lifecycle events are dropped.
func NewScheduler(store ScheduleStore, registry *StrategyRegistry, notifier Notifier, cfg Config, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		registry: registry,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.WithPrefix("scheduler"),
		metrics:  health.NewMetrics(),
		now:      time.Now,
		timers:   make(map[string]*time.Timer),
		stop:     make(chan struct{}),
	}
}

// ScheduleRotation validates the policy, persists a scheduled record
// (replacing any prior non-cancelled schedule for the secret), and for
// automatic policies arms a one-shot timer at the computed fire time.
func (s *Scheduler) ScheduleRotation(ctx context.Context, secretID string, policy Policy) (*Schedule, error) {
	if secretID == "" {
		return nil, &rotorerrors.PolicyError{Field: "secretId", Message: "a secret id is required"}
	}
	if err := ValidatePolicy(policy, s.cfg.MinIntervalDays, s.registry); err != nil {
		return nil, err
	}

	now := s.now().In(s.cfg.Location)
	sched := &Schedule{
		ID:        uuid.NewString(),
		SecretID:  secretID,
		Policy:    policy,
		Status:    StatusScheduled,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if policy.Mode == ModeAutomatic {
		sched.NextRotation = now.AddDate(0, 0, policy.IntervalDays)
	}

	// Persist before arming: the store must reflect the schedule before
	// any timer can fire against it.
	if err := s.store.Create(ctx, sched); err != nil {
		return nil, &rotorerrors.StoreError{Op: "create", Err: err}
	}

	// A replaced schedule's timer must not fire against the new record.
	s.disarmTimer(secretID)
	if policy.Mode == ModeAutomatic {
		s.armTimer(secretID, sched.NextRotation)
	}

	s.logger.Info("Scheduled rotation for %s (mode=%s, strategy=%s)",
		secretID, policy.Mode, policy.StrategyKey)
	s.notify(EventScheduled, secretID, fmt.Sprintf("next rotation at %s", sched.NextRotation.Format(time.RFC3339)), 0)

	clone := *sched
	return &clone, nil
}

// CancelRotation disarms any timer for the secret and transitions the
// persisted schedule to cancelled. Idempotent: cancelling a non-existent or
// already-cancelled schedule is not an error.
func (s *Scheduler) CancelRotation(ctx context.Context, secretID string) error {
	s.disarmTimer(secretID)

	// The CAS may lose a race with a timer fire moving the row to
	// in_progress; retry from the newly observed status so an in-flight
	// execution finds the row cancelled and abandons its result.
	for attempt := 0; attempt < 3; attempt++ {
		sched, err := s.store.GetBySecretID(ctx, secretID)
		if err != nil {
			return &rotorerrors.StoreError{Op: "getBySecretId", Err: err}
		}
		if sched == nil || sched.Status == StatusCancelled {
			return nil
		}

		ok, err := s.store.CompareAndSetStatus(ctx, sched.ID, sched.Status, StatusCancelled, StatusFields{})
		if err != nil {
			return &rotorerrors.StoreError{Op: "compareAndSetStatus", Err: err}
		}
		if ok {
			s.logger.Info("Cancelled rotation schedule for %s", secretID)
			return nil
		}
	}
	return fmt.Errorf("could not cancel schedule for %s: status kept changing", secretID)
}

// ExecuteRotation runs one rotation attempt for the secret. It is invoked
// by timer fires and may also be called directly for manual rotation.
//
// The transition into in_progress is a compare-and-set against the
// persisted status, so two concurrent calls (or two scheduler processes
// sharing one store) can never both execute the same rotation: the loser
// observes a failed CAS and performs no work.
func (s *Scheduler) ExecuteRotation(ctx context.Context, secretID string) error {
	sched, err := s.store.GetBySecretID(ctx, secretID)
	if err != nil {
		return &rotorerrors.StoreError{Op: "getBySecretId", Err: err}
	}
	if sched == nil {
		// Cancelled or never scheduled; nothing to do.
		return nil
	}

	switch {
	case sched.Status == StatusInProgress:
		// Someone else is handling it.
		return nil
	case sched.Status == StatusFailed && sched.Attempts >= s.cfg.MaxRetries:
		return fmt.Errorf("schedule for %s is terminally failed after %d attempts; re-schedule or cancel it", secretID, sched.Attempts)
	}

	started := s.now()
	lastAttempt := started.UTC()
	ok, err := s.store.CompareAndSetStatus(ctx, sched.ID, sched.Status, StatusInProgress, StatusFields{LastAttempt: &lastAttempt})
	if err != nil {
		// Nothing was persisted; do not arm anything against unsaved
		// state. The overdue sweeper will re-trigger this schedule.
		return &rotorerrors.StoreError{Op: "compareAndSetStatus", Err: err}
	}
	if !ok {
		return nil
	}

	key := sched.Policy.StrategyKey
	s.metrics.RecordStarted(key)

	var result *Result
	var execErr error
	strategy, err := s.registry.Resolve(key)
	if err != nil {
		// The strategy was registered at validation time but has since
		// disappeared. Counts as a failed attempt like any other.
		execErr = &rotorerrors.StrategyError{Strategy: key, SecretID: secretID, Err: err}
	} else {
		result, execErr = strategy.Execute(ctx, secretID, sched.Policy)
	}

	if execErr == nil {
		return s.completeRotation(ctx, sched, result, started)
	}
	return s.failRotation(ctx, sched, execErr, started)
}

// completeRotation persists the successful outcome and re-arms automatic
// policies for the next cycle.
func (s *Scheduler) completeRotation(ctx context.Context, sched *Schedule, result *Result, started time.Time) error {
	zero := 0
	success := s.now().UTC()
	noError := ""
	ok, err := s.casWithRetry(ctx, sched.ID, StatusInProgress, StatusCompleted, StatusFields{
		Attempts:    &zero,
		LastSuccess: &success,
		LastError:   &noError,
	})
	if err != nil {
		s.logger.Error("Rotation for %s succeeded but the outcome could not be persisted: %v", sched.SecretID, err)
		return err
	}
	if !ok {
		// Cancelled while we were rotating; abandon the result rather
		// than resurrect the schedule.
		s.logger.Info("Rotation for %s finished after cancellation; abandoning result", sched.SecretID)
		return nil
	}

	detail := ""
	if result != nil {
		detail = fmt.Sprintf("version %s -> %s", result.OldVersion, result.NewVersion)
	}
	s.metrics.RecordCompleted(sched.Policy.StrategyKey, "success", s.now().Sub(started).Seconds())
	s.logger.Info("Rotated %s successfully", sched.SecretID)
	s.notify(EventSuccess, sched.SecretID, detail, 0)

	if sched.Policy.Mode != ModeAutomatic {
		return nil
	}

	next := s.now().In(s.cfg.Location).AddDate(0, 0, sched.Policy.IntervalDays)
	ok, err = s.casWithRetry(ctx, sched.ID, StatusCompleted, StatusScheduled, StatusFields{NextRotation: &next})
	if err != nil {
		return err
	}
	if ok {
		s.armTimer(sched.SecretID, next)
	}
	return nil
}

// failRotation records a failed attempt and either arms a backoff retry or
// leaves the schedule terminally failed.
func (s *Scheduler) failRotation(ctx context.Context, sched *Schedule, execErr error, started time.Time) error {
	attempts := sched.Attempts + 1
	errStr := execErr.Error()
	fields := StatusFields{Attempts: &attempts, LastError: &errStr}

	s.metrics.RecordCompleted(sched.Policy.StrategyKey, "failure", s.now().Sub(started).Seconds())

	if attempts < s.cfg.MaxRetries {
		retryAt := s.now().In(s.cfg.Location).Add(s.cfg.Backoff(attempts))
		fields.NextRotation = &retryAt
		ok, err := s.casWithRetry(ctx, sched.ID, StatusInProgress, StatusFailed, fields)
		if err != nil {
			return err
		}
		if ok {
			s.metrics.RecordRetry(sched.Policy.StrategyKey)
			s.logger.Warn("Rotation for %s failed (attempt %d/%d), retrying at %s: %v",
				sched.SecretID, attempts, s.cfg.MaxRetries, retryAt.Format(time.RFC3339), execErr)
			s.notify(EventFailure, sched.SecretID, errStr, attempts)
			s.armTimer(sched.SecretID, retryAt)
		}
		return execErr
	}

	ok, err := s.casWithRetry(ctx, sched.ID, StatusInProgress, StatusFailed, fields)
	if err != nil {
		return err
	}
	if ok {
		// A retry timer from an earlier attempt may still be armed if this
		// execution was triggered manually; nothing may fire anymore.
		s.disarmTimer(sched.SecretID)
		s.logger.Error("Rotation for %s failed terminally after %d attempts; manual intervention required: %v",
			sched.SecretID, attempts, execErr)
		s.notify(EventRetriesExhausted, sched.SecretID, errStr, attempts)
	}
	return execErr
}

// Recover rebuilds the timer registry from the store after a restart.
//
// Schedules found in_progress indicate a crash mid-rotation; the strategy's
// side effects are unknown, so they are treated as failed and retried
// rather than assumed complete. Scheduled rows are re-armed at their
// persisted fire time, which may already be in the past.
func (s *Scheduler) Recover(ctx context.Context) error {
	horizon := s.now().AddDate(100, 0, 0)

	interrupted, err := s.store.ListByStatus(ctx, StatusInProgress, horizon)
	if err != nil {
		return &rotorerrors.StoreError{Op: "listByStatus", Err: err}
	}
	for i := range interrupted {
		s.recoverInterrupted(ctx, &interrupted[i])
	}

	scheduled, err := s.store.ListByStatus(ctx, StatusScheduled, horizon)
	if err != nil {
		return &rotorerrors.StoreError{Op: "listByStatus", Err: err}
	}
	armed := 0
	for _, sched := range scheduled {
		if sched.Policy.Mode != ModeAutomatic || sched.NextRotation.IsZero() {
			continue
		}
		s.armTimer(sched.SecretID, sched.NextRotation)
		armed++
	}

	// Failed rows with retry budget left had a retry timer armed when the
	// process died; their retry time is persisted in NextRotation.
	failed, err := s.store.ListByStatus(ctx, StatusFailed, horizon)
	if err != nil {
		return &rotorerrors.StoreError{Op: "listByStatus", Err: err}
	}
	for _, sched := range failed {
		if sched.Attempts >= s.cfg.MaxRetries || sched.NextRotation.IsZero() {
			continue
		}
		s.armTimer(sched.SecretID, sched.NextRotation)
		armed++
	}

	s.logger.Info("Recovery complete: %d interrupted, %d timers armed", len(interrupted), armed)
	return nil
}

func (s *Scheduler) recoverInterrupted(ctx context.Context, sched *Schedule) {
	attempts := sched.Attempts + 1
	errStr := "process restarted during rotation; outcome unknown"
	fields := StatusFields{Attempts: &attempts, LastError: &errStr}

	if attempts < s.cfg.MaxRetries {
		retryAt := s.now().In(s.cfg.Location).Add(s.cfg.Backoff(attempts))
		fields.NextRotation = &retryAt
		ok, err := s.store.CompareAndSetStatus(ctx, sched.ID, StatusInProgress, StatusFailed, fields)
		if err != nil {
			s.logger.Error("Could not record interrupted rotation for %s: %v", sched.SecretID, err)
			return
		}
		if ok {
			s.logger.Warn("Found interrupted rotation for %s; retrying at %s", sched.SecretID, retryAt.Format(time.RFC3339))
			s.notify(EventFailure, sched.SecretID, errStr, attempts)
			s.armTimer(sched.SecretID, retryAt)
		}
		return
	}

	ok, err := s.store.CompareAndSetStatus(ctx, sched.ID, StatusInProgress, StatusFailed, fields)
	if err != nil {
		s.logger.Error("Could not record interrupted rotation for %s: %v", sched.SecretID, err)
		return
	}
	if ok {
		s.notify(EventRetriesExhausted, sched.SecretID, errStr, attempts)
	}
}

// GetNextRotationTime returns the persisted fire time for a secret's
// schedule. Zero for manual policies.
func (s *Scheduler) GetNextRotationTime(ctx context.Context, secretID string) (time.Time, error) {
	sched, err := s.store.GetBySecretID(ctx, secretID)
	if err != nil {
		return time.Time{}, &rotorerrors.StoreError{Op: "getBySecretId", Err: err}
	}
	if sched == nil {
		return time.Time{}, fmt.Errorf("no active schedule for %s", secretID)
	}
	return sched.NextRotation, nil
}

// ScheduledCount returns the number of armed in-memory timers.
func (s *Scheduler) ScheduledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// OverdueCount returns the number of scheduled rows whose due time has
// already passed.
func (s *Scheduler) OverdueCount(ctx context.Context) (int, error) {
	rows, err := s.store.ListByStatus(ctx, StatusScheduled, s.now())
	if err != nil {
		return 0, &rotorerrors.StoreError{Op: "listByStatus", Err: err}
	}
	count := 0
	for _, sched := range rows {
		if !sched.NextRotation.IsZero() {
			count++
		}
	}
	return count, nil
}

// Close disarms all timers and waits for in-flight executions to finish.
// Executions already in flight are allowed to complete; cancellation is
// cooperative.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.metrics.SetArmed(0)
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
}

// armTimer arms (or replaces) the one-shot timer for a secret. This is the
// single arm-at-absolute-time primitive shared by the schedule, retry and
// overdue paths, so one secret can never hold two timers.
func (s *Scheduler) armTimer(secretID string, fireAt time.Time) {
	delay := fireAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if existing, exists := s.timers[secretID]; exists {
		existing.Stop()
	}
	s.timers[secretID] = time.AfterFunc(delay, func() {
		s.fire(secretID)
	})
	s.metrics.SetArmed(len(s.timers))
}

// disarmTimer stops any pending timer for the secret. It cannot interrupt
// an execution already in flight.
func (s *Scheduler) disarmTimer(secretID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, exists := s.timers[secretID]; exists {
		existing.Stop()
		delete(s.timers, secretID)
		s.metrics.SetArmed(len(s.timers))
	}
}

// hasTimer reports whether a timer is armed for the secret.
func (s *Scheduler) hasTimer(secretID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.timers[secretID]
	return exists
}

// fire is the timer callback: it removes the spent timer and runs one
// rotation attempt. Each secret's rotation runs on its own goroutine so a
// slow strategy never blocks other secrets' timers.
func (s *Scheduler) fire(secretID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, secretID)
	s.metrics.SetArmed(len(s.timers))
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	if err := s.ExecuteRotation(context.Background(), secretID); err != nil {
		// Failure handling and notification already happened inside.
		s.logger.Debug("Rotation attempt for %s returned: %v", secretID, err)
	}
}

// casWithRetry persists a status transition, retrying the persist itself on
// store errors with the same backoff schedule used for rotations. A CAS
// that is merely lost (ok=false) is returned immediately; only store
// failures are retried.
func (s *Scheduler) casWithRetry(ctx context.Context, id string, expected, next Status, fields StatusFields) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.cfg.Backoff(attempt)):
			case <-ctx.Done():
				return false, ctx.Err()
			case <-s.stop:
				return false, fmt.Errorf("scheduler closed while persisting transition for schedule %s", id)
			}
		}
		ok, err := s.store.CompareAndSetStatus(ctx, id, expected, next, fields)
		if err == nil {
			return ok, nil
		}
		lastErr = err
		s.logger.Warn("Persisting %s->%s for schedule %s failed (attempt %d): %v", expected, next, id, attempt+1, err)
	}
	return false, &rotorerrors.StoreError{Op: "compareAndSetStatus", Err: lastErr}
}

// notify emits a best-effort lifecycle event. Never blocks and never
// affects scheduler state.
func (s *Scheduler) notify(eventType EventType, secretID, detail string, attempts int) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(Event{
		Type:      eventType,
		SecretID:  secretID,
		Detail:    detail,
		Attempts:  attempts,
		Timestamp: s.now().UTC(),
	})
}
