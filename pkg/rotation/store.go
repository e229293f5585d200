package rotation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ScheduleStore is the durable home of schedule records. The scheduler
// persists every state change here before arming or disarming a timer, so
// the store is always the source of truth after a crash.
type ScheduleStore interface {
	// Create persists a new schedule. Any prior non-cancelled schedule
	// for the same secret id is transitioned to cancelled in the same
	// operation, enforcing the one-active-schedule-per-secret invariant.
	Create(ctx context.Context, schedule *Schedule) error

	// GetBySecretID returns the active (non-cancelled) schedule for a
	// secret, or nil if none exists.
	GetBySecretID(ctx context.Context, secretID string) (*Schedule, error)

	// CompareAndSetStatus transitions a schedule's status only if the
	// persisted status matches expected, applying fields atomically with
	// the transition. Returns false with no error when the expectation
	// fails, which callers treat as "someone else owns this rotation".
	CompareAndSetStatus(ctx context.Context, id string, expected, next Status, fields StatusFields) (bool, error)

	// ListByStatus returns schedules in the given status whose
	// NextRotation is before the cutoff. Schedules without a fire time
	// (manual policies) are included so recovery can see them.
	ListByStatus(ctx context.Context, status Status, before time.Time) ([]Schedule, error)

	// DeleteOlderThan hard-deletes schedules in the given status last
	// updated before the cutoff, returning the number removed.
	DeleteOlderThan(ctx context.Context, status Status, before time.Time) (int, error)

	// Close releases store resources.
	Close() error
}

// MemoryScheduleStore is the in-memory reference implementation, used for
// testing and single-process development.
type MemoryScheduleStore struct {
	mu        sync.RWMutex
	schedules map[string]*Schedule // keyed by schedule id
}

// NewMemoryScheduleStore creates an empty in-memory store.
func NewMemoryScheduleStore() *MemoryScheduleStore {
	return &MemoryScheduleStore{
		schedules: make(map[string]*Schedule),
	}
}

// Create persists a schedule, cancelling any active row for the secret.
func (m *MemoryScheduleStore) Create(ctx context.Context, schedule *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.schedules {
		if existing.SecretID == schedule.SecretID && existing.Status != StatusCancelled {
			existing.Status = StatusCancelled
			existing.UpdatedAt = schedule.CreatedAt
		}
	}

	clone := *schedule
	m.schedules[schedule.ID] = &clone
	return nil
}

// GetBySecretID returns the active schedule for a secret, or nil.
func (m *MemoryScheduleStore) GetBySecretID(ctx context.Context, secretID string) (*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *Schedule
	for _, s := range m.schedules {
		if s.SecretID != secretID || s.Status == StatusCancelled {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

// CompareAndSetStatus performs the conditional transition under the store lock.
func (m *MemoryScheduleStore) CompareAndSetStatus(ctx context.Context, id string, expected, next Status, fields StatusFields) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.schedules[id]
	if !exists || s.Status != expected {
		return false, nil
	}

	s.Status = next
	s.UpdatedAt = time.Now().UTC()
	if fields.NextRotation != nil {
		s.NextRotation = *fields.NextRotation
	}
	if fields.Attempts != nil {
		s.Attempts = *fields.Attempts
	}
	if fields.LastAttempt != nil {
		s.LastAttempt = fields.LastAttempt
	}
	if fields.LastSuccess != nil {
		s.LastSuccess = fields.LastSuccess
	}
	if fields.LastError != nil {
		s.LastError = *fields.LastError
	}
	return true, nil
}

// ListByStatus returns matching schedules ordered by NextRotation.
func (m *MemoryScheduleStore) ListByStatus(ctx context.Context, status Status, before time.Time) ([]Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Schedule
	for _, s := range m.schedules {
		if s.Status != status {
			continue
		}
		if !s.NextRotation.IsZero() && !s.NextRotation.Before(before) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextRotation.Before(out[j].NextRotation)
	})
	return out, nil
}

// DeleteOlderThan removes matching schedules and reports how many.
func (m *MemoryScheduleStore) DeleteOlderThan(ctx context.Context, status Status, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, s := range m.schedules {
		if s.Status == status && s.UpdatedAt.Before(before) {
			delete(m.schedules, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close clears the store.
func (m *MemoryScheduleStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = make(map[string]*Schedule)
	return nil
}

// getByID returns a copy of the schedule with the given id. Test helper.
func (m *MemoryScheduleStore) getByID(id string) *Schedule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, exists := m.schedules[id]
	if !exists {
		return nil
	}
	clone := *s
	return &clone
}
