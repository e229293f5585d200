package rotation

import (
	"time"
)

// Mode controls whether rotations are fired by the engine or by an operator.
type Mode string

const (
	// ModeAutomatic rotates on a fixed interval driven by the scheduler.
	ModeAutomatic Mode = "automatic"

	// ModeManual creates a schedule record but never arms a timer;
	// rotation happens only through an explicit ExecuteRotation call.
	ModeManual Mode = "manual"
)

// Policy is the immutable rotation policy embedded in a schedule.
type Policy struct {
	// Mode selects automatic or manual rotation.
	Mode Mode `json:"mode" yaml:"mode"`

	// IntervalDays is the rotation period. Required and positive when
	// Mode is automatic; must be at least the configured minimum.
	IntervalDays int `json:"interval_days" yaml:"interval_days"`

	// StrategyKey identifies a registered RotationStrategy.
	StrategyKey string `json:"strategy_key" yaml:"strategy_key"`
}

// Status is the persisted state of a schedule.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Schedule is the central entity: one rotation schedule for one secret.
// Mutated only by the scheduler's transition functions, never by callers.
type Schedule struct {
	// ID is generated at creation and immutable.
	ID string `json:"id"`

	// SecretID identifies the secret being rotated. At most one
	// non-cancelled schedule exists per secret id at any time.
	SecretID string `json:"secret_id"`

	Policy Policy `json:"policy"`

	Status Status `json:"status"`

	// NextRotation is the absolute fire time. Zero for manual policies.
	NextRotation time.Time `json:"next_rotation"`

	// Attempts counts failed executions since the last completed
	// transition; reset to zero immediately after success.
	Attempts int `json:"attempts"`

	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Result is the transient outcome of one strategy invocation. It is
// consumed by the scheduler to decide the next transition and is not
// persisted as its own entity.
type Result struct {
	SecretID   string    `json:"secret_id"`
	OldVersion string    `json:"old_version,omitempty"`
	NewVersion string    `json:"new_version,omitempty"`
	RotatedAt  time.Time `json:"rotated_at"`
}

// StatusFields carries the optional observational fields written together
// with a status transition. Nil pointers leave the stored value unchanged.
type StatusFields struct {
	NextRotation *time.Time
	Attempts     *int
	LastAttempt  *time.Time
	LastSuccess  *time.Time
	LastError    *string
}
