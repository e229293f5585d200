package rotation

import (
	"time"
)

// EventType classifies a rotation lifecycle event.
type EventType string

const (
	// EventScheduled indicates a schedule was accepted and persisted.
	EventScheduled EventType = "scheduled"

	// EventSuccess indicates a rotation completed successfully.
	EventSuccess EventType = "success"

	// EventFailure indicates a single rotation attempt failed and a
	// retry is pending.
	EventFailure EventType = "failure"

	// EventOverdue indicates a scheduled rotation's due time passed
	// without its timer firing, typically after a process restart.
	EventOverdue EventType = "overdue"

	// EventRetriesExhausted indicates the retry budget is spent and the
	// schedule requires manual intervention.
	EventRetriesExhausted EventType = "retries_exhausted"
)

// Event is a best-effort lifecycle notification.
type Event struct {
	Type      EventType `json:"type"`
	SecretID  string    `json:"secret_id"`
	Detail    string    `json:"detail,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers lifecycle events. Implementations must never block the
// caller; delivery failures must stay isolated from the state machine.
type Notifier interface {
	Notify(event Event)
}

// AllEventTypes returns every valid event type.
func AllEventTypes() []EventType {
	return []EventType{
		EventScheduled,
		EventSuccess,
		EventFailure,
		EventOverdue,
		EventRetriesExhausted,
	}
}
