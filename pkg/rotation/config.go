package rotation

import (
	"time"

	rotorerrors "github.com/systmms/rotor/internal/errors"
)

// Config holds the scheduler's tuning knobs. All values are validated at
// startup; a zero Config is not usable.
type Config struct {
	// MinIntervalDays is the smallest rotation interval an automatic
	// policy may request.
	MinIntervalDays int

	// MaxRetries bounds automatic retry attempts after failures. Once
	// Attempts reaches this value the schedule is terminally failed.
	MaxRetries int

	// BaseRetryDelay seeds the exponential backoff between retries.
	BaseRetryDelay time.Duration

	// MaxRetryDelay caps the backoff.
	MaxRetryDelay time.Duration

	// RetentionDays controls how long completed and cancelled schedules
	// are kept before the cleanup sweeper hard-deletes them.
	RetentionDays int

	// OverdueSweepInterval is how often the overdue monitor scans for
	// scheduled rows whose due time has passed without firing.
	OverdueSweepInterval time.Duration

	// CleanupSweepInterval is how often retention cleanup runs.
	CleanupSweepInterval time.Duration

	// Location is the timezone used to compute absolute fire times.
	Location *time.Location
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinIntervalDays:      1,
		MaxRetries:           3,
		BaseRetryDelay:       30 * time.Second,
		MaxRetryDelay:        1 * time.Hour,
		RetentionDays:        90,
		OverdueSweepInterval: 15 * time.Minute,
		CleanupSweepInterval: 24 * time.Hour,
		Location:             time.UTC,
	}
}

// Validate checks the configuration surface at startup.
func (c Config) Validate() error {
	if c.MinIntervalDays < 1 {
		return &rotorerrors.ConfigError{
			Field:   "min_interval_days",
			Value:   c.MinIntervalDays,
			Message: "must be at least 1",
		}
	}
	if c.MaxRetries < 1 {
		return &rotorerrors.ConfigError{
			Field:   "max_retries",
			Value:   c.MaxRetries,
			Message: "must be at least 1",
		}
	}
	if c.BaseRetryDelay <= 0 {
		return &rotorerrors.ConfigError{
			Field:   "base_retry_delay",
			Value:   c.BaseRetryDelay,
			Message: "must be positive",
		}
	}
	if c.MaxRetryDelay < c.BaseRetryDelay {
		return &rotorerrors.ConfigError{
			Field:      "max_retry_delay",
			Value:      c.MaxRetryDelay,
			Message:    "must be at least base_retry_delay",
			Suggestion: "the ceiling cannot be below the first retry delay",
		}
	}
	if c.RetentionDays < 1 {
		return &rotorerrors.ConfigError{
			Field:   "retention_days",
			Value:   c.RetentionDays,
			Message: "must be at least 1",
		}
	}
	if c.OverdueSweepInterval <= 0 {
		return &rotorerrors.ConfigError{
			Field:   "overdue_sweep_interval",
			Value:   c.OverdueSweepInterval,
			Message: "must be positive",
		}
	}
	if c.CleanupSweepInterval <= 0 {
		return &rotorerrors.ConfigError{
			Field:   "cleanup_sweep_interval",
			Value:   c.CleanupSweepInterval,
			Message: "must be positive",
		}
	}
	if c.Location == nil {
		return &rotorerrors.ConfigError{
			Field:   "timezone",
			Message: "a timezone is required to compute absolute fire times",
		}
	}
	return nil
}

// Backoff returns the delay before the retry following the given attempt
// count: min(baseDelay * 2^attempts, maxRetryDelay).
func (c Config) Backoff(attempts int) time.Duration {
	delay := c.BaseRetryDelay
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= c.MaxRetryDelay || delay < 0 {
			return c.MaxRetryDelay
		}
	}
	if delay > c.MaxRetryDelay {
		return c.MaxRetryDelay
	}
	return delay
}
