// Package errors defines the error taxonomy for the rotation engine.
//
// Four error families map to distinct handling paths in the scheduler:
// policy errors are rejected synchronously before persistence, store errors
// drive persist-retry, strategy errors drive the bounded retry/backoff
// path, and config errors abort startup.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// PolicyError reports a rotation policy that failed validation.
// Policy errors are never retried.
type PolicyError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e *PolicyError) Error() string {
	msg := "invalid rotation policy"
	if e.Field != "" {
		msg += fmt.Sprintf(": field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

// ConfigError represents a configuration error with helpful context.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

// StoreError wraps a schedule store failure. The scheduler treats these as
// fatal to the single operation and retries the persist itself.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("schedule store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// StrategyError reports a failed rotation attempt by a strategy. The
// scheduler counts attempts but never interprets the cause.
type StrategyError struct {
	Strategy string
	SecretID string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy '%s' failed to rotate %s: %v", e.Strategy, e.SecretID, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

// IsPolicy reports whether err is a policy validation error.
func IsPolicy(err error) bool {
	var pe *PolicyError
	return errors.As(err, &pe)
}

// IsStore reports whether err originated in the schedule store.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// IsRetryable checks if an error looks transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"connection refused",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
