package rotation

import (
	rotorerrors "github.com/systmms/rotor/internal/errors"
)

// ValidatePolicy checks a rotation policy before it is accepted. It is pure
// and runs synchronously inside ScheduleRotation, so invalid policies never
// reach the store.
func ValidatePolicy(policy Policy, minIntervalDays int, registry *StrategyRegistry) error {
	switch policy.Mode {
	case ModeAutomatic, ModeManual:
	default:
		return &rotorerrors.PolicyError{
			Field:      "mode",
			Value:      string(policy.Mode),
			Message:    "must be 'automatic' or 'manual'",
			Suggestion: "set mode: automatic for interval-driven rotation",
		}
	}

	if policy.Mode == ModeAutomatic {
		if policy.IntervalDays <= 0 {
			return &rotorerrors.PolicyError{
				Field:   "intervalDays",
				Value:   policy.IntervalDays,
				Message: "automatic rotation requires a positive interval",
			}
		}
		if policy.IntervalDays < minIntervalDays {
			return &rotorerrors.PolicyError{
				Field:      "intervalDays",
				Value:      policy.IntervalDays,
				Message:    "below the configured minimum rotation interval",
				Suggestion: "raise intervalDays or lower min_interval_days in rotor.yaml",
			}
		}
	}

	if policy.StrategyKey == "" {
		return &rotorerrors.PolicyError{
			Field:   "strategyKey",
			Message: "a rotation strategy is required",
		}
	}
	if registry == nil || !registry.Has(policy.StrategyKey) {
		return &rotorerrors.PolicyError{
			Field:      "strategyKey",
			Value:      policy.StrategyKey,
			Message:    "no such strategy registered",
			Suggestion: "register the strategy before scheduling, or use 'regenerate'",
		}
	}

	return nil
}
