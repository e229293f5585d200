package rotation

import (
	"testing"

	rotorerrors "github.com/systmms/rotor/internal/errors"
)

func testRegistry(t *testing.T) *StrategyRegistry {
	t.Helper()
	registry := NewStrategyRegistry(testLogger())
	if err := registry.Register(&fakeStrategy{key: "regenerate"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return registry
}

func TestValidatePolicy(t *testing.T) {
	registry := testRegistry(t)

	cases := []struct {
		name      string
		policy    Policy
		wantField string
	}{
		{
			name:   "valid automatic",
			policy: Policy{Mode: ModeAutomatic, IntervalDays: 30, StrategyKey: "regenerate"},
		},
		{
			name:   "valid manual without interval",
			policy: Policy{Mode: ModeManual, StrategyKey: "regenerate"},
		},
		{
			name:      "unknown mode",
			policy:    Policy{Mode: "weekly", IntervalDays: 30, StrategyKey: "regenerate"},
			wantField: "mode",
		},
		{
			name:      "zero interval",
			policy:    Policy{Mode: ModeAutomatic, IntervalDays: 0, StrategyKey: "regenerate"},
			wantField: "intervalDays",
		},
		{
			name:      "negative interval",
			policy:    Policy{Mode: ModeAutomatic, IntervalDays: -5, StrategyKey: "regenerate"},
			wantField: "intervalDays",
		},
		{
			name:      "below minimum interval",
			policy:    Policy{Mode: ModeAutomatic, IntervalDays: 3, StrategyKey: "regenerate"},
			wantField: "intervalDays",
		},
		{
			name:      "missing strategy",
			policy:    Policy{Mode: ModeAutomatic, IntervalDays: 30},
			wantField: "strategyKey",
		},
		{
			name:      "unregistered strategy",
			policy:    Policy{Mode: ModeAutomatic, IntervalDays: 30, StrategyKey: "carrier-pigeon"},
			wantField: "strategyKey",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePolicy(tc.policy, 7, registry)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("ValidatePolicy: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected a policy error")
			}
			var policyErr *rotorerrors.PolicyError
			if !asPolicyError(err, &policyErr) {
				t.Fatalf("error type = %T", err)
			}
			if policyErr.Field != tc.wantField {
				t.Errorf("Field = %s, want %s", policyErr.Field, tc.wantField)
			}
		})
	}
}

func asPolicyError(err error, target **rotorerrors.PolicyError) bool {
	pe, ok := err.(*rotorerrors.PolicyError)
	if ok {
		*target = pe
	}
	return ok
}

func TestValidatePolicyNilRegistry(t *testing.T) {
	err := ValidatePolicy(Policy{Mode: ModeManual, StrategyKey: "regenerate"}, 1, nil)
	if err == nil {
		t.Fatal("nil registry cannot satisfy any strategy key")
	}
}
