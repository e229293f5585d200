package rotation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/systmms/rotor/internal/logging"
)

// RotationStrategy executes the actual rotation for one class of secret.
//
// Strategies are stateless with respect to the scheduler: they never mutate
// schedule state, and the scheduler treats any failure identically
// regardless of cause. It only counts attempts. New secret types are added
// by registering a new strategy under a key, never by modifying the
// scheduler.
//
// Implementations must be safe for concurrent use, as rotations for
// different secrets run concurrently.
type RotationStrategy interface {
	// Key returns the stable identifier used in policies.
	Key() string

	// Execute performs the rotation for the given secret, returning the
	// old and new secret versions. It must respect ctx cancellation for
	// network calls to the secret's backing system.
	Execute(ctx context.Context, secretID string, policy Policy) (*Result, error)
}

// StrategyRegistry manages available rotation strategies. Lookups happen at
// validation time and again at execution time, so live registry updates are
// picked up by already-armed schedules.
type StrategyRegistry struct {
	mu         sync.RWMutex
	strategies map[string]RotationStrategy
	logger     *logging.Logger
}

// NewStrategyRegistry creates an empty strategy registry.
func NewStrategyRegistry(logger *logging.Logger) *StrategyRegistry {
	return &StrategyRegistry{
		strategies: make(map[string]RotationStrategy),
		logger:     logger,
	}
}

// Register adds a strategy. Registering a duplicate key is an error.
func (r *StrategyRegistry) Register(strategy RotationStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strategy.Key()
	if _, exists := r.strategies[key]; exists {
		return fmt.Errorf("strategy '%s' already registered", key)
	}
	r.strategies[key] = strategy
	r.logger.Debug("Registered rotation strategy: %s", key)
	return nil
}

// Resolve returns the strategy for a key. An unknown key is a
// configuration error.
func (r *StrategyRegistry) Resolve(key string) (RotationStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	strategy, exists := r.strategies[key]
	if !exists {
		return nil, fmt.Errorf("unknown rotation strategy: %s", key)
	}
	return strategy, nil
}

// Has checks whether a strategy key is registered.
func (r *StrategyRegistry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.strategies[key]
	return exists
}

// Keys returns all registered strategy keys, sorted.
func (r *StrategyRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.strategies))
	for key := range r.strategies {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
