// Package secretstore defines the collaborator interface to the external
// secret store holding the values being rotated.
//
// The rotation engine never decides secret values itself; strategies write
// newly generated values here and the store assigns versions. The concrete
// backend (in-memory for development, AWS Secrets Manager in production) is
// selected by configuration.
package secretstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Value is one stored secret version.
type Value struct {
	Data    []byte
	Version string
	Updated time.Time
}

// Store is the secret store contract consumed by rotation strategies.
type Store interface {
	// Get returns the current value of a secret, or an error if the
	// secret does not exist.
	Get(ctx context.Context, key string) (*Value, error)

	// Put stores a new value for a secret and returns the version
	// assigned by the backend. Creates the secret if absent.
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// Memory is an in-memory versioned store for testing and development.
type Memory struct {
	mu      sync.RWMutex
	secrets map[string]*Value
	counter map[string]int
}

// NewMemory creates an empty in-memory secret store.
func NewMemory() *Memory {
	return &Memory{
		secrets: make(map[string]*Value),
		counter: make(map[string]int),
	}
}

// Get returns the current value of a secret.
func (m *Memory) Get(ctx context.Context, key string) (*Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, exists := m.secrets[key]
	if !exists {
		return nil, fmt.Errorf("secret %s not found", key)
	}
	clone := *v
	clone.Data = append([]byte(nil), v.Data...)
	return &clone, nil
}

// Put stores a new version of a secret. Versions are v1, v2, ...
func (m *Memory) Put(ctx context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter[key]++
	version := fmt.Sprintf("v%d", m.counter[key])
	m.secrets[key] = &Value{
		Data:    append([]byte(nil), data...),
		Version: version,
		Updated: time.Now().UTC(),
	}
	return version, nil
}
