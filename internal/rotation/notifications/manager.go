// Package notifications delivers rotation lifecycle events to external
// sinks. Delivery is asynchronous and best-effort: a slow or failing sink
// never blocks or fails a rotation, and events are dropped when the queue
// is full.
package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/systmms/rotor/internal/logging"
	"github.com/systmms/rotor/pkg/rotation"
)

// DefaultQueueSize bounds the pending event queue.
const DefaultQueueSize = 256

// sendTimeout caps one provider delivery.
const sendTimeout = 10 * time.Second

// Provider is one notification sink.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// SupportsEvent filters which event types the provider receives.
	SupportsEvent(eventType rotation.EventType) bool

	// Send delivers one event. Errors are logged, never propagated.
	Send(ctx context.Context, event rotation.Event) error
}

// Manager fans events out to providers from a single worker goroutine.
// It implements rotation.Notifier.
type Manager struct {
	providers []Provider
	queue     chan rotation.Event
	logger    *logging.Logger

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewManager creates a manager over the given providers. queueSize 0 uses
// the default.
func NewManager(providers []Provider, queueSize int, logger *logging.Logger) *Manager {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Manager{
		providers: providers,
		queue:     make(chan rotation.Event, queueSize),
		logger:    logger.WithPrefix("notify"),
	}
}

// Start launches the delivery worker. Idempotent.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.worker()
}

// Stop drains queued events and waits for the worker to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()
	<-done
}

// Notify enqueues an event, dropping it if the queue is full.
func (m *Manager) Notify(event rotation.Event) {
	select {
	case m.queue <- event:
	default:
		recordDropped(string(event.Type))
		m.logger.Warn("Queue full, dropped %s event for %s", event.Type, event.SecretID)
	}
}

func (m *Manager) worker() {
	defer close(m.done)
	for {
		select {
		case event := <-m.queue:
			m.deliver(event)
		case <-m.stop:
			m.drain()
			return
		}
	}
}

// drain delivers whatever is already queued, then returns.
func (m *Manager) drain() {
	for {
		select {
		case event := <-m.queue:
			m.deliver(event)
		default:
			return
		}
	}
}

func (m *Manager) deliver(event rotation.Event) {
	for _, provider := range m.providers {
		if !provider.SupportsEvent(event.Type) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := provider.Send(ctx, event); err != nil {
			recordFailed(provider.Name())
			m.logger.Warn("Provider %s failed to deliver %s for %s: %v",
				provider.Name(), event.Type, event.SecretID, err)
		} else {
			recordSent(provider.Name())
		}
		cancel()
	}
}
