package notifications

import (
	"context"

	"github.com/systmms/rotor/internal/logging"
	"github.com/systmms/rotor/pkg/rotation"
)

// LogProvider writes events to the process log. Always enabled as the
// fallback sink so lifecycle events are visible without any webhook
// configuration.
type LogProvider struct {
	logger *logging.Logger
}

// NewLogProvider creates a log sink.
func NewLogProvider(logger *logging.Logger) *LogProvider {
	return &LogProvider{logger: logger.WithPrefix("event")}
}

// Name identifies the provider in logs.
func (l *LogProvider) Name() string {
	return "log"
}

// SupportsEvent accepts every event type.
func (l *LogProvider) SupportsEvent(rotation.EventType) bool {
	return true
}

// Send logs the event at a severity matching its type.
func (l *LogProvider) Send(ctx context.Context, event rotation.Event) error {
	switch event.Type {
	case rotation.EventFailure, rotation.EventRetriesExhausted:
		l.logger.Error("%s %s (attempts %d): %s", event.Type, event.SecretID, event.Attempts, event.Detail)
	case rotation.EventOverdue:
		l.logger.Warn("%s %s: %s", event.Type, event.SecretID, event.Detail)
	default:
		l.logger.Info("%s %s: %s", event.Type, event.SecretID, event.Detail)
	}
	return nil
}
