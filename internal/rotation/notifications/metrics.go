package notifications

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	notificationsSent    *prometheus.CounterVec
	notificationsFailed  *prometheus.CounterVec
	notificationsDropped *prometheus.CounterVec
)

// InitMetrics registers the notification metrics with the default
// registry. Safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rotor_notifications_sent_total",
			Help: "Notification events delivered, by provider.",
		}, []string{"provider"})

		notificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rotor_notifications_failed_total",
			Help: "Notification deliveries that returned an error, by provider.",
		}, []string{"provider"})

		notificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rotor_notifications_dropped_total",
			Help: "Events dropped because the queue was full, by event type.",
		}, []string{"event_type"})
	})
}

func recordSent(provider string) {
	if notificationsSent != nil {
		notificationsSent.WithLabelValues(provider).Inc()
	}
}

func recordFailed(provider string) {
	if notificationsFailed != nil {
		notificationsFailed.WithLabelValues(provider).Inc()
	}
}

func recordDropped(eventType string) {
	if notificationsDropped != nil {
		notificationsDropped.WithLabelValues(eventType).Inc()
	}
}
