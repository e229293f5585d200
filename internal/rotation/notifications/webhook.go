package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/systmms/rotor/pkg/rotation"
)

// WebhookProvider POSTs events as JSON to an HTTP endpoint.
type WebhookProvider struct {
	name    string
	url     string
	headers map[string]string
	events  map[rotation.EventType]bool
	client  *http.Client
}

// NewWebhookProvider creates a webhook sink. An empty events list
// subscribes to every event type.
func NewWebhookProvider(name, url string, headers map[string]string, events []rotation.EventType) *WebhookProvider {
	subscribed := make(map[rotation.EventType]bool)
	if len(events) == 0 {
		events = rotation.AllEventTypes()
	}
	for _, e := range events {
		subscribed[e] = true
	}
	return &WebhookProvider{
		name:    name,
		url:     url,
		headers: headers,
		events:  subscribed,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the provider in logs.
func (w *WebhookProvider) Name() string {
	return w.name
}

// SupportsEvent reports whether the provider subscribed to the event type.
func (w *WebhookProvider) SupportsEvent(eventType rotation.EventType) bool {
	return w.events[eventType]
}

// Send POSTs the event to the configured endpoint.
func (w *WebhookProvider) Send(ctx context.Context, event rotation.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
