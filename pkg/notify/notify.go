// Package notify sends best-effort operational notifications. Delivery failure
// is logged and swallowed; nothing in the engine depends on a notification
// landing.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Notifier delivers a short operator-facing message.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// WebhookNotifier posts messages to a Discord-compatible webhook URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookNotifier creates a notifier for the given webhook URL.
func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With("module", "notify"),
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, message string) {
	if n.url == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to marshal notification", "error", err)

		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to build notification request", "error", err)

		return
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to deliver notification", "error", err)

		return
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		n.logger.ErrorContext(ctx, "Notification rejected",
			"status", fmt.Sprintf("%d", resp.StatusCode))
	}
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(_ context.Context, _ string) {}
