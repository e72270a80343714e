// Package notify isolates the platform notification side effect behind a
// small capability interface, so the rule engine's decisions stay testable
// without a live permission grant.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"skycast/internal/httputil"
	"skycast/internal/metrics"
)

// webhookTimeout is deliberately shorter than the default client timeout:
// notification delivery runs on evaluation passes and must give up quickly.
const webhookTimeout = 10 * time.Second

// Notifier delivers a title/body pair to the platform. Delivery is
// fire-and-forget and best-effort: failures are reported but never block or
// suppress the in-app alert.
type Notifier interface {
	Send(title, body string) error
}

// Nop discards every notification. Used when no delivery target is
// configured, and as the test double.
type Nop struct{}

func (Nop) Send(string, string) error { return nil }

// Webhook posts notifications as JSON to a configured URL. Outbound calls go
// through a circuit breaker so a dead endpoint cannot stall every evaluation
// pass behind connection timeouts.
type Webhook struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func NewWebhook(url string) *Webhook {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name: "notify-webhook",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Webhook{
		url:     url,
		client:  httputil.NewClient(webhookTimeout),
		breaker: cb,
	}
}

type webhookPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (w *Webhook) Send(title, body string) error {
	payload, err := json.Marshal(webhookPayload{Title: title, Body: body})
	if err != nil {
		return err
	}

	_, err = w.breaker.Execute(func() (*http.Response, error) {
		resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("webhook status %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		metrics.NotificationsSentTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("send notification: %w", err)
	}
	metrics.NotificationsSentTotal.WithLabelValues("ok").Inc()
	return nil
}

// Gated wraps a Notifier with a permission check. The permission is granted
// by an explicit user action elsewhere and persisted; nothing here ever
// requests it. When permission is absent the notification is silently
// skipped, which is non-fatal: the alert still shows in-app.
type Gated struct {
	Granted func() bool
	Next    Notifier
}

func (g Gated) Send(title, body string) error {
	if g.Granted == nil || !g.Granted() {
		return nil
	}
	return g.Next.Send(title, body)
}
