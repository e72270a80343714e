// Package alerts holds the ephemeral presentation queue for engine-produced
// alerts. The queue retains every alert but only surfaces the newest few;
// each alert auto-expires after a fixed dwell time, and auto-expiry and
// manual dismissal funnel through the same idempotent Dismiss.
package alerts

import (
	"log"
	"sync"
	"time"

	"skycast/internal/metrics"
	"skycast/internal/models"
	"skycast/internal/notify"
)

const (
	// DefaultDwell is how long an alert stays up before auto-expiring.
	DefaultDwell = 5 * time.Second

	// VisibleLimit caps how many alerts are surfaced at once. The rest stay
	// queued and slide in as older ones expire.
	VisibleLimit = 3
)

type Queue struct {
	mu       sync.Mutex
	notifier notify.Notifier
	items    []models.Alert // newest first
	timers   map[string]*time.Timer
	dwell    time.Duration
	closed   bool
}

func NewQueue(notifier notify.Notifier) *Queue {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Queue{
		notifier: notifier,
		timers:   make(map[string]*time.Timer),
		dwell:    DefaultDwell,
	}
}

// Push enqueues alerts, newest first, arms their expiry timers and fires the
// best-effort native notification for each. Failures to deliver natively are
// logged and otherwise ignored: the alert is already visible in-app.
func (q *Queue) Push(alerts ...models.Alert) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	for _, a := range alerts {
		alert := a
		q.items = append([]models.Alert{alert}, q.items...)
		q.timers[alert.ID] = time.AfterFunc(q.dwell, func() { q.Dismiss(alert.ID) })
		metrics.AlertsFiredTotal.WithLabelValues(alert.Rule, "foreground").Inc()
		go func() {
			if err := q.notifier.Send(alert.Title, alert.Message); err != nil {
				log.Printf("alerts: native notification: %v", err)
			}
		}()
	}
}

// Dismiss removes an alert by id. It is idempotent: dismissing an id that
// already expired (or was never queued) is a no-op, so the auto-expiry race
// with manual dismissal is harmless.
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	for i, a := range q.items {
		if a.ID == id {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			break
		}
	}
}

// Visible returns the newest alerts up to the display limit.
func (q *Queue) Visible() []models.Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if n > VisibleLimit {
		n = VisibleLimit
	}
	out := make([]models.Alert, n)
	copy(out, q.items[:n])
	return out
}

// All returns every queued alert, newest first.
func (q *Queue) All() []models.Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Alert, len(q.items))
	copy(out, q.items)
	return out
}

// Close cancels all outstanding expiry timers and rejects further pushes.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}
