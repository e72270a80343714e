// Package worker is the background execution context: an isolated periodic
// task that shares no memory with the foreground session. It reconstructs its
// fetch context entirely from the state payloads the foreground pushes to it,
// re-fetches a minimal forecast slice and evaluates the reduced rule set,
// notifying the platform directly instead of going through the in-app queue.
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"skycast/internal/metrics"
	"skycast/internal/models"
	"skycast/internal/notify"
	"skycast/internal/rules"
)

// DefaultSchedule is the periodic weather-update trigger.
const DefaultSchedule = "@every 30m"

// Fetcher is the slice of the gateway the worker needs.
type Fetcher interface {
	FetchBackgroundSlice(ctx context.Context, lat, lon float64, unit models.UnitSystem) (*models.ForecastSnapshot, error)
}

type Worker struct {
	fetcher  Fetcher
	notifier notify.Notifier

	mu      sync.Mutex
	state   *models.WorkerState
	history rules.History
}

func New(fetcher Fetcher, notifier notify.Notifier) *Worker {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Worker{
		fetcher:  fetcher,
		notifier: notifier,
		history:  rules.History{},
	}
}

// UpdateState replaces the retained payload. Only the most recent payload is
// kept; the worker has no other view of foreground state, so this may be
// arbitrarily stale relative to the latest settings.
func (w *Worker) UpdateState(state models.WorkerState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = &state
}

// Run schedules the periodic weather-update job and blocks until the context
// is cancelled.
func (w *Worker) Run(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { w.runOnce(ctx) }); err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	log.Println("worker: shutting down")
	return nil
}

// runOnce is one weather-update wake. The worker keeps its own firing
// history: it cannot read the session's, so a notification here may duplicate
// one already shown in the app. That weaker dedup is accepted for the
// background path.
func (w *Worker) runOnce(ctx context.Context) {
	w.mu.Lock()
	state := w.state
	w.mu.Unlock()

	if state == nil {
		log.Println("worker: weather-update: no state pushed yet, skipping")
		metrics.BackgroundRunsTotal.WithLabelValues("skipped").Inc()
		return
	}

	snap, err := w.fetcher.FetchBackgroundSlice(ctx, state.Location.Latitude, state.Location.Longitude, state.Unit)
	if err != nil {
		log.Printf("worker: weather-update: fetch: %v", err)
		metrics.BackgroundRunsTotal.WithLabelValues("error").Inc()
		return
	}

	w.mu.Lock()
	alerts, history := rules.Evaluate(rules.Background, snap, state.Settings, w.history, time.Now())
	w.history = history
	w.mu.Unlock()

	for _, a := range alerts {
		metrics.AlertsFiredTotal.WithLabelValues(a.Rule, "background").Inc()
		if err := w.notifier.Send(a.Title, a.Message); err != nil {
			log.Printf("worker: weather-update: notify: %v", err)
		}
	}
	metrics.BackgroundRunsTotal.WithLabelValues("ok").Inc()
}
