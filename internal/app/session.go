// Package app owns the foreground session: the active location and unit
// system, the current forecast snapshot, and the in-memory rule firing
// history. Any change to location or unit invalidates the snapshot and
// triggers exactly one refetch.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"skycast/internal/alerts"
	"skycast/internal/models"
	"skycast/internal/rules"
	"skycast/internal/store"
)

// DefaultLocation is the hardcoded fallback used at startup and when
// geolocation cannot be resolved.
var DefaultLocation = models.Location{
	ID:        2643743,
	Name:      "London",
	Latitude:  51.50853,
	Longitude: -0.12574,
	Country:   "United Kingdom",
}

// Forecaster is the slice of the gateway the session depends on.
type Forecaster interface {
	FetchForecast(ctx context.Context, lat, lon float64, unit models.UnitSystem) (*models.ForecastSnapshot, error)
}

// StatePusher receives the serialized foreground state for the background
// execution context.
type StatePusher interface {
	UpdateState(state models.WorkerState)
}

type Session struct {
	forecaster Forecaster
	store      *store.Store
	queue      *alerts.Queue
	pusher     StatePusher

	// seq tags each fetch so a stale in-flight response for a superseded
	// location or unit can be discarded instead of overwriting fresher state.
	seq atomic.Uint64

	mu       sync.Mutex
	location models.Location
	unit     models.UnitSystem
	snapshot *models.ForecastSnapshot
	history  rules.History
	fetchErr bool
}

func NewSession(forecaster Forecaster, st *store.Store, queue *alerts.Queue, pusher StatePusher) *Session {
	return &Session{
		forecaster: forecaster,
		store:      st,
		queue:      queue,
		pusher:     pusher,
		location:   DefaultLocation,
		unit:       models.UnitMetric,
		history:    rules.History{},
	}
}

// Location returns the active location.
func (s *Session) Location() models.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// Unit returns the active unit system.
func (s *Session) Unit() models.UnitSystem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unit
}

// Snapshot returns the current snapshot (nil before the first successful
// fetch) and whether the most recent fetch failed.
func (s *Session) Snapshot() (*models.ForecastSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.fetchErr
}

// SetLocation switches the active location and refetches.
func (s *Session) SetLocation(ctx context.Context, loc models.Location) {
	s.mu.Lock()
	s.location = loc
	s.mu.Unlock()
	s.Refresh(ctx)
}

// SetUnit switches the active unit system and refetches.
func (s *Session) SetUnit(ctx context.Context, unit models.UnitSystem) error {
	if !unit.Valid() {
		return fmt.Errorf("unknown unit system %q", unit)
	}
	s.mu.Lock()
	s.unit = unit
	s.mu.Unlock()
	s.Refresh(ctx)
	return nil
}

// Refresh fetches a new snapshot for the active location and unit and, on
// success, runs the rule engine and pushes state to the background worker.
// A response that resolves after a newer fetch was issued is discarded.
func (s *Session) Refresh(ctx context.Context) {
	s.mu.Lock()
	loc := s.location
	unit := s.unit
	s.mu.Unlock()

	seq := s.seq.Add(1)
	snap, err := s.forecaster.FetchForecast(ctx, loc.Latitude, loc.Longitude, unit)

	s.mu.Lock()
	if seq != s.seq.Load() {
		s.mu.Unlock()
		log.Printf("session: discarding stale forecast response for %s", loc.Name)
		return
	}
	if err != nil {
		s.fetchErr = true
		s.mu.Unlock()
		log.Printf("session: refresh %s: %v", loc.Name, err)
		return
	}
	s.fetchErr = false
	s.snapshot = snap
	settings := s.store.Settings()
	fired, history := rules.Evaluate(rules.Foreground, snap, settings, s.history, localNow(snap))
	s.history = history
	s.mu.Unlock()

	if len(fired) > 0 {
		s.queue.Push(fired...)
	}
	s.PushWorkerState()
}

// PushWorkerState serializes {location, unit, settings} for the background
// context. Called after every refresh and after settings changes so the
// worker's retained payload tracks the foreground as closely as it can.
func (s *Session) PushWorkerState() {
	if s.pusher == nil {
		return
	}
	s.mu.Lock()
	state := models.WorkerState{
		Location: s.location,
		Unit:     s.unit,
		Settings: s.store.Settings(),
	}
	s.mu.Unlock()
	s.pusher.UpdateState(state)
}

// Run refreshes on a fixed interval until the context is cancelled, so
// time-gated rules get an evaluation pass even when nothing else changes.
func (s *Session) Run(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("session: shutting down")
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// localNow is the current wall-clock time in the snapshot's timezone, which
// is what hour-gated rules compare against.
func localNow(snap *models.ForecastSnapshot) time.Time {
	loc, err := time.LoadLocation(snap.Timezone)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Now().In(loc)
}
