package app

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"skycast/internal/alerts"
	"skycast/internal/models"
	"skycast/internal/store"
)

type fakeForecaster struct {
	mu      sync.Mutex
	snap    *models.ForecastSnapshot
	err     error
	calls   int
	blockCh chan struct{} // when set, calls block until it is closed
}

func (f *fakeForecaster) FetchForecast(ctx context.Context, lat, lon float64, unit models.UnitSystem) (*models.ForecastSnapshot, error) {
	f.mu.Lock()
	f.calls++
	block := f.blockCh
	snap, err := f.snap, f.err
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return snap, err
}

type fakePusher struct {
	mu     sync.Mutex
	states []models.WorkerState
}

func (p *fakePusher) UpdateState(state models.WorkerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, state)
}

func (p *fakePusher) last(t *testing.T) models.WorkerState {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.states) == 0 {
		t.Fatal("no worker state pushed")
	}
	return p.states[len(p.states)-1]
}

func newTestSession(t *testing.T, f Forecaster) (*Session, *fakePusher, *alerts.Queue) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	queue := alerts.NewQueue(nil)
	t.Cleanup(queue.Close)
	pusher := &fakePusher{}
	return NewSession(f, st, queue, pusher), pusher, queue
}

func calmSnapshot() *models.ForecastSnapshot {
	return &models.ForecastSnapshot{
		Current:  models.CurrentConditions{Temperature: 18},
		Daily:    []models.DailyPoint{{Date: time.Now(), TempMax: 20, TempMin: 10}},
		Timezone: "UTC",
		Unit:     models.UnitMetric,
	}
}

func TestSessionDefaults(t *testing.T) {
	s, _, _ := newTestSession(t, &fakeForecaster{})

	if s.Location().Name != "London" {
		t.Errorf("default location = %q, want London", s.Location().Name)
	}
	if s.Unit() != models.UnitMetric {
		t.Errorf("default unit = %q, want metric", s.Unit())
	}
	if snap, _ := s.Snapshot(); snap != nil {
		t.Error("snapshot non-nil before first fetch")
	}
}

func TestRefreshSuccess(t *testing.T) {
	f := &fakeForecaster{snap: calmSnapshot()}
	s, pusher, _ := newTestSession(t, f)

	s.Refresh(context.Background())

	snap, fetchErr := s.Snapshot()
	if snap == nil {
		t.Fatal("snapshot nil after successful refresh")
	}
	if fetchErr {
		t.Error("fetchErr set after successful refresh")
	}

	state := pusher.last(t)
	if state.Location.Name != "London" || state.Unit != models.UnitMetric {
		t.Errorf("pushed state = %+v", state)
	}
	if !state.Settings.Enabled {
		t.Error("pushed settings not defaulted to enabled")
	}
}

func TestRefreshFailureSetsFlagAndRecovers(t *testing.T) {
	f := &fakeForecaster{err: errors.New("open-meteo down")}
	s, _, _ := newTestSession(t, f)

	s.Refresh(context.Background())
	if _, fetchErr := s.Snapshot(); !fetchErr {
		t.Fatal("fetchErr not set after failed refresh")
	}

	f.mu.Lock()
	f.err = nil
	f.snap = calmSnapshot()
	f.mu.Unlock()

	s.Refresh(context.Background())
	snap, fetchErr := s.Snapshot()
	if fetchErr || snap == nil {
		t.Error("session did not recover after successful refetch")
	}
}

func TestRefreshKeepsLastSnapshotOnFailure(t *testing.T) {
	f := &fakeForecaster{snap: calmSnapshot()}
	s, _, _ := newTestSession(t, f)
	s.Refresh(context.Background())

	f.mu.Lock()
	f.snap = nil
	f.err = errors.New("timeout")
	f.mu.Unlock()

	s.Refresh(context.Background())
	snap, fetchErr := s.Snapshot()
	if snap == nil {
		t.Error("stale snapshot dropped on fetch failure")
	}
	if !fetchErr {
		t.Error("fetchErr not set")
	}
}

func TestSetUnitRejectsUnknown(t *testing.T) {
	f := &fakeForecaster{snap: calmSnapshot()}
	s, _, _ := newTestSession(t, f)

	if err := s.SetUnit(context.Background(), "kelvin"); err == nil {
		t.Fatal("expected error for unknown unit system")
	}
	if f.calls != 0 {
		t.Errorf("fetch calls = %d, want 0 after rejected unit", f.calls)
	}

	if err := s.SetUnit(context.Background(), models.UnitImperial); err != nil {
		t.Fatalf("SetUnit(imperial): %v", err)
	}
	if s.Unit() != models.UnitImperial {
		t.Errorf("unit = %q, want imperial", s.Unit())
	}
	if f.calls != 1 {
		t.Errorf("fetch calls = %d, want 1 after unit switch", f.calls)
	}
}

func TestSetLocationRefetches(t *testing.T) {
	f := &fakeForecaster{snap: calmSnapshot()}
	s, pusher, _ := newTestSession(t, f)

	bright := models.Location{ID: 2174712, Name: "Bright", Latitude: -36.73, Longitude: 146.96}
	s.SetLocation(context.Background(), bright)

	if s.Location().Name != "Bright" {
		t.Errorf("location = %q, want Bright", s.Location().Name)
	}
	if f.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls)
	}
	if pusher.last(t).Location.Name != "Bright" {
		t.Error("worker state not updated with new location")
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	block := make(chan struct{})
	f := &fakeForecaster{snap: calmSnapshot(), blockCh: block}
	s, _, _ := newTestSession(t, f)

	done := make(chan struct{})
	go func() {
		s.Refresh(context.Background()) // slow first fetch
		close(done)
	}()

	// Wait for the first fetch to be in flight, then supersede it.
	for {
		f.mu.Lock()
		started := f.calls == 1
		f.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// The in-flight fetch already captured the -99 snapshot; swap in a fresh
	// one for the superseding fetch.
	f.mu.Lock()
	f.blockCh = nil
	f.snap.Current.Temperature = -99
	fresh := calmSnapshot()
	fresh.Current.Temperature = 25
	f.snap = fresh
	f.mu.Unlock()

	s.Refresh(context.Background()) // fresh fetch completes first
	close(block)                    // now let the stale response land
	<-done

	snap, _ := s.Snapshot()
	if snap == nil || snap.Current.Temperature != 25 {
		t.Fatalf("snapshot = %+v, want the fresh fetch retained", snap)
	}
}

func TestRefreshEvaluatesForegroundRules(t *testing.T) {
	snap := calmSnapshot()
	snap.Current.WindSpeed = 95
	f := &fakeForecaster{snap: snap}
	s, _, queue := newTestSession(t, f)

	s.Refresh(context.Background())

	found := false
	for _, a := range queue.All() {
		if a.Rule == "severe_wind" {
			found = true
		}
	}
	if !found {
		t.Error("severe wind alert not queued after refresh")
	}
}
