package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"skycast/internal/app"
	"skycast/internal/models"
	"skycast/internal/store"
	"skycast/internal/weathercode"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

type dashboardResponse struct {
	Location    models.Location          `json:"location"`
	Unit        models.UnitSystem        `json:"unit"`
	Snapshot    *models.ForecastSnapshot `json:"snapshot"`
	Description string                   `json:"description,omitempty"`
	FetchError  bool                     `json:"fetch_error"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, fetchErr := s.session.Snapshot()
	resp := dashboardResponse{
		Location:   s.session.Location(),
		Unit:       s.session.Unit(),
		Snapshot:   snap,
		FetchError: fetchErr,
	}
	if snap != nil {
		resp.Description = weathercode.Description(snap.Current.WeatherCode)
	}
	writeJSON(w, resp)
}

// handleRefresh backs the full-page retry affordance shown when the primary
// forecast fetch fails.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.session.Refresh(r.Context())
	s.handleDashboard(w, r)
}

type searchResponse struct {
	Results []models.Location `json:"results"`
	Error   bool              `json:"error"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	locations, err := s.gateway.SearchPlaces(r.Context(), r.URL.Query().Get("q"))
	if locations == nil {
		locations = []models.Location{}
	}
	// Failures surface as an empty result set with the error flag; the
	// inline "no results" message covers both.
	writeJSON(w, searchResponse{Results: locations, Error: err != nil})
}

func (s *Server) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if loc.Name == "" {
		http.Error(w, "location name required", http.StatusBadRequest)
		return
	}
	s.session.SetLocation(r.Context(), loc)
	s.handleDashboard(w, r)
}

type locateRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// handleLocate resolves device coordinates to a named location, falling back
// to the default location when reverse geocoding fails.
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	var req locateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	loc, err := s.gateway.ReverseGeocode(r.Context(), req.Latitude, req.Longitude)
	if err != nil || loc == nil {
		fallback := app.DefaultLocation
		loc = &fallback
	}
	s.session.SetLocation(r.Context(), *loc)
	s.handleDashboard(w, r)
}

type unitRequest struct {
	Unit models.UnitSystem `json:"unit"`
}

func (s *Server) handleSetUnit(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.session.SetUnit(r.Context(), req.Unit); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.handleDashboard(w, r)
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Favorites())
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	favorites, nowFavorite, err := s.store.ToggleFavorite(loc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"favorites": favorites, "favorite": nowFavorite})
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Comparison())
}

func (s *Server) handleToggleComparison(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	compared, nowCompared, err := s.store.ToggleComparison(loc)
	if errors.Is(err, store.ErrComparisonFull) {
		// User-facing notice; the existing list is unchanged.
		writeJSONStatus(w, http.StatusConflict, map[string]any{"notice": err.Error(), "comparison": compared})
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"comparison": compared, "compared": nowCompared})
}

// handleRemoveComparison backs the per-card remove affordance; unlike toggle
// it never adds, so it cannot hit the cap.
func (s *Server) handleRemoveComparison(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	compared, err := s.store.RemoveComparison(loc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"comparison": compared})
}

func (s *Server) handleClearComparison(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearComparison(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, []models.Location{})
}

type comparisonEntry struct {
	Location models.Location          `json:"location"`
	Snapshot *models.ForecastSnapshot `json:"snapshot"`
	Error    bool                     `json:"error"`
}

// handleComparisonWeather fetches the forecast for every compared location
// concurrently with the active unit system. Per-location failures surface as
// an error flag on that entry rather than failing the whole grid.
func (s *Server) handleComparisonWeather(w http.ResponseWriter, r *http.Request) {
	compared := s.store.Comparison()
	unit := s.session.Unit()

	entries := make([]comparisonEntry, len(compared))
	g, ctx := errgroup.WithContext(r.Context())
	for i, loc := range compared {
		g.Go(func() error {
			snap, err := s.gateway.FetchForecast(ctx, loc.Latitude, loc.Longitude, unit)
			entries[i] = comparisonEntry{Location: loc, Snapshot: snap, Error: err != nil}
			return nil
		})
	}
	g.Wait()
	writeJSON(w, entries)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Settings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.SaveSettings(settings); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Keep the background worker's retained payload in step with the toggle.
	s.session.PushWorkerState()
	writeJSON(w, settings)
}

type permissionRequest struct {
	Granted bool `json:"granted"`
}

// handlePermission records the explicit user grant (or revocation) of native
// notification delivery. This is the only place permission is ever changed.
func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.SetNotificationPermission(req.Granted); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"granted": req.Granted})
}

type alertsResponse struct {
	Visible []models.Alert `json:"visible"`
	All     []models.Alert `json:"all"`
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, alertsResponse{Visible: s.queue.Visible(), All: s.queue.All()})
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	s.queue.Dismiss(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}
