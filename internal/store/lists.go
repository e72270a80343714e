package store

import (
	"errors"

	"skycast/internal/models"
)

// MaxComparisonLocations caps the comparison grid. Adding beyond the cap is
// rejected with ErrComparisonFull and the list is left unchanged.
const MaxComparisonLocations = 4

var ErrComparisonFull = errors.New("you can compare up to 4 locations at a time")

// Favorites returns the persisted favorites list, empty if none was saved.
func (s *Store) Favorites() []models.Location {
	var favorites []models.Location
	s.Get(KeyFavorites, &favorites)
	return favorites
}

// ToggleFavorite adds or removes a location from the favorites list and
// returns the new list plus whether the location is now a favorite. Identity
// is by id or coordinate pair, so toggling twice always restores the
// original membership.
func (s *Store) ToggleFavorite(loc models.Location) ([]models.Location, bool, error) {
	favorites := s.Favorites()
	if containsLocation(favorites, loc) {
		favorites = removeLocation(favorites, loc)
		return favorites, false, s.Set(KeyFavorites, favorites)
	}
	favorites = append(favorites, loc)
	return favorites, true, s.Set(KeyFavorites, favorites)
}

// Comparison returns the persisted compared-locations list.
func (s *Store) Comparison() []models.Location {
	var compared []models.Location
	s.Get(KeyComparison, &compared)
	return compared
}

// ToggleComparison adds or removes a location from the comparison list.
// Adding a location beyond the cap returns ErrComparisonFull with the list
// unchanged.
func (s *Store) ToggleComparison(loc models.Location) ([]models.Location, bool, error) {
	compared := s.Comparison()
	if containsLocation(compared, loc) {
		compared = removeLocation(compared, loc)
		return compared, false, s.Set(KeyComparison, compared)
	}
	if len(compared) >= MaxComparisonLocations {
		return compared, false, ErrComparisonFull
	}
	compared = append(compared, loc)
	return compared, true, s.Set(KeyComparison, compared)
}

// RemoveComparison removes a location from the comparison list if present.
func (s *Store) RemoveComparison(loc models.Location) ([]models.Location, error) {
	compared := removeLocation(s.Comparison(), loc)
	return compared, s.Set(KeyComparison, compared)
}

// ClearComparison empties the comparison list.
func (s *Store) ClearComparison() error {
	return s.Set(KeyComparison, []models.Location{})
}

// Settings returns the persisted notification settings, or the defaults if
// none were saved.
func (s *Store) Settings() models.NotificationSettings {
	settings := models.DefaultNotificationSettings()
	s.Get(KeySettings, &settings)
	return settings
}

func (s *Store) SaveSettings(settings models.NotificationSettings) error {
	return s.Set(KeySettings, settings)
}

// NotificationPermission reports whether the user has granted native
// notification delivery. It is granted only by an explicit user action.
func (s *Store) NotificationPermission() bool {
	var granted bool
	s.Get(KeyPermission, &granted)
	return granted
}

func (s *Store) SetNotificationPermission(granted bool) error {
	return s.Set(KeyPermission, granted)
}

func containsLocation(list []models.Location, loc models.Location) bool {
	for _, l := range list {
		if l.Same(loc) {
			return true
		}
	}
	return false
}

func removeLocation(list []models.Location, loc models.Location) []models.Location {
	out := make([]models.Location, 0, len(list))
	for _, l := range list {
		if l.Same(loc) {
			continue
		}
		out = append(out, l)
	}
	return out
}
