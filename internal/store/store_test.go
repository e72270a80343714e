package store

import (
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"skycast/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestGetMissingKeyKeepsDefault(t *testing.T) {
	store := setupTestStore(t)

	locations := []models.Location{{Name: "fallback"}}
	if store.Get("never-written", &locations) {
		t.Error("Get reported true for missing key")
	}
	if len(locations) != 1 || locations[0].Name != "fallback" {
		t.Errorf("default clobbered: %v", locations)
	}
}

func TestGetDecodeFailureKeepsDefault(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.db.Exec(`INSERT INTO kv_store (key, value) VALUES (?, ?)`, "broken", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	settings := models.DefaultNotificationSettings()
	if store.Get("broken", &settings) {
		t.Error("Get reported true for undecodable value")
	}
	if !settings.Enabled {
		t.Error("default mutated by failed decode")
	}
}

func TestGetTypeErrorKeepsDefault(t *testing.T) {
	store := setupTestStore(t)

	// Valid JSON with a type mismatch partway through: Unmarshal decodes the
	// first entry before failing, and none of it may reach the caller.
	corrupted := `[{"name":"Ghost","latitude":1,"longitude":2},{"name":123}]`
	if _, err := store.db.Exec(`INSERT INTO kv_store (key, value) VALUES (?, ?)`, KeyFavorites, corrupted); err != nil {
		t.Fatalf("seed: %v", err)
	}

	locations := []models.Location{{Name: "fallback"}}
	if store.Get(KeyFavorites, &locations) {
		t.Error("Get reported true for type-mismatched value")
	}
	if len(locations) != 1 || locations[0].Name != "fallback" {
		t.Errorf("default clobbered by partial decode: %v", locations)
	}

	if favorites := store.Favorites(); len(favorites) != 0 {
		t.Errorf("Favorites = %v, want empty on corrupted value", favorites)
	}
}

func TestSetOverwrites(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Set("k", []int{1, 2}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set("k", []int{3}); err != nil {
		t.Fatalf("Set again: %v", err)
	}

	var got []int
	if !store.Get("k", &got) {
		t.Fatal("Get missed written key")
	}
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("got %v, want [3]", got)
	}
}

func TestToggleFavoriteByCoordinates(t *testing.T) {
	store := setupTestStore(t)

	// Same coordinates, different ids: a geolocation-derived location must
	// match the search-derived one.
	searched := models.Location{ID: 2643743, Name: "London", Latitude: 51.50853, Longitude: -0.12574}
	located := models.Location{ID: 0, Name: "Current Location", Latitude: 51.50853, Longitude: -0.12574}

	favorites, nowFav, err := store.ToggleFavorite(searched)
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if !nowFav || len(favorites) != 1 {
		t.Fatalf("first toggle: favorite=%v len=%d", nowFav, len(favorites))
	}

	favorites, nowFav, err = store.ToggleFavorite(located)
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if nowFav || len(favorites) != 0 {
		t.Errorf("double toggle did not restore original membership: favorite=%v len=%d", nowFav, len(favorites))
	}
}

func TestComparisonCap(t *testing.T) {
	store := setupTestStore(t)

	for i := 0; i < MaxComparisonLocations; i++ {
		loc := models.Location{ID: int64(i + 1), Name: "City", Latitude: float64(i), Longitude: float64(i)}
		if _, _, err := store.ToggleComparison(loc); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	fifth := models.Location{ID: 99, Name: "One Too Many", Latitude: 99, Longitude: 99}
	compared, _, err := store.ToggleComparison(fifth)
	if !errors.Is(err, ErrComparisonFull) {
		t.Fatalf("err = %v, want ErrComparisonFull", err)
	}
	if len(compared) != MaxComparisonLocations {
		t.Errorf("list changed on rejected add: len=%d", len(compared))
	}

	// Removing an existing entry still works at the cap.
	existing := models.Location{ID: 1, Latitude: 0, Longitude: 0}
	compared, nowCompared, err := store.ToggleComparison(existing)
	if err != nil {
		t.Fatalf("remove at cap: %v", err)
	}
	if nowCompared || len(compared) != MaxComparisonLocations-1 {
		t.Errorf("remove at cap: compared=%v len=%d", nowCompared, len(compared))
	}
}

func TestClearComparison(t *testing.T) {
	store := setupTestStore(t)

	store.ToggleComparison(models.Location{ID: 1, Latitude: 1, Longitude: 1})
	if err := store.ClearComparison(); err != nil {
		t.Fatalf("ClearComparison: %v", err)
	}
	if got := store.Comparison(); len(got) != 0 {
		t.Errorf("comparison not cleared: %v", got)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	got := store.Settings()
	if !got.Enabled || !got.OutfitAdvisor {
		t.Errorf("defaults not applied: %+v", got)
	}

	got.OutfitAdvisor = false
	if err := store.SaveSettings(got); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	reloaded := store.Settings()
	if reloaded.OutfitAdvisor {
		t.Error("saved settings not persisted")
	}
}

func TestNotificationPermission(t *testing.T) {
	store := setupTestStore(t)

	if store.NotificationPermission() {
		t.Error("permission granted by default")
	}
	if err := store.SetNotificationPermission(true); err != nil {
		t.Fatalf("SetNotificationPermission: %v", err)
	}
	if !store.NotificationPermission() {
		t.Error("grant not persisted")
	}
}
