// Package store persists the dashboard's named lists (favorites, compared
// locations, notification settings) as JSON values in a namespaced key-value
// table. Reads fall back to the caller's default on missing keys or decode
// failures; they never propagate serialization errors.
package store

import (
	"database/sql"
	"encoding/json"
	"log"
	"reflect"
	"time"
)

// Persisted keys.
const (
	KeyFavorites  = "weather-favorites"
	KeyComparison = "weather-comparison"
	KeySettings   = "weather-notifications"
	KeyPermission = "weather-notification-permission"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get unmarshals the value stored under key into dest. A missing key or a
// value that fails to decode leaves dest untouched and returns false, so
// callers keep whatever default they initialized dest with.
func (s *Store) Get(key string, dest any) bool {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv_store WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		log.Printf("store: read %s: %v", key, err)
		return false
	}
	// Decode into a fresh value first: Unmarshal fills dest element by
	// element before reporting a type error, and a half-decoded list must
	// not leak out as the caller's default.
	tmp := reflect.New(reflect.TypeOf(dest).Elem())
	if err := json.Unmarshal([]byte(raw), tmp.Interface()); err != nil {
		log.Printf("store: decode %s: %v", key, err)
		return false
	}
	reflect.ValueOf(dest).Elem().Set(tmp.Elem())
	return true
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(raw), time.Now().UTC())
	return err
}
