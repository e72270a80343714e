package models

import "time"

// UnitSystem selects the measurement units requested from the forecast API.
// Snapshots are unit-correct at fetch time; nothing converts after the fact.
type UnitSystem string

const (
	UnitMetric   UnitSystem = "metric"
	UnitImperial UnitSystem = "imperial"
)

// Valid reports whether u is one of the two supported unit systems.
func (u UnitSystem) Valid() bool {
	return u == UnitMetric || u == UnitImperial
}

// TemperatureUnit returns the Open-Meteo temperature_unit parameter value.
func (u UnitSystem) TemperatureUnit() string {
	if u == UnitImperial {
		return "fahrenheit"
	}
	return "celsius"
}

// WindSpeedUnit returns the Open-Meteo wind_speed_unit parameter value.
func (u UnitSystem) WindSpeedUnit() string {
	if u == UnitImperial {
		return "mph"
	}
	return "kmh"
}

// PrecipitationUnit returns the Open-Meteo precipitation_unit parameter value.
func (u UnitSystem) PrecipitationUnit() string {
	if u == UnitImperial {
		return "inch"
	}
	return "mm"
}

// Location is a named place with coordinates. ID is the geocoding provider's
// place id; locations derived from device coordinates may not carry a stable
// one, so identity checks must never rely on ID alone.
type Location struct {
	ID        int64   `json:"id,omitempty"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country,omitempty"`
	Admin1    string  `json:"admin1,omitempty"`
}

// Same reports whether two locations refer to the same place: a matching
// non-zero id, or an exact coordinate pair.
func (l Location) Same(other Location) bool {
	if l.ID != 0 && l.ID == other.ID {
		return true
	}
	return l.Latitude == other.Latitude && l.Longitude == other.Longitude
}

// CurrentConditions holds the instantaneous readings from a forecast fetch.
// UVIndex and Visibility are lifted from the hourly series at the hour
// matching Timestamp.
type CurrentConditions struct {
	Temperature         float64   `json:"temperature"`
	ApparentTemperature float64   `json:"apparent_temperature"`
	Humidity            float64   `json:"humidity"`
	Precipitation       float64   `json:"precipitation"`
	WindSpeed           float64   `json:"wind_speed"`
	WeatherCode         int       `json:"weather_code"`
	UVIndex             float64   `json:"uv_index"`
	Visibility          float64   `json:"visibility"`
	Pressure            float64   `json:"pressure"`
	IsDay               bool      `json:"is_day"`
	Sunrise             time.Time `json:"sunrise"`
	Sunset              time.Time `json:"sunset"`
	Timestamp           time.Time `json:"timestamp"`
}

// HourlyPoint is one entry of the hourly series, chronologically ascending.
type HourlyPoint struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperature"`
	WeatherCode int       `json:"weather_code"`
}

// DailyPoint is one entry of the daily series. Index 0 of the snapshot's
// Daily slice is always today.
type DailyPoint struct {
	Date        time.Time `json:"date"`
	WeatherCode int       `json:"weather_code"`
	TempMax     float64   `json:"temp_max"`
	TempMin     float64   `json:"temp_min"`
}

// DayStats is the single-value lookback used for day-over-day comparison.
type DayStats struct {
	TempMax float64 `json:"temp_max"`
}

// ForecastSnapshot is one immutable fetched forecast result. PrecipProbability
// is the sub-hourly (15 minute) precipitation probability series with index 0
// aligned to the current quarter hour. Yesterday is present only when the
// past-day lookback succeeded.
type ForecastSnapshot struct {
	Current           CurrentConditions `json:"current"`
	Hourly            []HourlyPoint     `json:"hourly"`
	Daily             []DailyPoint      `json:"daily"`
	PrecipProbability []float64         `json:"precip_probability"`
	Yesterday         *DayStats         `json:"yesterday,omitempty"`
	Timezone          string            `json:"timezone"`
	Unit              UnitSystem        `json:"unit"`
	FetchedAt         time.Time         `json:"fetched_at"`
}

// Severity classifies an alert for presentation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityAlert   Severity = "alert"
)

// Alert is one notification decided by the rule engine. Rule carries the rule
// family that produced it.
type Alert struct {
	ID        string    `json:"id"`
	Rule      string    `json:"rule"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationSettings is the per-rule opt-in record. Enabled is the master
// switch: when false no rule evaluates regardless of the per-rule flags.
type NotificationSettings struct {
	Enabled         bool `json:"enabled"`
	Precipitation   bool `json:"precipitation"`
	TempShifts      bool `json:"temp_shifts"`
	MorningBriefing bool `json:"morning_briefing"`
	SevereWeather   bool `json:"severe_weather"`
	OutfitAdvisor   bool `json:"outfit_advisor"`
}

// DefaultNotificationSettings matches a fresh install: master switch on,
// every rule opted in.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		Enabled:         true,
		Precipitation:   true,
		TempShifts:      true,
		MorningBriefing: true,
		SevereWeather:   true,
		OutfitAdvisor:   true,
	}
}

// WorkerState is the payload the foreground pushes to the background worker.
// The worker retains only the most recent one and reconstructs its fetch
// context from it; it has no other view of foreground state.
type WorkerState struct {
	Location Location             `json:"location"`
	Unit     UnitSystem           `json:"unit"`
	Settings NotificationSettings `json:"settings"`
}
