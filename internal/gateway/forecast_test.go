package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skycast/internal/models"
)

const fullForecastBody = `{
	"timezone": "UTC",
	"current": {
		"time": "2026-08-31T12:00",
		"temperature_2m": 21.4,
		"relative_humidity_2m": 55,
		"apparent_temperature": 20.9,
		"is_day": 1,
		"precipitation": 0,
		"weather_code": 2,
		"wind_speed_10m": 14.2,
		"surface_pressure": 1012.3
	},
	"hourly": {
		"time": ["2026-08-30T23:00", "2026-08-31T00:00", "2026-08-31T12:00", "2026-08-31T13:00"],
		"temperature_2m": [12.0, 11.5, 21.4, 22.0],
		"weather_code": [1, 1, 2, 2],
		"uv_index": [0, 0, 5.5, 5.1],
		"visibility": [24000, 24000, 18000, 18000]
	},
	"daily": {
		"time": ["2026-08-30", "2026-08-31", "2026-09-01"],
		"weather_code": [1, 2, 3],
		"temperature_2m_max": [20.0, 24.0, 23.0],
		"temperature_2m_min": [10.0, 14.0, 13.0],
		"sunrise": ["2026-08-30T06:10", "2026-08-31T06:11", "2026-09-01T06:12"],
		"sunset": ["2026-08-30T19:50", "2026-08-31T19:48", "2026-09-01T19:46"]
	},
	"minutely_15": {
		"time": ["2026-08-31T11:45", "2026-08-31T12:00", "2026-08-31T12:15"],
		"precipitation_probability": [5, 10, 80]
	}
}`

func TestFetchForecastNormalizes(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(fullForecastBody))
	}))
	defer server.Close()

	c := New()
	c.SetBaseURLs(server.URL, "", "")

	snap, err := c.FetchForecast(context.Background(), 51.5, -0.12, models.UnitMetric)
	if err != nil {
		t.Fatalf("FetchForecast: %v", err)
	}

	if got := gotQuery["temperature_unit"]; len(got) != 1 || got[0] != "celsius" {
		t.Errorf("temperature_unit = %v, want celsius", got)
	}
	if got := gotQuery["past_days"]; len(got) != 1 || got[0] != "1" {
		t.Errorf("past_days = %v, want 1", got)
	}

	// The past day is split off into the lookback, so index 0 is today.
	if len(snap.Daily) != 2 {
		t.Fatalf("len(Daily) = %d, want 2", len(snap.Daily))
	}
	if snap.Daily[0].Date.Format("2006-01-02") != "2026-08-31" {
		t.Errorf("Daily[0].Date = %s, want today", snap.Daily[0].Date)
	}
	if snap.Daily[0].TempMax != 24.0 {
		t.Errorf("Daily[0].TempMax = %v, want 24", snap.Daily[0].TempMax)
	}
	if snap.Yesterday == nil || snap.Yesterday.TempMax != 20.0 {
		t.Errorf("Yesterday = %+v, want TempMax 20", snap.Yesterday)
	}

	// UV and visibility come from the hourly entry matching the current
	// timestamp.
	if snap.Current.UVIndex != 5.5 {
		t.Errorf("UVIndex = %v, want 5.5", snap.Current.UVIndex)
	}
	if snap.Current.Visibility != 18000 {
		t.Errorf("Visibility = %v, want 18000", snap.Current.Visibility)
	}

	// Past-day hours are dropped.
	if len(snap.Hourly) != 3 {
		t.Fatalf("len(Hourly) = %d, want 3", len(snap.Hourly))
	}
	if snap.Hourly[0].Time.Format("2006-01-02T15:04") != "2026-08-31T00:00" {
		t.Errorf("Hourly[0].Time = %s", snap.Hourly[0].Time)
	}

	// The probability series starts at the current quarter hour.
	if len(snap.PrecipProbability) != 2 || snap.PrecipProbability[0] != 10 || snap.PrecipProbability[1] != 80 {
		t.Errorf("PrecipProbability = %v, want [10 80]", snap.PrecipProbability)
	}

	if snap.Current.Sunrise.Format("15:04") != "06:11" {
		t.Errorf("Sunrise = %s, want today's 06:11", snap.Current.Sunrise)
	}
	if !snap.Current.IsDay {
		t.Error("IsDay = false, want true")
	}
}

func TestNormalizeRejectsMissingToday(t *testing.T) {
	var raw forecastResponse
	raw.Timezone = "UTC"
	raw.Current.Time = "2026-08-31T12:00"
	raw.Daily.Time = []string{"2026-08-29", "2026-08-30"}
	raw.Daily.Temperature2mMax = []float64{20, 21}
	raw.Daily.Temperature2mMin = []float64{10, 11}
	raw.Daily.WeatherCode = []int{1, 1}

	if _, err := normalizeForecast(raw, models.UnitMetric, time.Now()); err == nil {
		t.Fatal("expected error for forecast without today's entry")
	}
}

func TestNormalizeWithoutLookback(t *testing.T) {
	var raw forecastResponse
	raw.Timezone = "UTC"
	raw.Current.Time = "2026-08-31T12:00"
	raw.Daily.Time = []string{"2026-08-31"}
	raw.Daily.Temperature2mMax = []float64{24}
	raw.Daily.Temperature2mMin = []float64{14}
	raw.Daily.WeatherCode = []int{2}

	snap, err := normalizeForecast(raw, models.UnitMetric, time.Now())
	if err != nil {
		t.Fatalf("normalizeForecast: %v", err)
	}
	if snap.Yesterday != nil {
		t.Errorf("Yesterday = %+v, want nil without a past day", snap.Yesterday)
	}
}

func TestFetchForecastServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	c := New()
	c.SetBaseURLs(server.URL, "", "")

	if _, err := c.FetchForecast(context.Background(), 0, 0, models.UnitMetric); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestFetchBackgroundSlice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("current"); got != backgroundCurrentFields {
			t.Errorf("current fields = %q, want minimal slice", got)
		}
		w.Write([]byte(`{
			"timezone": "UTC",
			"current": {"time": "2026-08-31T12:00", "precipitation": 0, "weather_code": 3, "wind_speed_10m": 92.5},
			"minutely_15": {
				"time": ["2026-08-31T12:00", "2026-08-31T12:15"],
				"precipitation_probability": [10, 75]
			}
		}`))
	}))
	defer server.Close()

	c := New()
	c.SetBaseURLs(server.URL, "", "")

	snap, err := c.FetchBackgroundSlice(context.Background(), 51.5, -0.12, models.UnitImperial)
	if err != nil {
		t.Fatalf("FetchBackgroundSlice: %v", err)
	}
	if snap.Current.WindSpeed != 92.5 {
		t.Errorf("WindSpeed = %v, want 92.5", snap.Current.WindSpeed)
	}
	if len(snap.PrecipProbability) != 2 || snap.PrecipProbability[1] != 75 {
		t.Errorf("PrecipProbability = %v, want [10 75]", snap.PrecipProbability)
	}
	if len(snap.Daily) != 0 {
		t.Errorf("background slice has daily series: %v", snap.Daily)
	}
}
