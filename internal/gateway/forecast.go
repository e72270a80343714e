package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"skycast/internal/metrics"
	"skycast/internal/models"
)

const (
	openMeteoTime = "2006-01-02T15:04"
	openMeteoDate = "2006-01-02"

	fullCurrentFields       = "temperature_2m,relative_humidity_2m,apparent_temperature,is_day,precipitation,weather_code,wind_speed_10m,surface_pressure"
	fullHourlyFields        = "temperature_2m,weather_code,uv_index,visibility"
	fullDailyFields         = "weather_code,temperature_2m_max,temperature_2m_min,sunrise,sunset"
	backgroundCurrentFields = "precipitation,weather_code,wind_speed_10m"
	minutelyFields          = "precipitation_probability"
)

type forecastResponse struct {
	Timezone string `json:"timezone"`
	Current  struct {
		Time                string  `json:"time"`
		Temperature2m       float64 `json:"temperature_2m"`
		RelativeHumidity2m  float64 `json:"relative_humidity_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		IsDay               int     `json:"is_day"`
		Precipitation       float64 `json:"precipitation"`
		WeatherCode         int     `json:"weather_code"`
		WindSpeed10m        float64 `json:"wind_speed_10m"`
		SurfacePressure     float64 `json:"surface_pressure"`
	} `json:"current"`
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature2m []float64 `json:"temperature_2m"`
		WeatherCode   []int     `json:"weather_code"`
		UVIndex       []float64 `json:"uv_index"`
		Visibility    []float64 `json:"visibility"`
	} `json:"hourly"`
	Daily struct {
		Time             []string  `json:"time"`
		WeatherCode      []int     `json:"weather_code"`
		Temperature2mMax []float64 `json:"temperature_2m_max"`
		Temperature2mMin []float64 `json:"temperature_2m_min"`
		Sunrise          []string  `json:"sunrise"`
		Sunset           []string  `json:"sunset"`
	} `json:"daily"`
	Minutely15 struct {
		Time                     []string  `json:"time"`
		PrecipitationProbability []float64 `json:"precipitation_probability"`
	} `json:"minutely_15"`
}

// FetchForecast requests the full forecast for a coordinate pair: current
// conditions, hourly temperature/code/UV/visibility, seven daily entries, the
// sub-hourly precipitation probability series and a one-day lookback for the
// yesterday comparison. The snapshot is unit-correct for the requested system.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64, unit models.UnitSystem) (*models.ForecastSnapshot, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.5f", lat))
	params.Set("longitude", fmt.Sprintf("%.5f", lon))
	params.Set("current", fullCurrentFields)
	params.Set("hourly", fullHourlyFields)
	params.Set("daily", fullDailyFields)
	params.Set("minutely_15", minutelyFields)
	params.Set("timezone", "auto")
	params.Set("past_days", "1")
	params.Set("forecast_days", "7")
	params.Set("temperature_unit", unit.TemperatureUnit())
	params.Set("wind_speed_unit", unit.WindSpeedUnit())
	params.Set("precipitation_unit", unit.PrecipitationUnit())

	start := time.Now()
	body, err := c.getWithRetry(ctx, c.forecastURL+"?"+params.Encode())
	metrics.ForecastFetchLatency.WithLabelValues("full").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ForecastFetchesTotal.WithLabelValues("full", "error").Inc()
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	var raw forecastResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		metrics.ForecastFetchesTotal.WithLabelValues("full", "error").Inc()
		return nil, fmt.Errorf("unmarshal forecast: %w", err)
	}

	snap, err := normalizeForecast(raw, unit, time.Now())
	if err != nil {
		metrics.ForecastFetchesTotal.WithLabelValues("full", "error").Inc()
		return nil, err
	}
	metrics.ForecastFetchesTotal.WithLabelValues("full", "ok").Inc()
	return snap, nil
}

// FetchBackgroundSlice requests the minimal forecast the background worker
// needs: current precipitation, weather code and wind speed plus the
// sub-hourly precipitation probability series. The returned snapshot has no
// daily series and must only be handed to the background rule set.
func (c *Client) FetchBackgroundSlice(ctx context.Context, lat, lon float64, unit models.UnitSystem) (*models.ForecastSnapshot, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.5f", lat))
	params.Set("longitude", fmt.Sprintf("%.5f", lon))
	params.Set("current", backgroundCurrentFields)
	params.Set("minutely_15", minutelyFields)
	params.Set("timezone", "auto")
	params.Set("forecast_days", "1")
	params.Set("temperature_unit", unit.TemperatureUnit())
	params.Set("wind_speed_unit", unit.WindSpeedUnit())
	params.Set("precipitation_unit", unit.PrecipitationUnit())

	start := time.Now()
	body, err := c.getWithRetry(ctx, c.forecastURL+"?"+params.Encode())
	metrics.ForecastFetchLatency.WithLabelValues("background").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ForecastFetchesTotal.WithLabelValues("background", "error").Inc()
		return nil, fmt.Errorf("fetch background slice: %w", err)
	}

	var raw forecastResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		metrics.ForecastFetchesTotal.WithLabelValues("background", "error").Inc()
		return nil, fmt.Errorf("unmarshal background slice: %w", err)
	}

	loc := loadLocation(raw.Timezone)
	cur, err := time.ParseInLocation(openMeteoTime, raw.Current.Time, loc)
	if err != nil {
		metrics.ForecastFetchesTotal.WithLabelValues("background", "error").Inc()
		return nil, fmt.Errorf("parse current time: %w", err)
	}

	snap := &models.ForecastSnapshot{
		Current: models.CurrentConditions{
			Precipitation: raw.Current.Precipitation,
			WeatherCode:   raw.Current.WeatherCode,
			WindSpeed:     raw.Current.WindSpeed10m,
			Timestamp:     cur,
		},
		PrecipProbability: sliceProbabilities(raw, cur, loc),
		Timezone:          raw.Timezone,
		Unit:              unit,
		FetchedAt:         time.Now(),
	}
	metrics.ForecastFetchesTotal.WithLabelValues("background", "ok").Inc()
	return snap, nil
}

// normalizeForecast maps the raw parallel-array response into the internal
// snapshot shape. The response includes one past day, which is split off into
// the Yesterday lookback so Daily[0] is always today; a response where today
// cannot be located is an invalid snapshot and reported as a fetch failure.
func normalizeForecast(raw forecastResponse, unit models.UnitSystem, fetchedAt time.Time) (*models.ForecastSnapshot, error) {
	loc := loadLocation(raw.Timezone)

	cur, err := time.ParseInLocation(openMeteoTime, raw.Current.Time, loc)
	if err != nil {
		return nil, fmt.Errorf("parse current time: %w", err)
	}

	todayIdx := -1
	today := cur.Format(openMeteoDate)
	for i, d := range raw.Daily.Time {
		if d == today {
			todayIdx = i
			break
		}
	}
	if todayIdx == -1 || todayIdx >= len(raw.Daily.Temperature2mMax) {
		return nil, fmt.Errorf("forecast has no daily entry for today (%s)", today)
	}

	var yesterday *models.DayStats
	if todayIdx > 0 {
		yesterday = &models.DayStats{TempMax: raw.Daily.Temperature2mMax[todayIdx-1]}
	}

	daily := make([]models.DailyPoint, 0, len(raw.Daily.Time)-todayIdx)
	for i := todayIdx; i < len(raw.Daily.Time); i++ {
		if i >= len(raw.Daily.Temperature2mMax) || i >= len(raw.Daily.Temperature2mMin) || i >= len(raw.Daily.WeatherCode) {
			break
		}
		date, err := time.ParseInLocation(openMeteoDate, raw.Daily.Time[i], loc)
		if err != nil {
			return nil, fmt.Errorf("parse daily date: %w", err)
		}
		daily = append(daily, models.DailyPoint{
			Date:        date,
			WeatherCode: raw.Daily.WeatherCode[i],
			TempMax:     raw.Daily.Temperature2mMax[i],
			TempMin:     raw.Daily.Temperature2mMin[i],
		})
	}
	if len(daily) == 0 {
		return nil, fmt.Errorf("forecast has no daily entry for today (%s)", today)
	}

	// The current UV/visibility reading lives in the hourly series. Match the
	// reported current timestamp exactly and fall back to index 0; the current
	// timestamp is not always hour-aligned, so the fallback can be off by an
	// index. This mirrors how the readings are displayed and is an accepted
	// approximation.
	hourIdx := 0
	for i, t := range raw.Hourly.Time {
		if t == raw.Current.Time {
			hourIdx = i
			break
		}
	}
	var uvIndex, visibility float64
	if hourIdx < len(raw.Hourly.UVIndex) {
		uvIndex = raw.Hourly.UVIndex[hourIdx]
	}
	if hourIdx < len(raw.Hourly.Visibility) {
		visibility = raw.Hourly.Visibility[hourIdx]
	}

	startOfToday := time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, loc)
	hourly := make([]models.HourlyPoint, 0, len(raw.Hourly.Time))
	for i, ts := range raw.Hourly.Time {
		if i >= len(raw.Hourly.Temperature2m) || i >= len(raw.Hourly.WeatherCode) {
			break
		}
		t, err := time.ParseInLocation(openMeteoTime, ts, loc)
		if err != nil {
			return nil, fmt.Errorf("parse hourly time: %w", err)
		}
		if t.Before(startOfToday) {
			continue
		}
		hourly = append(hourly, models.HourlyPoint{
			Time:        t,
			Temperature: raw.Hourly.Temperature2m[i],
			WeatherCode: raw.Hourly.WeatherCode[i],
		})
	}

	var sunrise, sunset time.Time
	if todayIdx < len(raw.Daily.Sunrise) {
		sunrise, _ = time.ParseInLocation(openMeteoTime, raw.Daily.Sunrise[todayIdx], loc)
	}
	if todayIdx < len(raw.Daily.Sunset) {
		sunset, _ = time.ParseInLocation(openMeteoTime, raw.Daily.Sunset[todayIdx], loc)
	}

	return &models.ForecastSnapshot{
		Current: models.CurrentConditions{
			Temperature:         raw.Current.Temperature2m,
			ApparentTemperature: raw.Current.ApparentTemperature,
			Humidity:            raw.Current.RelativeHumidity2m,
			Precipitation:       raw.Current.Precipitation,
			WindSpeed:           raw.Current.WindSpeed10m,
			WeatherCode:         raw.Current.WeatherCode,
			UVIndex:             uvIndex,
			Visibility:          visibility,
			Pressure:            raw.Current.SurfacePressure,
			IsDay:               raw.Current.IsDay == 1,
			Sunrise:             sunrise,
			Sunset:              sunset,
			Timestamp:           cur,
		},
		Hourly:            hourly,
		Daily:             daily,
		PrecipProbability: sliceProbabilities(raw, cur, loc),
		Yesterday:         yesterday,
		Timezone:          raw.Timezone,
		Unit:              unit,
		FetchedAt:         fetchedAt,
	}, nil
}

// sliceProbabilities returns the sub-hourly precipitation probability series
// starting at the current quarter hour, so index 0 means "now" and index 1
// means "in about 15 minutes".
func sliceProbabilities(raw forecastResponse, cur time.Time, loc *time.Location) []float64 {
	if len(raw.Minutely15.Time) == 0 {
		return nil
	}
	cutoff := cur.Truncate(15 * time.Minute)
	for i, ts := range raw.Minutely15.Time {
		t, err := time.ParseInLocation(openMeteoTime, ts, loc)
		if err != nil {
			return nil
		}
		if !t.Before(cutoff) {
			if i < len(raw.Minutely15.PrecipitationProbability) {
				return raw.Minutely15.PrecipitationProbability[i:]
			}
			return nil
		}
	}
	return nil
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getWithRetry fetches a URL with exponential backoff. Rate-limit style
// responses are retried; other failures are permanent.
func (c *Client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
