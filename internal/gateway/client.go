// Package gateway is the typed facade over the three network endpoints the
// dashboard consumes: place search, reverse geocoding and forecast fetch.
// Responses are normalized into the internal snapshot shape; callers treat
// any error as "no data" and surface their own error flag.
package gateway

import (
	"net/http"

	"golang.org/x/time/rate"

	"skycast/internal/httputil"
)

const (
	defaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	defaultReverseURL   = "https://nominatim.openstreetmap.org/reverse"

	userAgent = "skycast/1.0 (weather dashboard)"
)

type Client struct {
	http         *http.Client
	forecastURL  string
	geocodingURL string
	reverseURL   string

	// Nominatim's usage policy caps anonymous clients at one request per
	// second; the limiter applies only to reverse geocoding.
	reverseLimiter *rate.Limiter
}

func New() *Client {
	return &Client{
		http:           httputil.NewClient(0),
		forecastURL:    defaultForecastURL,
		geocodingURL:   defaultGeocodingURL,
		reverseURL:     defaultReverseURL,
		reverseLimiter: rate.NewLimiter(rate.Limit(1), 1),
	}
}

// SetBaseURLs overrides the endpoint URLs. Used by tests to point the client
// at local HTTP servers.
func (c *Client) SetBaseURLs(forecast, geocoding, reverse string) {
	if forecast != "" {
		c.forecastURL = forecast
	}
	if geocoding != "" {
		c.geocodingURL = geocoding
	}
	if reverse != "" {
		c.reverseURL = reverse
	}
}
