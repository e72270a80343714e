package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"skycast/internal/metrics"
	"skycast/internal/models"
)

type searchResponse struct {
	Results []struct {
		ID        int64   `json:"id"`
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
	} `json:"results"`
}

// SearchPlaces looks up locations matching a free-text query. An empty query
// returns no results without touching the network. A response with no matches
// returns an empty slice and no error; callers that need to distinguish "no
// results" from a transport failure check the error.
func (c *Client) SearchPlaces(ctx context.Context, query string) ([]models.Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("name", query)
	params.Set("count", "5")
	params.Set("language", "en")
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.geocodingURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("search", "error").Inc()
		return nil, fmt.Errorf("search places: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.GeocodeRequestsTotal.WithLabelValues("search", "error").Inc()
		return nil, fmt.Errorf("search places: status %d", resp.StatusCode)
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("search", "error").Inc()
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	metrics.GeocodeRequestsTotal.WithLabelValues("search", "ok").Inc()

	locations := make([]models.Location, 0, len(data.Results))
	for _, r := range data.Results {
		locations = append(locations, models.Location{
			ID:        r.ID,
			Name:      r.Name,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Country:   r.Country,
			Admin1:    r.Admin1,
		})
	}
	return locations, nil
}

// ReverseGeocode resolves a coordinate pair to a named location via
// Nominatim. The display name is the first available of city, town, village
// or suburb, falling back to "Current Location". Best-effort: callers fall
// back to a default location on error.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (*models.Location, error) {
	if err := c.reverseLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("reverse geocode rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.6f", lat))
	params.Set("lon", fmt.Sprintf("%.6f", lon))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.reverseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("reverse", "error").Inc()
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.GeocodeRequestsTotal.WithLabelValues("reverse", "error").Inc()
		return nil, fmt.Errorf("reverse geocode: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("reverse", "error").Inc()
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}
	if !gjson.ValidBytes(body) {
		metrics.GeocodeRequestsTotal.WithLabelValues("reverse", "error").Inc()
		return nil, fmt.Errorf("reverse geocode: invalid response body")
	}
	metrics.GeocodeRequestsTotal.WithLabelValues("reverse", "ok").Inc()

	doc := gjson.ParseBytes(body)
	name := "Current Location"
	for _, key := range []string{"address.city", "address.town", "address.village", "address.suburb"} {
		if v := doc.Get(key); v.Exists() {
			name = v.String()
			break
		}
	}

	loc := &models.Location{
		ID:        doc.Get("place_id").Int(),
		Name:      name,
		Latitude:  doc.Get("lat").Float(),
		Longitude: doc.Get("lon").Float(),
		Country:   doc.Get("address.country").String(),
	}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		loc.Latitude = lat
		loc.Longitude = lon
	}
	return loc, nil
}
