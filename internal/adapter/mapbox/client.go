// Package mapbox resolves place names for the alert client's home location
// using the Mapbox Geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the Mapbox places geocoding endpoint.
const DefaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// ErrNoMatch is returned when the API answers but finds no place.
var ErrNoMatch = errors.New("no matching place")

// Place is a geocoded location.
type Place struct {
	Name      string  `json:"name"`
	FullName  string  `json:"full_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Relevance float64 `json:"relevance"`
}

// Client talks to the Mapbox Geocoding API.
type Client struct {
	token      string
	country    string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a geocoding client. Forward lookups are restricted to
// country, an ISO 3166 alpha-2 code, when it is non-empty.
func NewClient(token, country string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		token:   token,
		country: country,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: DefaultBaseURL,
		logger:  logger,
	}
}

// Forward converts a free-form place name to coordinates.
func (c *Client) Forward(ctx context.Context, query string) (Place, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality,district,region"},
	}
	if c.country != "" {
		params.Set("country", c.country)
	}
	return c.doRequest(ctx, u+"?"+params.Encode(), "forward")
}

// Reverse names the place at the given coordinates.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality,district,region"},
	}
	return c.doRequest(ctx, u+"?"+params.Encode(), "reverse")
}

func (c *Client) doRequest(ctx context.Context, fullURL, direction string) (Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Place{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("%s geocode request: %w", direction, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("geocode", "direction", direction, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Place{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return Place{}, fmt.Errorf("decode response: %w", err)
	}
	if len(mapboxResp.Features) == 0 {
		return Place{}, ErrNoMatch
	}

	f := mapboxResp.Features[0]
	place := Place{
		Name:      f.Text,
		FullName:  f.PlaceName,
		Relevance: f.Relevance,
	}
	if len(f.Center) != 2 {
		return Place{}, fmt.Errorf("decode response: feature %q has no center", f.PlaceName)
	}
	place.Longitude = f.Center[0]
	place.Latitude = f.Center[1]
	return place, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
