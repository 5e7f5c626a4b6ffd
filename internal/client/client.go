// Package client talks to the quake service's /api surface.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// DefaultTimeout bounds a single API request.
const DefaultTimeout = 15 * time.Second

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Is lets callers match a 404 with errors.Is(err, domain.ErrNotFound).
func (e *APIError) Is(target error) bool {
	return target == domain.ErrNotFound && e.Status == http.StatusNotFound
}

// Page is one page of the list endpoint.
type Page struct {
	Earthquakes []domain.Earthquake
	Total       int
	Limit       int
	Offset      int
}

// Client queries the earthquake API. It implements alert.NearbyFetcher.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the server at baseURL. A nil httpClient gets
// DefaultTimeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Pagination *struct {
		Total  int `json:"total"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	} `json:"pagination"`
}

// Nearby returns earthquakes within radiusKm of (lat, lon), closest first.
func (c *Client) Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]domain.NearbyEarthquake, error) {
	q := url.Values{}
	q.Set("lat", formatFloat(lat))
	q.Set("lng", formatFloat(lon))
	q.Set("radius", formatFloat(radiusKm))

	var out []domain.NearbyEarthquake
	if _, err := c.get(ctx, "/api/earthquakes/nearby", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Latest returns the most recent earthquake.
func (c *Client) Latest(ctx context.Context) (domain.Earthquake, error) {
	var out domain.Earthquake
	_, err := c.get(ctx, "/api/earthquakes/latest", nil, &out)
	return out, err
}

// ByID returns one earthquake.
func (c *Client) ByID(ctx context.Context, id string) (domain.Earthquake, error) {
	var out domain.Earthquake
	_, err := c.get(ctx, "/api/earthquakes/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Stats returns the catalogue statistics.
func (c *Client) Stats(ctx context.Context) (domain.Stats, error) {
	var out domain.Stats
	_, err := c.get(ctx, "/api/earthquakes/stats", nil, &out)
	return out, err
}

// List returns one page of earthquakes, newest first. A zero Limit leaves
// the server default in place.
func (c *Client) List(ctx context.Context, filter domain.QueryFilter) (Page, error) {
	q := url.Values{}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	if filter.MinMagnitude != nil {
		q.Set("minMagnitude", formatFloat(*filter.MinMagnitude))
	}
	if filter.MaxMagnitude != nil {
		q.Set("maxMagnitude", formatFloat(*filter.MaxMagnitude))
	}
	if filter.Since > 0 {
		q.Set("since", strconv.FormatInt(filter.Since, 10))
	}

	var quakes []domain.Earthquake
	env, err := c.get(ctx, "/api/earthquakes", q, &quakes)
	if err != nil {
		return Page{}, err
	}
	page := Page{Earthquakes: quakes}
	if env.Pagination != nil {
		page.Total = env.Pagination.Total
		page.Limit = env.Pagination.Limit
		page.Offset = env.Pagination.Offset
	}
	return page, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, data any) (envelope, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return envelope{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return envelope{}, fmt.Errorf("read %s: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return envelope{}, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return envelope{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return envelope{}, &APIError{Status: resp.StatusCode, Message: msg}
	}
	if len(env.Data) == 0 {
		return env, errors.New("response has no data")
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		return envelope{}, fmt.Errorf("decode %s data: %w", path, err)
	}
	return env, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
