// Package bmkg fetches earthquake bulletins from the BMKG open data feeds.
package bmkg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// DefaultBaseURL is the public BMKG open data host.
const DefaultBaseURL = "https://data.bmkg.go.id"

// maxBodyBytes caps a feed payload; the real feeds are a few tens of KB.
const maxBodyBytes = 4 << 20

// Endpoint describes one upstream feed.
type Endpoint struct {
	Name    string
	Shape   domain.FeedShape
	Path    string
	Timeout time.Duration
}

// DefaultEndpoints returns the three public BMKG earthquake feeds.
func DefaultEndpoints(timeout time.Duration) []Endpoint {
	return []Endpoint{
		{Name: "autogempa", Shape: domain.ShapeLatest, Path: "/DataMKG/TEWS/autogempa.json", Timeout: timeout},
		{Name: "gempaterkini", Shape: domain.ShapeRecent, Path: "/DataMKG/TEWS/gempaterkini.json", Timeout: timeout},
		{Name: "gempadirasakan", Shape: domain.ShapeFelt, Path: "/DataMKG/TEWS/gempadirasakan.json", Timeout: timeout},
	}
}

// NewHTTPClient returns a client shared by every source. Per-request deadlines
// come from the source timeout, so the client timeout is only a backstop.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Source fetches and decodes one BMKG feed.
type Source struct {
	endpoint   Endpoint
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSource creates a source for ep rooted at baseURL.
func NewSource(baseURL string, ep Endpoint, httpClient *http.Client, logger *slog.Logger) *Source {
	return &Source{
		endpoint:   ep,
		url:        strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(ep.Path, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// NewSources builds one Source per endpoint sharing a single HTTP client.
func NewSources(baseURL string, endpoints []Endpoint, logger *slog.Logger) []*Source {
	var longest time.Duration
	for _, ep := range endpoints {
		longest = max(longest, ep.Timeout)
	}
	client := NewHTTPClient(longest + 5*time.Second)

	sources := make([]*Source, 0, len(endpoints))
	for _, ep := range endpoints {
		sources = append(sources, NewSource(baseURL, ep, client, logger))
	}
	return sources
}

// Name returns the endpoint name used in logs, metrics, and fetch logs.
func (s *Source) Name() string { return s.endpoint.Name }

// Fetch downloads the feed and splits it into bulletins. Transport failures,
// timeouts, non-200 responses, and unusable envelopes are returned as
// *domain.UpstreamUnavailableError. Per-record decode failures are carried on
// the individual bulletins instead.
func (s *Source) Fetch(ctx context.Context) ([]domain.Bulletin, error) {
	if s.endpoint.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.endpoint.Timeout)
		defer cancel()
	}

	body, err := s.get(ctx)
	if err != nil {
		return nil, &domain.UpstreamUnavailableError{Source: s.endpoint.Name, Err: err}
	}

	bulletins, err := domain.DecodeFeed(s.endpoint.Shape, body)
	if err != nil {
		return nil, &domain.UpstreamUnavailableError{Source: s.endpoint.Name, Err: err}
	}

	s.logger.Debug("feed fetched", "source", s.endpoint.Name, "bulletins", len(bulletins), "bytes", len(body))
	return bulletins, nil
}

func (s *Source) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out after %s: %w", s.endpoint.Timeout, err)
		}
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("bmkg feed error: status %d: %s", resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}
