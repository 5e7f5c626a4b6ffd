package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-alert-service/internal/adapter/api"
	"github.com/couchcryptid/quake-alert-service/internal/alert"
	"github.com/couchcryptid/quake-alert-service/internal/domain"
	"github.com/couchcryptid/quake-alert-service/internal/query"
	"github.com/couchcryptid/quake-alert-service/internal/store/memory"
)

var t0 = time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)

func quake(id string, lat, lon, mag float64, occurred time.Time) domain.Earthquake {
	return domain.Earthquake{
		ID:          id,
		OccurredAt:  occurred.UnixMilli(),
		Magnitude:   mag,
		DepthKm:     10,
		Latitude:    lat,
		Longitude:   lon,
		RegionLabel: id,
	}
}

// newAPIServer runs the real API over a memory store.
func newAPIServer(t *testing.T, quakes ...domain.Earthquake) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := clockwork.NewFakeClockAt(t0)
	st := memory.New(clock)
	for _, eq := range quakes {
		require.NoError(t, st.Upsert(context.Background(), eq))
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(query.NewService(st, clock, nil), logger)))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ImplementsNearbyFetcher(t *testing.T) {
	var _ alert.NearbyFetcher = (*Client)(nil)
}

func TestNearby(t *testing.T) {
	srv := newAPIServer(t,
		quake("near", -6.11, 106.8, 5, t0),
		quake("far", -5.66, 106.8, 5, t0),
	)
	c := New(srv.URL+"/", nil)

	got, err := c.Nearby(context.Background(), -6.2, 106.8, 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].ID)
	assert.InDelta(t, 10.0, got[0].DistanceKm, 0.05)
}

func TestNearby_InvalidInput(t *testing.T) {
	c := New(newAPIServer(t).URL, nil)

	_, err := c.Nearby(context.Background(), 91, 0, 50)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "lat")
}

func TestLatestAndByID(t *testing.T) {
	c := New(newAPIServer(t).URL, nil)
	_, err := c.Latest(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)

	srv := newAPIServer(t,
		quake("older", -6, 106, 5, t0.Add(-time.Hour)),
		quake("2024-01-15T03_00_00Z_-6_106", -6, 106, 4, t0),
	)
	c = New(srv.URL, nil)

	eq, err := c.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15T03_00_00Z_-6_106", eq.ID)

	eq, err = c.ByID(context.Background(), "older")
	require.NoError(t, err)
	assert.InDelta(t, 5, eq.Magnitude, 0)

	_, err = c.ByID(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStats(t *testing.T) {
	c := New(newAPIServer(t,
		quake("a", -6, 106, 4.5, t0),
		quake("b", -6, 106, 6.5, t0.Add(-time.Hour)),
	).URL, nil)

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	require.NotNil(t, stats.Strongest)
	assert.Equal(t, "b", stats.Strongest.ID)
	require.Len(t, stats.ByMagnitude, 4)
}

func TestList(t *testing.T) {
	c := New(newAPIServer(t,
		quake("a", -6, 106, 4.5, t0.Add(-3*time.Hour)),
		quake("b", -6, 106, 5.5, t0.Add(-2*time.Hour)),
		quake("c", -6, 106, 6.5, t0.Add(-1*time.Hour)),
	).URL, nil)

	minMag := 5.0
	page, err := c.List(context.Background(), domain.QueryFilter{MinMagnitude: &minMag, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Limit)
	require.Len(t, page.Earthquakes, 1)
	assert.Equal(t, "c", page.Earthquakes[0].ID)

	page, err = c.List(context.Background(), domain.QueryFilter{Since: t0.Add(-150 * time.Minute).UnixMilli()})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, api.DefaultLimit, page.Limit)
}

func TestGet_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream connect error", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Latest(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestGet_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(srv.URL, &http.Client{Timeout: 50 * time.Millisecond})
	_, err := c.Stats(context.Background())
	require.Error(t, err)
}

func TestGet_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, nil).Nearby(context.Background(), 0, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET /api/earthquakes/nearby")
}
