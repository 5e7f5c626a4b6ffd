package bmkg

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

const latestPayload = `{"Infogempa":{"gempa":{
	"Tanggal":"01 Jan 2024","Jam":"07:00:00 WIB","DateTime":"2024-01-01T00:00:00+00:00",
	"Coordinates":"-6.2,106.8","Lintang":"6.20 LS","Bujur":"106.80 BT",
	"Magnitude":"5.5","Kedalaman":"10 km","Wilayah":"Pusat gempa berada di darat",
	"Potensi":"Tidak berpotensi tsunami","Dirasakan":"III Jakarta","Shakemap":"20240101000000.mmi.jpg"}}}`

const recentPayload = `{"Infogempa":{"gempa":[
	{"DateTime":"2024-01-01T00:00:00+00:00","Coordinates":"-6.2,106.8","Magnitude":"5.5","Kedalaman":"10 km","Wilayah":"A"},
	{"DateTime":"2024-01-01T01:00:00+00:00","Coordinates":"-7.0,110.0","Magnitude":5.1,"Kedalaman":"20 km","Wilayah":"B"},
	{"DateTime":"2024-01-01T02:00:00+00:00","Coordinates":"-8.0,115.0","Magnitude":"6.0","Kedalaman":"30 km","Wilayah":"C"}
]}}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSource(baseURL string, shape domain.FeedShape, timeout time.Duration) *Source {
	ep := Endpoint{Name: "test", Shape: shape, Path: "/DataMKG/TEWS/test.json", Timeout: timeout}
	return NewSource(baseURL, ep, &http.Client{Timeout: 5 * time.Second}, discardLogger())
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/DataMKG/TEWS/test.json", r.URL.Path)
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSource_Fetch_LatestObject(t *testing.T) {
	srv := serve(t, http.StatusOK, latestPayload)

	bulletins, err := testSource(srv.URL, domain.ShapeLatest, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, bulletins, 1)

	b := bulletins[0]
	assert.Equal(t, domain.ShapeLatest, b.Shape)
	require.NoError(t, b.Err)
	assert.Equal(t, "-6.2,106.8", b.Record.Coordinates)
	assert.Equal(t, "20240101000000.mmi.jpg", b.Record.Shakemap)
}

func TestSource_Fetch_ArrayIsolatesBadElement(t *testing.T) {
	srv := serve(t, http.StatusOK, recentPayload)

	bulletins, err := testSource(srv.URL, domain.ShapeRecent, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, bulletins, 3)

	assert.NoError(t, bulletins[0].Err)
	var malformed *domain.MalformedRecordError
	assert.ErrorAs(t, bulletins[1].Err, &malformed)
	assert.NoError(t, bulletins[2].Err)
}

func TestSource_Fetch_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"not found", http.StatusNotFound, ""},
		{"not json", http.StatusOK, "<html>maintenance</html>"},
		{"missing Infogempa", http.StatusOK, `{"foo":{}}`},
		{"missing gempa", http.StatusOK, `{"Infogempa":{}}`},
		{"gempa is a string", http.StatusOK, `{"Infogempa":{"gempa":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)

			_, err := testSource(srv.URL, domain.ShapeRecent, time.Second).Fetch(context.Background())
			var upstream *domain.UpstreamUnavailableError
			require.ErrorAs(t, err, &upstream)
			assert.Equal(t, "test", upstream.Source)
		})
	}
}

func TestSource_Fetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := testSource(srv.URL, domain.ShapeLatest, 50*time.Millisecond).Fetch(context.Background())
	var upstream *domain.UpstreamUnavailableError
	require.ErrorAs(t, err, &upstream)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSource_Fetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testSource(url, domain.ShapeLatest, time.Second).Fetch(context.Background())
	var upstream *domain.UpstreamUnavailableError
	assert.ErrorAs(t, err, &upstream)
}

func TestNewSource_JoinsURL(t *testing.T) {
	s := NewSource("https://data.bmkg.go.id/", Endpoint{Name: "x", Path: "DataMKG/TEWS/autogempa.json"}, http.DefaultClient, discardLogger())
	assert.Equal(t, "https://data.bmkg.go.id/DataMKG/TEWS/autogempa.json", s.url)
	assert.Equal(t, "x", s.Name())
}

func TestNewSources_DefaultEndpoints(t *testing.T) {
	sources := NewSources(DefaultBaseURL, DefaultEndpoints(10*time.Second), discardLogger())
	require.Len(t, sources, 3)

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"autogempa", "gempaterkini", "gempadirasakan"}, names)
	assert.Same(t, sources[0].httpClient, sources[2].httpClient)
	assert.Equal(t, 15*time.Second, sources[0].httpClient.Timeout)
}
