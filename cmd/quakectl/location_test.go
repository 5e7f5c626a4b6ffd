package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-alert-service/internal/adapter/mapbox"
)

type fakeLookup struct {
	place      mapbox.Place
	err        error
	query      string
	reverseErr error
	reversed   [2]float64
}

func (f *fakeLookup) Forward(_ context.Context, query string) (mapbox.Place, error) {
	f.query = query
	return f.place, f.err
}

func (f *fakeLookup) Reverse(_ context.Context, lat, lon float64) (mapbox.Place, error) {
	f.reversed = [2]float64{lat, lon}
	return f.place, f.reverseErr
}

func init() {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setCmdWith(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "set"}
	cmd.Flags().Float64("lat", 0, "")
	cmd.Flags().Float64("lon", 0, "")
	cmd.Flags().Float64("radius", 100, "")
	cmd.Flags().String("place", "", "")
	require.NoError(t, cmd.ParseFlags(args))
	cmd.SetContext(context.Background())
	return cmd
}

func TestResolveLocation_Coordinates(t *testing.T) {
	loc, name, err := resolveLocation(setCmdWith(t, "--lat=-6.2", "--lon=106.8", "--radius=50"), nil)
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Equal(t, -6.2, loc.Latitude)
	assert.Equal(t, 106.8, loc.Longitude)
	assert.Equal(t, 50.0, loc.RadiusKm)
}

func TestResolveLocation_CoordinatesNamedWhenGeocoderAvailable(t *testing.T) {
	geo := &fakeLookup{place: mapbox.Place{Name: "Cianjur", FullName: "Cianjur, West Java, Indonesia"}}

	loc, name, err := resolveLocation(setCmdWith(t, "--lat=-6.82", "--lon=107.14"), geo)
	require.NoError(t, err)
	assert.Equal(t, "Cianjur, West Java, Indonesia", name)
	assert.Equal(t, [2]float64{-6.82, 107.14}, geo.reversed)
	assert.Equal(t, -6.82, loc.Latitude)
}

func TestPlaceName_FailureIsSilent(t *testing.T) {
	geo := &fakeLookup{reverseErr: errors.New("mapbox API error: status 401")}
	assert.Empty(t, placeName(context.Background(), geo, -6.82, 107.14))
	assert.Empty(t, placeName(context.Background(), nil, -6.82, 107.14))
}

func TestResolveLocation_Place(t *testing.T) {
	geo := &fakeLookup{place: mapbox.Place{Name: "Padang", FullName: "Padang, West Sumatra, Indonesia", Latitude: -0.95, Longitude: 100.35}}

	loc, name, err := resolveLocation(setCmdWith(t, "--place", "Padang"), geo)
	require.NoError(t, err)
	assert.Equal(t, "Padang", geo.query)
	assert.Equal(t, "Padang, West Sumatra, Indonesia", name)
	assert.Equal(t, -0.95, loc.Latitude)
	assert.Equal(t, 100.35, loc.Longitude)
	assert.Equal(t, 100.0, loc.RadiusKm)
}

func TestResolveLocation_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		geo  placeLookup
		want string
	}{
		{"nothing set", nil, nil, "set --lat and --lon"},
		{"only lat", []string{"--lat=1"}, nil, "set --lat and --lon"},
		{"both forms", []string{"--place=Padang", "--lat=1", "--lon=2"}, nil, "not both"},
		{"place without token", []string{"--place=Padang"}, nil, "MAPBOX_TOKEN"},
		{"no match", []string{"--place=Nowhere"}, &fakeLookup{err: mapbox.ErrNoMatch}, "no matching place"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := resolveLocation(setCmdWith(t, tt.args...), tt.geo)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
