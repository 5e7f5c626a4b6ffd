package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKm_KnownPairs(t *testing.T) {
	cases := []struct {
		name                   string
		latA, lonA, latB, lonB float64
		want                   float64
	}{
		{"same point", -6.2, 106.8, -6.2, 106.8, 0},
		{"jakarta to bandung", -6.2, 106.8, -6.9175, 107.6191, 120.63},
		{"ten km north", -6.2, 106.8, -6.11, 106.8, 10.01},
		{"antipodal on equator", 0, 0, 0, 180, 20015.09},
		{"london to new york", 51.5007, -0.1246, 40.6892, -74.0445, 5574.84},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceKm(tc.latA, tc.lonA, tc.latB, tc.lonB)
			assert.InDelta(t, tc.want, got, 0.1)
		})
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	points := [][2]float64{
		{-6.2, 106.8}, {3.59, 98.67}, {-8.65, 115.22}, {90, 0}, {-90, 180}, {0, -180}, {35.68, 139.69},
	}
	for _, a := range points {
		for _, b := range points {
			ab := DistanceKm(a[0], a[1], b[0], b[1])
			ba := DistanceKm(b[0], b[1], a[0], a[1])
			assert.InDelta(t, ab, ba, 1e-9, "distance(%v,%v)", a, b)
			assert.GreaterOrEqual(t, ab, 0.0)
		}
		assert.Zero(t, DistanceKm(a[0], a[1], a[0], a[1]))
	}
}

func TestDistanceKm_NeverNaN(t *testing.T) {
	got := DistanceKm(0, 0, 0, 180)
	assert.False(t, math.IsNaN(got))
	assert.InDelta(t, MaxRadiusKm, got, 1e-6)
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 10.0, RoundKm(10.0075))
	assert.Equal(t, 60.0, RoundKm(60.045))
	assert.Equal(t, 0.1, RoundKm(0.05))
	assert.Equal(t, 120.6, RoundKm(120.6333))
}

func TestValidateCenter(t *testing.T) {
	require.NoError(t, ValidateCenter(-6.2, 106.8))
	require.NoError(t, ValidateCenter(90, -180))

	var qerr *InvalidQueryError
	err := ValidateCenter(91, 0)
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, "lat", qerr.Field)

	err = ValidateCenter(0, 180.5)
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, "lng", qerr.Field)

	assert.Error(t, ValidateCenter(math.NaN(), 0))
}

func TestValidateRadius(t *testing.T) {
	assert.NoError(t, ValidateRadius(50))
	assert.NoError(t, ValidateRadius(MaxRadiusKm))
	assert.Error(t, ValidateRadius(0))
	assert.Error(t, ValidateRadius(-5))
	assert.Error(t, ValidateRadius(30000))
	assert.Error(t, ValidateRadius(math.NaN()))
}

func TestUserLocation_Validate(t *testing.T) {
	assert.NoError(t, UserLocation{Latitude: -6.2, Longitude: 106.8, RadiusKm: 100}.Validate())
	assert.Error(t, UserLocation{Latitude: -6.2, Longitude: 106.8}.Validate())
	assert.Error(t, UserLocation{Latitude: -100, Longitude: 106.8, RadiusKm: 100}.Validate())
}
