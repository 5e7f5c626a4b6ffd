package domain

import (
	"math"
	"strconv"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0

	// MaxRadiusKm is half the great-circle circumference; every point on the
	// globe lies within it.
	MaxRadiusKm = math.Pi * EarthRadiusKm
)

// DistanceKm returns the great-circle distance between two coordinates in
// kilometres. Inputs are degrees and are assumed to be in range.
func DistanceKm(latA, lonA, latB, lonB float64) float64 {
	phiA := toRadians(latA)
	phiB := toRadians(latB)
	dPhi := toRadians(latB - latA)
	dLambda := toRadians(lonB - lonA)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phiA)*math.Cos(phiB)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can push a a hair above 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// RoundKm rounds a distance to one decimal place.
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// InLatitudeRange reports whether lat is a valid WGS-84 latitude.
func InLatitudeRange(lat float64) bool {
	return !math.IsNaN(lat) && lat >= MinLatitude && lat <= MaxLatitude
}

// InLongitudeRange reports whether lon is a valid WGS-84 longitude.
func InLongitudeRange(lon float64) bool {
	return !math.IsNaN(lon) && lon >= MinLongitude && lon <= MaxLongitude
}

// ValidateCenter rejects out-of-range query coordinates.
func ValidateCenter(lat, lon float64) error {
	if !InLatitudeRange(lat) {
		return &InvalidQueryError{Field: "lat", Reason: "must be between -90 and 90, got " + formatCoord(lat)}
	}
	if !InLongitudeRange(lon) {
		return &InvalidQueryError{Field: "lng", Reason: "must be between -180 and 180, got " + formatCoord(lon)}
	}
	return nil
}

// ValidateRadius rejects non-positive or larger-than-globe radii.
func ValidateRadius(radiusKm float64) error {
	if math.IsNaN(radiusKm) || radiusKm <= 0 || radiusKm > MaxRadiusKm {
		return &InvalidQueryError{Field: "radius", Reason: "must be greater than 0 and at most 20015 km"}
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
