package domain

import (
	"time"

	"github.com/couchcryptid/quake-alert-service/internal/idgen"
)

// Earthquake is the canonical record stored after normalization. It is
// immutable once stored except for replace-on-conflict by ID.
type Earthquake struct {
	ID               string  `json:"id"`
	OccurredAt       int64   `json:"occurred_at"` // ms since epoch, UTC
	DisplayTime      string  `json:"datetime,omitempty"`
	Magnitude        float64 `json:"magnitude"`
	DepthKm          float64 `json:"depth_km"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	RegionLabel      string  `json:"region"`
	TsunamiPotential *string `json:"tsunami_potential"`
	FeltReport       *string `json:"felt_report"`
	ShakemapURL      *string `json:"shakemap_url"`

	// RecordedAt is set by the store on first insert, never by upstream.
	RecordedAt int64 `json:"recorded_at"`
}

// OccurredTime returns OccurredAt as a UTC time.
func (e Earthquake) OccurredTime() time.Time {
	return time.UnixMilli(e.OccurredAt).UTC()
}

// NearbyEarthquake is an Earthquake annotated with its distance from a query center.
type NearbyEarthquake struct {
	Earthquake
	DistanceKm float64 `json:"distance_km"`
}

// UserLocation is the client-owned alert area.
type UserLocation struct {
	Latitude  float64 `json:"latitude" toml:"latitude"`
	Longitude float64 `json:"longitude" toml:"longitude"`
	RadiusKm  float64 `json:"radius_km" toml:"radius_km"`
}

// Validate rejects out-of-range coordinates and non-positive radii.
func (u UserLocation) Validate() error {
	if err := ValidateCenter(u.Latitude, u.Longitude); err != nil {
		return err
	}
	return ValidateRadius(u.RadiusKm)
}

// FetchStatus is the outcome of one upstream fetch attempt.
type FetchStatus string

const (
	FetchSuccess FetchStatus = "success"
	FetchError   FetchStatus = "error"
)

// FetchLog records one ingestion attempt against one upstream source. It is
// written for observability only and never read back by the pipeline.
type FetchLog struct {
	ID         string      `json:"id"`
	SourceName string      `json:"source"`
	Status     FetchStatus `json:"status"`
	Message    string      `json:"message"`
	Records    int         `json:"records"`
	At         time.Time   `json:"at"`
}

// NewFetchLog builds a log entry stamped with the package clock.
func NewFetchLog(source string, status FetchStatus, message string, records int) FetchLog {
	id, err := idgen.GenerateWithPrefix("fl-")
	if err != nil {
		// nanoid only fails when the system RNG does; fall back to a time-based id.
		id = "fl-" + clock.Now().UTC().Format("20060102T150405.000000000")
	}
	return FetchLog{
		ID:         id,
		SourceName: source,
		Status:     status,
		Message:    message,
		Records:    records,
		At:         clock.Now().UTC(),
	}
}

// QueryFilter narrows a store scan. Results are always ordered by OccurredAt
// descending. A zero Limit returns every matching row.
type QueryFilter struct {
	MinMagnitude *float64
	MaxMagnitude *float64
	Since        int64 // OccurredAt lower bound in ms, 0 = unbounded
	Limit        int
	Offset       int
}

// Matches reports whether e passes the magnitude and time bounds of f.
func (f QueryFilter) Matches(e Earthquake) bool {
	if f.MinMagnitude != nil && e.Magnitude < *f.MinMagnitude {
		return false
	}
	if f.MaxMagnitude != nil && e.Magnitude > *f.MaxMagnitude {
		return false
	}
	if f.Since > 0 && e.OccurredAt < f.Since {
		return false
	}
	return true
}

// MagnitudeBand is one bucket of the stats histogram.
type MagnitudeBand struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// Stats aggregates the stored catalogue.
type Stats struct {
	Total       int             `json:"total"`
	TodayCount  int             `json:"todayCount"`
	Strongest   *Earthquake     `json:"strongest"`
	ByMagnitude []MagnitudeBand `json:"byMagnitude"`
}
