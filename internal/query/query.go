// Package query serves read views over the stored earthquake catalogue:
// paginated lists, the latest event, radius search, lookup by id, and stats.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
	"github.com/couchcryptid/quake-alert-service/internal/store"
)

// Service answers queries against a store.
type Service struct {
	store    store.Store
	clock    clockwork.Clock
	location *time.Location
}

// NewService creates a Service. loc sets the day boundary for the stats
// "today" count; nil means UTC. A nil clock uses real time.
func NewService(st store.Store, clock clockwork.Clock, loc *time.Location) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: st, clock: clock, location: loc}
}

// List returns a page of earthquakes, newest first, with the unpaged total.
func (s *Service) List(ctx context.Context, filter domain.QueryFilter) ([]domain.Earthquake, int, error) {
	if filter.MinMagnitude != nil && filter.MaxMagnitude != nil && *filter.MinMagnitude > *filter.MaxMagnitude {
		return nil, 0, &domain.InvalidQueryError{Field: "minMagnitude", Reason: "greater than maxMagnitude"}
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, &domain.InvalidQueryError{Field: "limit", Reason: "limit and offset must not be negative"}
	}
	return s.store.QueryAll(ctx, filter)
}

// Latest returns the most recent earthquake or domain.ErrNotFound.
func (s *Service) Latest(ctx context.Context) (domain.Earthquake, error) {
	rows, _, err := s.store.QueryAll(ctx, domain.QueryFilter{Limit: 1})
	if err != nil {
		return domain.Earthquake{}, err
	}
	if len(rows) == 0 {
		return domain.Earthquake{}, domain.ErrNotFound
	}
	return rows[0], nil
}

// ByID returns one earthquake or domain.ErrNotFound.
func (s *Service) ByID(ctx context.Context, id string) (domain.Earthquake, error) {
	if id == "" {
		return domain.Earthquake{}, &domain.InvalidQueryError{Field: "id", Reason: "required"}
	}
	return s.store.GetByID(ctx, id)
}

// Nearby returns every stored earthquake within radiusKm of (lat, lon),
// closest first, ties broken by most recent. DistanceKm is rounded to 0.1 km
// and the radius test applies to the rounded value.
//
// This is a full scan. The store holds a sliding window of recent events, so
// a spatial index would only pay off if that window grows substantially.
func (s *Service) Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]domain.NearbyEarthquake, error) {
	if err := domain.ValidateCenter(lat, lon); err != nil {
		return nil, err
	}
	if err := domain.ValidateRadius(radiusKm); err != nil {
		return nil, err
	}

	all, _, err := s.store.QueryAll(ctx, domain.QueryFilter{})
	if err != nil {
		return nil, err
	}
	return WithinRadius(all, lat, lon, radiusKm), nil
}

// WithinRadius annotates quakes with their distance from (lat, lon) and keeps
// those within radiusKm, sorted by distance ascending then OccurredAt
// descending.
func WithinRadius(quakes []domain.Earthquake, lat, lon, radiusKm float64) []domain.NearbyEarthquake {
	out := make([]domain.NearbyEarthquake, 0, len(quakes))
	for _, eq := range quakes {
		d := domain.RoundKm(domain.DistanceKm(lat, lon, eq.Latitude, eq.Longitude))
		if d <= radiusKm {
			out = append(out, domain.NearbyEarthquake{Earthquake: eq, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].OccurredAt > out[j].OccurredAt
	})
	return out
}

// Magnitude bands reported by Stats.
var magnitudeBands = []struct {
	label    string
	min, max float64 // [min, max)
}{
	{"<5", -1, 5},
	{"5-6", 5, 6},
	{"6-7", 6, 7},
	{"7+", 7, 100},
}

// Stats aggregates the whole catalogue. TodayCount counts events whose
// OccurredAt falls on the current calendar day in the service location.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	all, total, err := s.store.QueryAll(ctx, domain.QueryFilter{})
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}

	now := s.clock.Now().In(s.location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location).UnixMilli()

	stats := domain.Stats{Total: total, ByMagnitude: make([]domain.MagnitudeBand, len(magnitudeBands))}
	for i, b := range magnitudeBands {
		stats.ByMagnitude[i].Range = b.label
	}

	var strongest *domain.Earthquake
	for i := range all {
		eq := &all[i]
		if eq.OccurredAt >= dayStart {
			stats.TodayCount++
		}
		// Rows arrive newest first, so strict > keeps the most recent among equals.
		if strongest == nil || eq.Magnitude > strongest.Magnitude {
			strongest = eq
		}
		for j, b := range magnitudeBands {
			if eq.Magnitude >= b.min && eq.Magnitude < b.max {
				stats.ByMagnitude[j].Count++
				break
			}
		}
	}
	if strongest != nil {
		cp := *strongest
		stats.Strongest = &cp
	}
	return stats, nil
}
