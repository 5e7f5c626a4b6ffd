// Package memory implements store.Store in process memory. It is the default
// store when no database is configured and the store used throughout tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
	"github.com/couchcryptid/quake-alert-service/internal/store"
)

// maxFetchLogs bounds the in-memory fetch log; older entries are dropped.
const maxFetchLogs = 1000

// Store is a mutex-guarded map of earthquakes plus a bounded fetch log.
type Store struct {
	mu        sync.RWMutex
	clock     clockwork.Clock
	quakes    map[string]domain.Earthquake
	fetchLogs []domain.FetchLog
}

var _ store.Store = (*Store)(nil)

// New creates an empty store. A nil clock uses real time.
func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:  clock,
		quakes: make(map[string]domain.Earthquake),
	}
}

func (s *Store) Upsert(_ context.Context, eq domain.Earthquake) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.quakes[eq.ID]; ok {
		eq.RecordedAt = prev.RecordedAt
		eq.TsunamiPotential = coalesce(eq.TsunamiPotential, prev.TsunamiPotential)
		eq.FeltReport = coalesce(eq.FeltReport, prev.FeltReport)
		eq.ShakemapURL = coalesce(eq.ShakemapURL, prev.ShakemapURL)
	} else {
		eq.RecordedAt = s.clock.Now().UnixMilli()
	}
	s.quakes[eq.ID] = eq
	return nil
}

func (s *Store) QueryAll(_ context.Context, filter domain.QueryFilter) ([]domain.Earthquake, int, error) {
	s.mu.RLock()
	matched := make([]domain.Earthquake, 0, len(s.quakes))
	for _, eq := range s.quakes {
		if filter.Matches(eq) {
			matched = append(matched, eq)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].OccurredAt != matched[j].OccurredAt {
			return matched[i].OccurredAt > matched[j].OccurredAt
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (s *Store) GetByID(_ context.Context, id string) (domain.Earthquake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eq, ok := s.quakes[id]
	if !ok {
		return domain.Earthquake{}, domain.ErrNotFound
	}
	return eq, nil
}

func (s *Store) AppendFetchLog(_ context.Context, entry domain.FetchLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetchLogs = append(s.fetchLogs, entry)
	if over := len(s.fetchLogs) - maxFetchLogs; over > 0 {
		s.fetchLogs = append([]domain.FetchLog(nil), s.fetchLogs[over:]...)
	}
	return nil
}

// FetchLogs returns a copy of the retained fetch log, oldest first.
func (s *Store) FetchLogs() []domain.FetchLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.FetchLog(nil), s.fetchLogs...)
}

// Len returns the number of stored earthquakes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quakes)
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func coalesce(next, prev *string) *string {
	if next != nil {
		return next
	}
	return prev
}
