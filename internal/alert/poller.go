package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// Alert is one earthquake handed to the notification capability.
type Alert struct {
	domain.NearbyEarthquake
	RadiusKm float64 `json:"radius_km"`
	Urgent   bool    `json:"urgent"`
}

// NewAlert wraps a decided record for a user with the given radius.
func NewAlert(n domain.NearbyEarthquake, radiusKm float64) Alert {
	return Alert{NearbyEarthquake: n, RadiusKm: radiusKm, Urgent: n.Magnitude >= UrgentMagnitude}
}

// State is the client-local state the poller reads and writes.
type State struct {
	Location *domain.UserLocation
	// Ledger holds alerted ids, oldest first.
	Ledger []string
	// LastSeen is the id set returned by the previous poll.
	LastSeen []string
	// LastPollAt is zero until the first poll for the current location.
	LastPollAt time.Time
}

// StateStore persists State across process restarts.
type StateStore interface {
	Load() (State, error)
	// Update applies fn to the stored state and saves the result as one
	// read-modify-write. Nothing is saved when fn returns an error.
	Update(fn func(*State) error) error
}

// NearbyFetcher queries earthquakes around a point.
type NearbyFetcher interface {
	Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]domain.NearbyEarthquake, error)
}

// Notifier delivers alerts to the user.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

// Notifiers fans alerts out to every notifier. All are attempted; the
// failures are joined.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, alerts []Alert) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, alerts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ErrNoLocation is returned by Poll when no user location is configured.
var ErrNoLocation = errors.New("no location configured")

// errLocationChanged aborts a state update whose poll ran against a location
// the user has since replaced or cleared.
var errLocationChanged = errors.New("location changed during poll")

// Poller runs the client poll: query nearby, decide, persist, notify.
type Poller struct {
	fetcher  NearbyFetcher
	notifier Notifier
	state    StateStore
	logger   *slog.Logger
	clock    clockwork.Clock
}

// NewPoller creates a Poller. A nil clock uses real time.
func NewPoller(f NearbyFetcher, n Notifier, s StateStore, logger *slog.Logger, clock clockwork.Clock) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{fetcher: f, notifier: n, state: s, logger: logger, clock: clock}
}

// Poll performs one poll and returns the alerts raised.
//
// The first poll for a location only records a baseline. Later polls treat
// ids absent from the previous poll as new, and the ledger suppresses any id
// already alerted even if the previous-poll set missed it. The ledger is
// saved before notifiers run, so a failed notification is not retried.
//
// Only the poll-owned fields (ledger, last-seen set, poll time) are written,
// against the state as it is at commit time. A poll whose location was
// changed or cleared while the query was in flight is discarded.
func (p *Poller) Poll(ctx context.Context) ([]Alert, error) {
	st, err := p.state.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if st.Location == nil {
		return nil, ErrNoLocation
	}
	loc := *st.Location

	nearby, err := p.fetcher.Nearby(ctx, loc.Latitude, loc.Longitude, loc.RadiusKm)
	if err != nil {
		return nil, fmt.Errorf("fetch nearby: %w", err)
	}

	records := make([]domain.Earthquake, len(nearby))
	current := make([]string, len(nearby))
	for i, n := range nearby {
		records[i] = n.Earthquake
		current[i] = n.ID
	}

	var (
		baseline bool
		decided  []domain.NearbyEarthquake
	)
	err = p.state.Update(func(cur *State) error {
		if cur.Location == nil || *cur.Location != loc {
			return errLocationChanged
		}
		baseline = cur.LastPollAt.IsZero()
		ledger := RestoreLedger(cur.Ledger, DefaultLedgerCapacity)
		if !baseline {
			decided = Decide(records, toSet(cur.LastSeen), &loc, ledger)
		}
		cur.Ledger = ledger.IDs()
		cur.LastSeen = current
		cur.LastPollAt = p.clock.Now().UTC()
		return nil
	})
	if errors.Is(err, errLocationChanged) {
		p.logger.Info("location changed during poll, result discarded")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}

	if baseline {
		p.logger.Info("baseline recorded", "nearby", len(nearby))
		return nil, nil
	}
	if len(decided) == 0 {
		p.logger.Debug("no new alerts", "nearby", len(nearby))
		return nil, nil
	}

	alerts := make([]Alert, len(decided))
	for i, d := range decided {
		alerts[i] = NewAlert(d, loc.RadiusKm)
	}
	if err := p.notifier.Notify(ctx, alerts); err != nil {
		return alerts, fmt.Errorf("notify: %w", err)
	}
	p.logger.Info("alerts raised", "count", len(alerts))
	return alerts, nil
}

// Run polls immediately and then every interval until ctx is cancelled.
// Poll errors are logged and the next tick retries.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil {
			if errors.Is(err, ErrNoLocation) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		}
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
